package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"hostlink/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func testKeyPEM(t *testing.T, passphrase string) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "")
	}
	require.NoError(t, err)
	return pem.EncodeToMemory(block)
}

func TestBuildSSHConfig(t *testing.T) {
	cfg := testConfig()

	t.Run("password", func(t *testing.T) {
		c, err := buildSSHConfig(domain.TransportDescriptor{User: "ops", Password: "pw"}, cfg)
		require.NoError(t, err)
		assert.Equal(t, "ops", c.User)
		assert.Len(t, c.Auth, 1)
		assert.Equal(t, cfg.ConnectTimeout, c.Timeout)
	})

	t.Run("key and password", func(t *testing.T) {
		c, err := buildSSHConfig(domain.TransportDescriptor{User: "ops", Password: "pw", PrivateKey: testKeyPEM(t, "")}, cfg)
		require.NoError(t, err)
		assert.Len(t, c.Auth, 2)
	})

	t.Run("encrypted key", func(t *testing.T) {
		key := testKeyPEM(t, "s3cret")
		_, err := buildSSHConfig(domain.TransportDescriptor{User: "ops", PrivateKey: key, Passphrase: "s3cret"}, cfg)
		require.NoError(t, err)

		_, err = buildSSHConfig(domain.TransportDescriptor{User: "ops", PrivateKey: key, Passphrase: "wrong"}, cfg)
		assert.Equal(t, domain.ConnectionRefused, domain.KindOf(err))
	})

	t.Run("key file from config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "id_ed25519")
		require.NoError(t, os.WriteFile(path, testKeyPEM(t, ""), 0o600))
		c := cfg
		c.SSH.User = "deploy"
		c.SSH.KeyFile = path
		sc, err := buildSSHConfig(domain.TransportDescriptor{}, c)
		require.NoError(t, err)
		assert.Equal(t, "deploy", sc.User)
	})

	t.Run("missing key file", func(t *testing.T) {
		c := cfg
		c.SSH.KeyFile = filepath.Join(t.TempDir(), "nope")
		_, err := buildSSHConfig(domain.TransportDescriptor{User: "ops"}, c)
		assert.Equal(t, domain.ConnectionRefused, domain.KindOf(err))
	})

	t.Run("no user", func(t *testing.T) {
		_, err := buildSSHConfig(domain.TransportDescriptor{Password: "pw"}, cfg)
		assert.Equal(t, domain.ConnectionRefused, domain.KindOf(err))
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := buildSSHConfig(domain.TransportDescriptor{User: "ops"}, cfg)
		assert.Equal(t, domain.ConnectionRefused, domain.KindOf(err))
	})

	t.Run("bad known_hosts", func(t *testing.T) {
		c := cfg
		c.SSH.KnownHostsFile = filepath.Join(t.TempDir(), "missing")
		_, err := buildSSHConfig(domain.TransportDescriptor{User: "ops", Password: "pw"}, c)
		assert.Equal(t, domain.Internal, domain.KindOf(err))
	})
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "10.0.0.5:22", withDefaultPort("10.0.0.5", 22))
	assert.Equal(t, "10.0.0.5:2222", withDefaultPort("10.0.0.5:2222", 22))
	assert.Equal(t, "[fd00::1]:22", withDefaultPort("fd00::1", 22))
}
