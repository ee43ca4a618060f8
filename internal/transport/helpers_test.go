package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hostlink/internal/agent"
	"hostlink/internal/domain"
	"hostlink/internal/protocol"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

var sampleFacts = domain.MustFromAny(map[string]any{
	"hostname":  "web-1",
	"cpu_cores": 4,
	"tags":      []any{"prod", "eu"},
})

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.ReadTimeout = 2 * time.Second
	return cfg
}

// startAgent runs an agent on a loopback port until the test ends
func startAgent(t *testing.T, cfg agent.Config, source agent.DataSource) string {
	t.Helper()
	cfg.ListenAddr = "127.0.0.1:0"
	srv := agent.New(cfg, source)
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

// closedPort returns a loopback address nothing listens on
func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// rawAgent accepts one session, acks the hello and answers every data
// request with the given frame
func rawAgent(t *testing.T, reply protocol.Frame) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		limits := protocol.DefaultLimits()
		if _, err := protocol.ReadFrame(conn, limits); err != nil {
			return
		}
		if err := protocol.WriteFrame(conn, protocol.HelloAck(), limits); err != nil {
			return
		}
		for {
			if _, err := protocol.ReadFrame(conn, limits); err != nil {
				return
			}
			if err := protocol.WriteFrame(conn, reply, limits); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

// rawHelloHangup reads the client hello and closes the connection
// without acknowledging it
func rawHelloHangup(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = protocol.ReadFrame(conn, protocol.DefaultLimits())
			conn.Close()
		}
	}()
	return ln.Addr().String()
}

func selfSignedTLS(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "hostlink-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
	}
}

// writeCertPEM writes the server certificate of cfg as a PEM CA bundle
func writeCertPEM(t *testing.T, cfg *tls.Config) string {
	t.Helper()
	block := &pem.Block{Type: "CERTIFICATE", Bytes: cfg.Certificates[0].Certificate[0]}
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

// startSSHServer runs a minimal SSH server that accepts one password and
// answers exec requests from a fixed command table
func startSSHServer(t *testing.T, password string, outputs map[string]string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostKey, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return nil, nil
			}
			return nil, errRejected
		},
	}
	config.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(conn, config, outputs)
		}
	}()
	return ln.Addr().String()
}

var errRejected = &domain.Error{Kind: domain.ConnectionRefused, Message: "password rejected"}

func serveSSH(conn net.Conn, config *ssh.ServerConfig, outputs map[string]string) {
	defer conn.Close()
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			return
		}
		go func() {
			defer ch.Close()
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var exec struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &exec); err != nil {
					_ = req.Reply(false, nil)
					return
				}
				_ = req.Reply(true, nil)

				status := uint32(0)
				out, ok := outputs[exec.Command]
				if !ok {
					status = 127
				}
				_, _ = ch.Write([]byte(out))
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				return
			}
		}()
	}
}

// rawHangup accepts connections and closes them without a word
func rawHangup(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().String()
}

func splitHostPort(t *testing.T, addr string) (string, string, error) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	return host, port, nil
}
