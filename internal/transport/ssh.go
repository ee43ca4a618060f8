package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
	"hostlink/internal/facts"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHChannel gathers facts agentlessly by running the fact commands over SSH
type SSHChannel struct {
	client   *ssh.Client
	address  string
	gatherer *facts.Gatherer
	state    closeState
	log      zerolog.Logger
}

// dialSSH establishes an SSH connection using the descriptor's credentials,
// falling back to the configured defaults. Supports key and password auth.
func dialSSH(ctx context.Context, address string, d domain.TransportDescriptor, cfg Config, log zerolog.Logger) (*SSHChannel, error) {
	address = withDefaultPort(address, cfg.SSH.Port)

	config, err := buildSSHConfig(d, cfg)
	if err != nil {
		return nil, err
	}

	conn, err := dialTCP(ctx, address, cfg)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		if isTimeout(err) {
			return nil, domain.Wrap(domain.Timeout, err, "ssh handshake with "+address)
		}
		return nil, domain.Wrap(domain.ConnectionRefused, err, "ssh handshake with "+address)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	g := facts.NewGatherer(&sshRunner{client: client})
	g.CommandTimeout = cfg.SSH.CommandTimeout

	return &SSHChannel{
		client:   client,
		address:  address,
		gatherer: g,
		log:      log.With().Str("address", address).Str("transport", domain.TransportSSH).Logger(),
	}, nil
}

// buildSSHConfig creates an SSH client config. A private key takes precedence
// over a password when both are present.
func buildSSHConfig(d domain.TransportDescriptor, cfg Config) (*ssh.ClientConfig, error) {
	user := d.User
	if user == "" {
		user = cfg.SSH.User
	}
	if user == "" {
		return nil, domain.NewError(domain.ConnectionRefused, "ssh username not configured")
	}

	var auth []ssh.AuthMethod

	key := d.PrivateKey
	passphrase := d.Passphrase
	if len(key) == 0 && cfg.SSH.KeyFile != "" {
		data, err := os.ReadFile(cfg.SSH.KeyFile)
		if err != nil {
			return nil, domain.Wrap(domain.ConnectionRefused, err, "read ssh key")
		}
		key = data
		if passphrase == "" {
			passphrase = cfg.SSH.Passphrase
		}
	}
	if len(key) > 0 {
		var (
			signer ssh.Signer
			err    error
		)
		if passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, domain.Wrap(domain.ConnectionRefused, err, "failed to parse private key")
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	password := d.Password
	if password == "" {
		password = cfg.SSH.Password
	}
	if password != "" {
		auth = append(auth, ssh.Password(password))
	}

	if len(auth) == 0 {
		return nil, domain.NewError(domain.ConnectionRefused, "no ssh credentials configured")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.SSH.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.SSH.KnownHostsFile)
		if err != nil {
			return nil, domain.Wrap(domain.Internal, err, "load known_hosts")
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.ConnectTimeout,
	}, nil
}

// FetchData runs the fact commands and returns the merged facts as a Map
func (c *SSHChannel) FetchData(ctx context.Context) (domain.Kind, []byte, error) {
	if c.state.isClosed() {
		return 0, nil, errClosed(domain.TransportSSH)
	}
	v, err := c.gatherer.Gather(ctx)
	if err != nil {
		if c.state.isClosed() {
			return 0, nil, errClosed(domain.TransportSSH)
		}
		return 0, nil, err
	}
	c.log.Debug().Int("facts", v.Len()).Msg("facts gathered over ssh")
	tag, payload := codec.Encode(v)
	return tag, payload, nil
}

func (c *SSHChannel) Transport() string {
	return domain.TransportSSH
}

func (c *SSHChannel) Close() error {
	return c.state.close(c.client.Close)
}

// sshRunner executes fact commands in fresh sessions on one client
type sshRunner struct {
	client *ssh.Client
}

func (r *sshRunner) Run(ctx context.Context, cmd string) (string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			// a non-zero exit still produced usable output
			var exitErr *ssh.ExitError
			if errors.As(res.err, &exitErr) {
				return string(res.output), nil
			}
			return "", fmt.Errorf("command failed: %w", res.err)
		}
		return string(res.output), nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}

func withDefaultPort(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}
