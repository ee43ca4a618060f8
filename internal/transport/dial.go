package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"hostlink/internal/domain"
)

// dialTCP opens a TCP connection bounded by the configured connect timeout
func dialTCP(ctx context.Context, address string, cfg Config) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifyDialError(address, err)
	}
	return conn, nil
}

// dialTLS opens a TCP connection and completes the TLS handshake within the
// connect timeout
func dialTLS(ctx context.Context, address string, d domain.TransportDescriptor, cfg Config) (net.Conn, error) {
	tlsCfg, err := clientTLSConfig(address, d)
	if err != nil {
		return nil, err
	}

	rawConn, err := dialTCP(ctx, address, cfg)
	if err != nil {
		return nil, err
	}

	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		if isTimeout(err) {
			return nil, domain.Wrap(domain.Timeout, err, "tls handshake with "+address)
		}
		return nil, domain.Wrap(domain.ConnectionRefused, err, "tls handshake with "+address)
	}
	return conn, nil
}

func clientTLSConfig(address string, d domain.TransportDescriptor) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: d.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(d.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return nil, domain.Wrap(domain.ConnectionRefused, err, "invalid address")
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(d.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, domain.Wrap(domain.Internal, err, "read tls ca bundle")
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, domain.Errorf(domain.Internal, "parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// classifyDialError maps a dial failure onto the error kinds. Anything that
// is not a timeout means the endpoint could not be opened.
func classifyDialError(address string, err error) *domain.Error {
	msg := fmt.Sprintf("dial %s", address)
	switch {
	case isTimeout(err):
		return domain.Wrap(domain.Timeout, err, msg)
	case errors.Is(err, context.Canceled):
		return domain.Wrap(domain.Internal, err, msg)
	default:
		return domain.Wrap(domain.ConnectionRefused, err, msg)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
