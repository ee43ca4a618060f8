package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"hostlink/internal/domain"
	"hostlink/internal/protocol"

	"github.com/rs/zerolog"
)

// AgentChannel speaks the framed agent protocol over a TCP or TLS connection
type AgentChannel struct {
	conn      net.Conn
	transport string
	address   string
	cfg       Config
	state     closeState
	log       zerolog.Logger
}

// dialAgent connects to an agent and completes the hello exchange
func dialAgent(ctx context.Context, address string, d domain.TransportDescriptor, cfg Config, log zerolog.Logger) (*AgentChannel, error) {
	var (
		conn net.Conn
		err  error
	)
	transport := d.Name()
	if transport == domain.TransportTLS {
		conn, err = dialTLS(ctx, address, d, cfg)
	} else {
		conn, err = dialTCP(ctx, address, cfg)
	}
	if err != nil {
		return nil, err
	}

	token := d.Token
	if token == "" {
		token = cfg.Token
	}
	if err := hello(ctx, conn, token, cfg); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &AgentChannel{
		conn:      conn,
		transport: transport,
		address:   address,
		cfg:       cfg,
		log:       log.With().Str("address", address).Str("transport", transport).Logger(),
	}, nil
}

func hello(ctx context.Context, conn net.Conn, token string, cfg Config) error {
	deadline := time.Now().Add(cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})

	if err := protocol.WriteFrame(conn, protocol.Hello(token), cfg.Limits); err != nil {
		return handshakeError("send hello", err)
	}
	f, err := protocol.ReadFrame(conn, cfg.Limits)
	if err != nil {
		return handshakeError("read hello ack", err)
	}

	switch f.Type {
	case protocol.MsgHelloAck:
		return nil
	case protocol.MsgError:
		return protocol.ParseError(f.Payload)
	}
	return domain.Errorf(domain.Internal, "unexpected %s frame during hello", f.Type)
}

// handshakeError reports a peer that never completed the hello as refused
func handshakeError(op string, err error) error {
	if isTimeout(err) {
		return domain.Wrap(domain.Timeout, err, op)
	}
	return domain.Wrap(domain.ConnectionRefused, err, op)
}

// FetchData sends a data request and waits for the tagged response. The
// request deadline is the earlier of ctx's deadline and the read timeout.
func (c *AgentChannel) FetchData(ctx context.Context) (domain.Kind, []byte, error) {
	if c.state.isClosed() {
		return 0, nil, errClosed(c.transport)
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, domain.Classify(err)
	}

	deadline := time.Now().Add(c.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	// unblock the read if ctx is canceled before the deadline
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := protocol.WriteFrame(c.conn, protocol.DataRequest(), c.cfg.Limits); err != nil {
		return 0, nil, c.fail(ctx, "send data request", err)
	}
	f, err := protocol.ReadFrame(c.conn, c.cfg.Limits)
	if err != nil {
		return 0, nil, c.fail(ctx, "read data response", err)
	}

	switch f.Type {
	case protocol.MsgDataResponse:
		c.log.Debug().Uint8("tag", f.Tag).Int("bytes", len(f.Payload)).Msg("data response")
		return domain.Kind(f.Tag), f.Payload, nil
	case protocol.MsgError:
		return 0, nil, protocol.ParseError(f.Payload)
	}
	_ = c.state.close(c.conn.Close)
	return 0, nil, domain.Errorf(domain.Internal, "unexpected %s frame in reply to data request", f.Type)
}

// fail closes the connection after an I/O error. A late reply or a partly
// read frame may still be on the stream, so it cannot carry another request;
// later calls report ChannelClosed.
func (c *AgentChannel) fail(ctx context.Context, op string, err error) error {
	if c.state.isClosed() {
		return errClosed(c.transport)
	}
	_ = c.state.close(c.conn.Close)
	c.log.Debug().Err(err).Str("op", op).Msg("closing channel after failed request")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Wrap(domain.KindOf(ctxErr), ctxErr, op)
	}
	return classifyIOError(op, err)
}

func (c *AgentChannel) Transport() string {
	return c.transport
}

// RemoteAddr reports the agent address this channel was dialed to
func (c *AgentChannel) RemoteAddr() string {
	return c.address
}

func (c *AgentChannel) Close() error {
	return c.state.close(c.conn.Close)
}

// classifyIOError maps read/write failures on an established connection
func classifyIOError(op string, err error) error {
	switch {
	case isTimeout(err):
		return domain.Wrap(domain.Timeout, err, op)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return domain.Wrap(domain.ChannelClosed, err, op)
	case errors.Is(err, protocol.ErrShortHeader), errors.Is(err, protocol.ErrShortPayload):
		return domain.Wrap(domain.ChannelClosed, err, op)
	case errors.Is(err, protocol.ErrBadMagic), errors.Is(err, protocol.ErrBadVersion), errors.Is(err, protocol.ErrPayloadTooLarge):
		return domain.Wrap(domain.DecodeError, err, op)
	}
	return domain.Wrap(domain.Internal, err, op)
}
