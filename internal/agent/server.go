// Package agent implements the management agent: a TCP or TLS server that
// answers data requests from hostlink clients with its host's typed data.
package agent

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
	"hostlink/internal/logging"
	"hostlink/internal/metrics"
	"hostlink/internal/protocol"

	"github.com/rs/zerolog"
)

// Config controls the agent listener and sessions
type Config struct {
	ListenAddr string
	// Token must match the client hello; empty accepts any client
	Token            string
	HandshakeTimeout time.Duration
	// IdleTimeout closes sessions with no request for this long
	IdleTimeout time.Duration
	// RequestTimeout bounds producing one response
	RequestTimeout time.Duration
	TLS            *tls.Config
	Limits         protocol.Limits
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ListenAddr:       "127.0.0.1:7101",
		HandshakeTimeout: 5 * time.Second,
		IdleTimeout:      5 * time.Minute,
		RequestTimeout:   30 * time.Second,
		Limits:           protocol.DefaultLimits(),
	}
}

// Server answers client sessions, one goroutine per connection
type Server struct {
	cfg    Config
	source DataSource
	log    zerolog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New creates an agent server; zero config fields take their defaults
func New(cfg Config, source DataSource) *Server {
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = def.Limits
	}
	return &Server{
		cfg:    cfg,
		source: source,
		log:    logging.For("agent"),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen opens the TCP or TLS listener for the configured address
func (s *Server) Listen() (net.Listener, error) {
	if s.cfg.TLS == nil {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, s.cfg.TLS)
}

// ListenAndServe listens on the configured address and serves until ctx ends
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts sessions on ln until ctx ends or the listener fails. Open
// sessions are closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.log.Info().Str("addr", ln.Addr().String()).Bool("tls", s.cfg.TLS != nil).Msg("agent listening")

	stop := context.AfterFunc(ctx, func() {
		s.closeAllConns()
		_ = ln.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer s.closeAllConns()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	metrics.AgentConnOpened()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	metrics.AgentConnClosed()
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.untrackConn(conn)
	defer conn.Close()

	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	if err := s.handshake(conn); err != nil {
		log.Warn().Err(err).Msg("hello rejected")
		return
	}
	log.Debug().Msg("session open")

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		f, err := protocol.ReadFrame(conn, s.cfg.Limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("session read ended")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Time{})

		if f.Type != protocol.MsgDataRequest {
			metrics.RecordAgentRequest(f.Type.String(), domain.InvalidPayload.String())
			_ = s.write(conn, protocol.ErrorFrame(domain.Errorf(domain.InvalidPayload, "unexpected %s frame", f.Type)))
			return
		}

		reply := s.respond(ctx)
		if err := s.write(conn, reply); err != nil {
			log.Debug().Err(err).Msg("write response failed")
			return
		}
	}
}

func (s *Server) handshake(conn net.Conn) error {
	_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	f, err := protocol.ReadFrame(conn, s.cfg.Limits)
	if err != nil {
		return err
	}
	if f.Type != protocol.MsgHello {
		metrics.RecordAgentRequest(f.Type.String(), domain.ConnectionRefused.String())
		e := domain.Errorf(domain.ConnectionRefused, "expected hello, got %s", f.Type)
		_ = s.write(conn, protocol.ErrorFrame(e))
		return e
	}
	if s.cfg.Token != "" && subtle.ConstantTimeCompare(f.Payload, []byte(s.cfg.Token)) != 1 {
		metrics.RecordAgentRequest(f.Type.String(), domain.ConnectionRefused.String())
		e := domain.NewError(domain.ConnectionRefused, "agent rejected token")
		_ = s.write(conn, protocol.ErrorFrame(e))
		return e
	}
	metrics.RecordAgentRequest(f.Type.String(), metrics.ResultOK)
	return s.write(conn, protocol.HelloAck())
}

// respond builds the reply frame for one data request
func (s *Server) respond(ctx context.Context) protocol.Frame {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	v, err := s.source.Data(reqCtx)
	if err != nil {
		e := domain.Classify(err)
		s.log.Warn().Str("kind", e.Kind.String()).Msg(e.Message)
		metrics.RecordAgentRequest(protocol.MsgDataRequest.String(), e.Kind.String())
		return protocol.ErrorFrame(e)
	}

	tag, payload := codec.Encode(v)
	if uint64(len(payload)) > uint64(s.cfg.Limits.MaxPayloadBytes) {
		e := domain.Errorf(domain.Internal, "data of %d bytes exceeds the frame limit", len(payload))
		metrics.RecordAgentRequest(protocol.MsgDataRequest.String(), e.Kind.String())
		return protocol.ErrorFrame(e)
	}
	metrics.RecordAgentRequest(protocol.MsgDataRequest.String(), metrics.ResultOK)
	return protocol.DataResponse(tag, payload)
}

func (s *Server) write(conn net.Conn, f protocol.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return protocol.WriteFrame(conn, f, s.cfg.Limits)
}
