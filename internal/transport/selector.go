// Package transport opens channels to managed hosts. A Selector turns
// connection parameters into exactly one open Channel, picking the transport
// from the connection mode: discovery, an explicit endpoint, or a bootstrap
// payload.
package transport

import (
	"context"
	"strings"
	"time"

	"hostlink/internal/domain"
	"hostlink/internal/logging"

	"github.com/rs/zerolog"
)

// Selector opens channels. It holds no connection state and is safe for
// concurrent use.
type Selector struct {
	cfg        Config
	discoverer Discoverer
	log        zerolog.Logger
}

// Option configures a Selector
type Option func(*Selector)

// WithDiscoverer sets the source of candidates for discovered connections
func WithDiscoverer(d Discoverer) Option {
	return func(s *Selector) {
		s.discoverer = d
	}
}

// WithLogger replaces the selector's logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Selector) {
		s.log = l
	}
}

// NewSelector creates a selector; zero config fields take their defaults
func NewSelector(cfg Config, opts ...Option) *Selector {
	cfg.applyDefaults()
	s := &Selector{
		cfg: cfg,
		log: logging.For("transport"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration
func (s *Selector) Config() Config {
	return s.cfg
}

// Connect opens a channel for params. Each call makes one attempt per
// candidate and never retries; the dial timeout bounds how long a single
// attempt can block.
func (s *Selector) Connect(ctx context.Context, params domain.ConnectionParams) (Channel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	switch params.Mode {
	case domain.ModeDiscovered:
		return s.connectDiscovered(ctx)
	case domain.ModeEndpoint:
		return s.connectEndpoint(ctx, params.Address, params.Descriptor)
	case domain.ModePayload:
		return s.connectPayload(ctx, params.PayloadBytes())
	}
	return nil, domain.Errorf(domain.Internal, "unknown connection mode %q", params.Mode)
}

func (s *Selector) connectEndpoint(ctx context.Context, address string, d domain.TransportDescriptor) (Channel, error) {
	address = strings.TrimSpace(address)
	d = s.cfg.withTLSDefaults(d)
	transport := d.Name()
	log := s.log.With().Str("address", address).Str("transport", transport).Logger()
	log.Debug().Msg("dialing endpoint")

	start := time.Now()
	var (
		ch  Channel
		err error
	)
	switch transport {
	case domain.TransportTCP, domain.TransportTLS:
		ch, err = dialAgent(ctx, address, d, s.cfg, s.log)
	case domain.TransportSSH:
		ch, err = dialSSH(ctx, address, d, s.cfg, s.log)
	default:
		err = domain.Errorf(domain.UnsupportedType, "unsupported transport %q", d.Transport)
	}
	if err != nil {
		e := domain.Classify(err)
		log.Debug().Str("kind", e.Kind.String()).Dur("elapsed", time.Since(start)).Msg(e.Message)
		return nil, e
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("channel open")
	return ch, nil
}

func (s *Selector) connectDiscovered(ctx context.Context) (Channel, error) {
	if s.discoverer == nil {
		return nil, domain.NewError(domain.DiscoveryFailed, "no discovery source configured")
	}

	candidates, err := s.discoverer.Discover(ctx)
	if err != nil {
		e := domain.Classify(err)
		if e.Kind == domain.Timeout {
			return nil, e
		}
		return nil, domain.Errorf(domain.DiscoveryFailed, "%s discovery: %s", s.discoverer.Name(), e.Message)
	}
	if len(candidates) == 0 {
		return nil, domain.Errorf(domain.DiscoveryFailed, "%s discovery found no management agent", s.discoverer.Name())
	}

	attempts := len(candidates)
	if attempts > s.cfg.MaxAttempts {
		attempts = s.cfg.MaxAttempts
	}

	var lastErr *domain.Error
	for _, c := range candidates[:attempts] {
		if err := ctx.Err(); err != nil {
			return nil, domain.Classify(err)
		}
		ch, err := s.connectEndpoint(ctx, c.Address, domain.TransportDescriptor{Transport: c.Transport})
		if err == nil {
			s.log.Info().Str("address", c.Address).Str("source", c.Source).Msg("discovered agent")
			return ch, nil
		}
		lastErr = domain.Classify(err)
		s.log.Debug().Str("address", c.Address).Str("kind", lastErr.Kind.String()).Msg("candidate rejected")
	}

	return nil, domain.Errorf(domain.DiscoveryFailed,
		"no management agent among %d candidate(s): last error %s", attempts, lastErr.Error())
}

func (s *Selector) connectPayload(ctx context.Context, blob []byte) (Channel, error) {
	b, err := ParseBootstrap(blob)
	if err != nil {
		return nil, err
	}

	if b.Data != nil {
		v, err := b.Data.Value()
		if err != nil {
			e := domain.Classify(err)
			return nil, domain.Errorf(domain.InvalidPayload, "inline data: %s", e.Message)
		}
		s.log.Debug().Str("kind", v.Kind().String()).Msg("payload carries inline data")
		return NewStaticChannel(v), nil
	}

	return s.connectEndpoint(ctx, b.Endpoint, b.Descriptor())
}
