// Package host is the session layer. A Host owns one open transport channel
// and hands back the managed machine's data as a typed value.
package host

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
	"hostlink/internal/logging"
	"hostlink/internal/metrics"
	"hostlink/internal/transport"

	"github.com/rs/zerolog"
)

// Options configures the connect helpers. A zero Options uses the default
// transport configuration and no discovery source.
type Options struct {
	Config     transport.Config
	Discoverer transport.Discoverer
	Logger     *zerolog.Logger
}

func (o Options) selector() *transport.Selector {
	cfg := o.Config
	if cfg == (transport.Config{}) {
		cfg = transport.DefaultConfig()
	}
	var opts []transport.Option
	if o.Discoverer != nil {
		opts = append(opts, transport.WithDiscoverer(o.Discoverer))
	}
	if o.Logger != nil {
		opts = append(opts, transport.WithLogger(*o.Logger))
	}
	return transport.NewSelector(cfg, opts...)
}

// Host is a connected session. Requests are serialized: at most one is in
// flight on the channel at any time.
type Host struct {
	mu     sync.Mutex
	ch     transport.Channel
	cached *domain.Value
	closed atomic.Bool
	log    zerolog.Logger
}

// New wraps an open channel
func New(ch transport.Channel) (*Host, error) {
	if ch == nil {
		return nil, domain.NewError(domain.Internal, "host requires an open channel")
	}
	return &Host{
		ch:  ch,
		log: logging.For("host").With().Str("transport", ch.Transport()).Logger(),
	}, nil
}

// Connect opens a session to a management agent found by discovery
func Connect(ctx context.Context, opts Options) (*Host, error) {
	return Open(ctx, opts.selector(), domain.Discovered())
}

// ConnectEndpoint opens a session to an explicit address
func ConnectEndpoint(ctx context.Context, address string, d domain.TransportDescriptor, opts Options) (*Host, error) {
	return Open(ctx, opts.selector(), domain.Endpoint(address, d))
}

// ConnectPayload opens a session described by a bootstrap payload blob
func ConnectPayload(ctx context.Context, blob []byte, opts Options) (*Host, error) {
	return Open(ctx, opts.selector(), domain.Payload(blob))
}

// Open connects with sel and wraps the resulting channel. A nil sel uses the
// default configuration.
func Open(ctx context.Context, sel *transport.Selector, params domain.ConnectionParams) (*Host, error) {
	if sel == nil {
		sel = transport.NewSelector(transport.DefaultConfig())
	}

	start := time.Now()
	ch, err := sel.Connect(ctx, params)
	if err != nil {
		e := domain.Classify(err)
		metrics.RecordConnect(string(params.Mode), attemptedTransport(params), e.Kind.String(), time.Since(start))
		return nil, e
	}
	metrics.RecordConnect(string(params.Mode), ch.Transport(), metrics.ResultOK, time.Since(start))
	return New(ch)
}

func attemptedTransport(params domain.ConnectionParams) string {
	if params.Mode == domain.ModeEndpoint {
		return params.Descriptor.Name()
	}
	return "none"
}

// Data returns the host's data. The first successful fetch is cached and
// later calls return the cached value until Refresh.
func (h *Host) Data(ctx context.Context) (domain.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return domain.Value{}, domain.NewError(domain.ChannelClosed, "host released")
	}
	if h.cached != nil {
		return *h.cached, nil
	}
	return h.fetch(ctx)
}

// Refresh fetches the data again and replaces the cached value. On failure
// the previous value stays cached.
func (h *Host) Refresh(ctx context.Context) (domain.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return domain.Value{}, domain.NewError(domain.ChannelClosed, "host released")
	}
	return h.fetch(ctx)
}

// DataAt returns the value at a JSON pointer inside the host's data
func (h *Host) DataAt(ctx context.Context, pointer string) (domain.Value, error) {
	v, err := h.Data(ctx)
	if err != nil {
		return domain.Value{}, err
	}
	return v.Lookup(pointer)
}

// fetch must be called with mu held
func (h *Host) fetch(ctx context.Context) (v domain.Value, err error) {
	source := h.ch.Transport()
	defer func() {
		if r := recover(); r != nil {
			err = domain.Errorf(domain.Internal, "data fetch panicked: %v", r)
		}
		if err != nil {
			e := domain.Classify(err)
			if h.closed.Load() && e.Kind != domain.ChannelClosed {
				e = domain.Wrap(domain.ChannelClosed, e, "host released during request")
			}
			err = e
			metrics.RecordData(source, e.Kind.String())
			h.log.Debug().Str("kind", e.Kind.String()).Msg(e.Message)
			return
		}
		metrics.RecordData(source, metrics.ResultOK)
	}()

	tag, payload, err := h.ch.FetchData(ctx)
	if err != nil {
		return domain.Value{}, err
	}
	v, err = codec.Decode(payload, tag)
	if err != nil {
		return domain.Value{}, err
	}

	h.cached = &v
	h.log.Debug().Str("kind", v.Kind().String()).Int("bytes", len(payload)).Msg("data fetched")
	return v, nil
}

// Release closes the channel and drops the cached value. Releasing twice is
// a no-op. Calls to Data after Release fail with ChannelClosed.
func (h *Host) Release() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := h.ch.Close()

	h.mu.Lock()
	h.cached = nil
	h.mu.Unlock()

	if err != nil {
		return domain.Wrap(domain.Internal, err, "close channel")
	}
	h.log.Debug().Msg("released")
	return nil
}

// Transport names the transport the session runs over
func (h *Host) Transport() string {
	return h.ch.Transport()
}
