package transport

import (
	"context"
	"sync"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
)

// Channel is an open connection to a host's data source. A channel carries
// at most one request at a time; callers serialize access.
type Channel interface {
	// FetchData requests the host's current data and returns the type tag
	// and raw payload exactly as received
	FetchData(ctx context.Context) (domain.Kind, []byte, error)
	// Transport names the transport the channel runs over
	Transport() string
	// Close releases the channel. Closing twice is a no-op.
	Close() error
}

// closeState makes Close idempotent and lets FetchData observe it
type closeState struct {
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (s *closeState) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *closeState) close(fn func() error) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if fn != nil {
			err = fn()
		}
	})
	return err
}

func errClosed(transport string) error {
	return domain.Errorf(domain.ChannelClosed, "%s channel is closed", transport)
}

// StaticChannel serves a fixed value, such as inline data from a bootstrap
// payload
type StaticChannel struct {
	value domain.Value
	state closeState
}

// NewStaticChannel creates a channel that always returns v
func NewStaticChannel(v domain.Value) *StaticChannel {
	return &StaticChannel{value: v}
}

func (c *StaticChannel) FetchData(ctx context.Context) (domain.Kind, []byte, error) {
	if c.state.isClosed() {
		return 0, nil, errClosed(c.Transport())
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, domain.Classify(err)
	}
	tag, payload := codec.Encode(c.value)
	return tag, payload, nil
}

func (c *StaticChannel) Transport() string {
	return "static"
}

func (c *StaticChannel) Close() error {
	return c.state.close(nil)
}
