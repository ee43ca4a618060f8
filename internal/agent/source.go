package agent

import (
	"context"
	"sync"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
	"hostlink/internal/facts"
	"hostlink/internal/watcher"
)

// DataSource produces the value served for a data request
type DataSource interface {
	Data(ctx context.Context) (domain.Value, error)
}

// LocalFacts serves facts gathered from the machine the agent runs on
type LocalFacts struct{}

func (LocalFacts) Data(ctx context.Context) (domain.Value, error) {
	return facts.Local(ctx)
}

// FileSource serves a JSON or YAML data file, re-read on every request
type FileSource struct {
	Path string
}

func (f FileSource) Data(ctx context.Context) (domain.Value, error) {
	return codec.OpenFile(f.Path)
}

// StaticSource serves a fixed value
type StaticSource struct {
	Value domain.Value
}

func (s StaticSource) Data(ctx context.Context) (domain.Value, error) {
	return s.Value, nil
}

// SourceFunc adapts a function to DataSource
type SourceFunc func(ctx context.Context) (domain.Value, error)

func (f SourceFunc) Data(ctx context.Context) (domain.Value, error) {
	return f(ctx)
}

// CachedFileSource serves a JSON or YAML data file, parsing it once and again
// only after Invalidate. Watch invalidates it whenever the file changes.
type CachedFileSource struct {
	Path string

	mu    sync.Mutex
	value *domain.Value
}

func NewCachedFileSource(path string) *CachedFileSource {
	return &CachedFileSource{Path: path}
}

func (c *CachedFileSource) Data(ctx context.Context) (domain.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value != nil {
		return *c.value, nil
	}
	v, err := codec.OpenFile(c.Path)
	if err != nil {
		return domain.Value{}, err
	}
	c.value = &v
	return v, nil
}

// Invalidate drops the cached value so the next request re-reads the file
func (c *CachedFileSource) Invalidate() {
	c.mu.Lock()
	c.value = nil
	c.mu.Unlock()
}

// Watch invalidates the cache on every change to the file until ctx ends
func (c *CachedFileSource) Watch(ctx context.Context) error {
	return watcher.New(c.Path, c.Invalidate).Watch(ctx)
}
