// Package watcher reports changes to a single file.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"hostlink/internal/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// changeOps are the events that can alter the file's content
const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Watcher calls a function when one file changes
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
	log      zerolog.Logger
}

// New returns a watcher for path; onChange runs on the Watch goroutine
func New(path string, onChange func()) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: defaultDebounce,
		log:      logging.For("watcher"),
	}
}

// WithDebounce sets the quiet period that ends a burst of events
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch calls onChange once per burst of events on the file. The parent
// directory is watched so that editors replacing the file are seen. It blocks
// until ctx is done and returns ctx.Err().
func (w *Watcher) Watch(ctx context.Context) error {
	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	w.log.Debug().Str("path", target).Msg("watching")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&changeOps == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.log.Debug().Str("path", target).Msg("file changed")
			w.onChange()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}
