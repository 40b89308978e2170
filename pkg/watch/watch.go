// Package watch reloads a plugin list when another program rewrites it.
//
// The game launcher and other mod tools write plugins.txt directly. Watcher observes
// the file's directory, since writers usually replace the file instead of writing it in
// place, and calls a reload function once changes have settled.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDelay is how long the file must stay unchanged before a reload.
const DefaultDelay = 500 * time.Millisecond

// ReloadFunc is called after the watched file changed.
type ReloadFunc func(ctx context.Context) error

// Watcher watches a single file.
type Watcher struct {
	path   string
	delay  time.Duration
	logger zerolog.Logger
	ready  chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.delay = d
	}
}

// New creates a watcher for path.
func New(path string, logger zerolog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		path:   filepath.Clean(path),
		delay:  DefaultDelay,
		logger: logger.With().Str("component", "watch").Str("path", path).Logger(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Ready is closed once the watcher is registered with the file system.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Watch blocks until ctx is cancelled, calling reload after each burst of changes to
// the file. Reload errors are logged and do not stop the watcher. Watch may only be
// called once per Watcher.
func (w *Watcher) Watch(ctx context.Context, reload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	close(w.ready)

	w.logger.Info().Msg("Watching plugin list")

	// Debounce reload events
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().Msg("Stopped watching plugin list")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug().
				Str("op", event.Op.String()).
				Msg("Plugin list changed")

			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := reload(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Failed to reload plugin list")
				continue
			}
			w.logger.Info().Msg("Plugin list reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// relevant reports whether event touches the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
