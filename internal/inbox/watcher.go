// Package inbox picks up legend images dropped into a folder.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultTick   = 250 * time.Millisecond
	defaultSettle = 300 * time.Millisecond
)

var supportedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".heic": true,
	".heif": true,
	".pdf":  true,
}

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Watcher delivers new image files in a directory to a Handler, one at a
// time, once they have stopped changing.
type Watcher struct {
	dir    string
	handle Handler
	tick   time.Duration
	settle time.Duration
}

// NewWatcher creates a Watcher for dir.
func NewWatcher(dir string, handle Handler) *Watcher {
	return NewWatcherWithTiming(dir, handle, defaultTick, defaultSettle)
}

// NewWatcherWithTiming creates a Watcher that checks pending files every tick
// and hands them over after settle without events.
func NewWatcherWithTiming(dir string, handle Handler, tick, settle time.Duration) *Watcher {
	return &Watcher{
		dir:    dir,
		handle: handle,
		tick:   tick,
		settle: settle,
	}
}

// IsSupported reports whether name has an extension the extractor can decode.
func IsSupported(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return supportedExts[strings.ToLower(filepath.Ext(base))]
}

// Run watches until ctx is done. Files already in the directory are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	slog.Info("Watching inbox", "dir", w.dir)

	files := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range files {
			w.process(ctx, path)
		}
	}()
	defer func() {
		close(files)
		wg.Wait()
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsSupported(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				select {
				case files <- path:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Inbox watch error", "error", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := w.handle(ctx, path); err != nil {
		slog.Error("Error processing inbox file", "path", path, "error", err)
		return
	}
	slog.Info("Processed inbox file", "path", path, "duration", time.Since(start))
}
