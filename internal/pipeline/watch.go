package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/output"
)

const (
	defaultDebounce = 500 * time.Millisecond
	maxPendingPaths = 256
)

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	onBatch  func(*Result)
}

// WithDebounce sets how long Watch waits after the first change before
// ingesting. Default: 500ms.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) { c.debounce = d }
}

// WithOnBatch registers a callback receiving every ingestion result.
func WithOnBatch(f func(*Result)) WatchOption {
	return func(c *watchConfig) { c.onBatch = f }
}

// Watch ingests files in dir as they are created or written, until ctx is
// done. Files are re-parsed whole on each change; events whose provenance
// (file, line number, raw line) was already emitted are not written again.
// Existing files are ingested once at start.
func (p *Pipeline) Watch(ctx context.Context, dir string, opts ...WatchOption) error {
	cfg := watchConfig{debounce: defaultDebounce}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pipeline: watch: %w", err)
	}
	defer w.Close()
	if err := p.addWatches(w, dir); err != nil {
		return err
	}

	seen := newSeenSet()
	ingest := func(paths []string) error {
		if len(paths) == 0 {
			return nil
		}
		dedup := &dedupOutput{inner: p.out, seen: seen}
		run := *p
		run.out = dedup
		res, err := run.IngestPaths(ctx, paths)
		if err != nil {
			return err
		}
		res.Stats.EventsWritten = dedup.written
		if cfg.onBatch != nil {
			cfg.onBatch(res)
		}
		return nil
	}

	if err := ingest([]string{dir}); err != nil {
		return err
	}
	slog.Info("watching for log files", "dir", dir, "recursive", p.recursive)

	buf := newPathBuffer(cfg.debounce, maxPendingPaths)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if p.handleNewDir(w, ev.Name) || !p.wanted(ev.Name) {
				continue
			}
			if buf.add(ev.Name) {
				if err := ingest(existing(buf.take())); err != nil {
					return err
				}
			}
		case <-buf.flushCh():
			if err := ingest(existing(buf.take())); err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "dir", dir, "error", err)
		}
	}
}

func (p *Pipeline) addWatches(w *fsnotify.Watcher, dir string) error {
	if !p.recursive {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("pipeline: watch %s: %w", dir, err)
		}
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("pipeline: watch %s: %w", path, err)
		}
		return nil
	})
}

// handleNewDir starts watching a directory created under a recursive watch.
func (p *Pipeline) handleNewDir(w *fsnotify.Watcher, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if p.recursive {
		if err := p.addWatches(w, path); err != nil {
			slog.Warn("watch new directory", "dir", path, "error", err)
		}
	}
	return true
}

func (p *Pipeline) wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if p.pattern == "" {
		return true
	}
	ok, _ := filepath.Match(p.pattern, base)
	return ok
}

// existing drops paths that were removed before the batch ran.
func existing(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}

// seenSet remembers the provenance of emitted events.
type seenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newSeenSet() *seenSet { return &seenSet{keys: make(map[string]struct{})} }

// mark records e and reports whether it was new.
func (s *seenSet) mark(e model.Event) bool {
	key := e.Raw.SourceFile + "\x00" + strconv.Itoa(e.Raw.LineNumber) + "\x00" + e.Raw.Line
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// dedupOutput forwards only events not emitted before.
type dedupOutput struct {
	inner   output.Output
	seen    *seenSet
	written int
}

func (d *dedupOutput) Write(ctx context.Context, e model.Event) error {
	if !d.seen.mark(e) {
		return nil
	}
	d.written++
	if d.inner == nil {
		return nil
	}
	return d.inner.Write(ctx, e)
}

func (d *dedupOutput) Close() error { return nil }
