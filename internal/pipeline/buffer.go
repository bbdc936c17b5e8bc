package pipeline

import (
	"sort"
	"sync"
	"time"
)

// pathBuffer collects changed file paths and releases them as one sorted,
// de-duplicated batch once the debounce window has elapsed since the first
// pending change.
type pathBuffer struct {
	window  time.Duration
	maxSize int // 0 means unlimited

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

func newPathBuffer(window time.Duration, maxSize int) *pathBuffer {
	return &pathBuffer{
		window:  window,
		maxSize: maxSize,
		pending: make(map[string]struct{}),
	}
}

// add records a path. If this is the first pending path, starts the flush
// timer. Returns true if the buffer is full and needs flushing now.
func (b *pathBuffer) add(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[path] = struct{}{}
	if b.timer == nil {
		b.timer = time.NewTimer(b.window)
	}
	return b.maxSize > 0 && len(b.pending) >= b.maxSize
}

// flushCh returns the timer's channel, or nil if no timer is active.
func (b *pathBuffer) flushCh() <-chan time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// take empties the buffer and returns its paths in sorted order.
func (b *pathBuffer) take() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	paths := make([]string, 0, len(b.pending))
	for p := range b.pending {
		paths = append(paths, p)
	}
	clear(b.pending)
	sort.Strings(paths)
	return paths
}
