// Package file writes events as NDJSON segments on local disk.
//
// A segment rotates once it reaches the configured size and is renamed after
// the span of event times it holds, e.g.
// events.20260108T083123Z-20260108T091500Z.jsonl. Events can also be
// partitioned by the input file they were parsed from.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/output"
)

const (
	defaultBufSize = 64 * 1024 // 64KB
	defaultKeep    = 10
	spanLayout     = "20060102T150405Z"
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the segment size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithKeep sets how many rotated segments are kept per partition. Older
// segments rotated by this Output are removed. Default: 10.
func WithKeep(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.keep = n
		}
	}
}

// WithPartitionBySource writes events to one file per input file, named
// after the input's base name: zoom-cr101.log.gz goes to events.zoom-cr101.jsonl.
// Events without a source file go to the base path.
func WithPartitionBySource() Option {
	return func(o *Output) { o.bySource = true }
}

// segment is one active NDJSON file and the event time span written to it.
type segment struct {
	path     string
	f        *os.File
	w        *bufio.Writer
	written  int64
	from, to time.Time
	rotated  []string
}

func (s *segment) observe(ts time.Time) {
	if s.from.IsZero() || ts.Before(s.from) {
		s.from = ts
	}
	if ts.After(s.to) {
		s.to = ts
	}
}

// Output writes NDJSON with buffered I/O. Safe for concurrent use.
type Output struct {
	mu        sync.Mutex
	path      string
	verbosity output.Verbosity
	maxSize   int64 // 0 = no rotation
	bufSize   int
	keep      int
	bySource  bool
	segments  map[string]*segment
}

// New creates a file output rooted at path. The base file is opened
// immediately so a bad path fails here rather than on the first write.
func New(path string, verbosity output.Verbosity, opts ...Option) (*Output, error) {
	o := &Output{
		path:      path,
		verbosity: verbosity,
		bufSize:   defaultBufSize,
		keep:      defaultKeep,
		segments:  make(map[string]*segment),
	}
	for _, opt := range opts {
		opt(o)
	}
	if _, err := o.segment(""); err != nil {
		return nil, err
	}
	return o, nil
}

// Path returns the base file path.
func (o *Output) Path() string { return o.path }

// PartitionPath returns the active file that events parsed from source are
// written to.
func (o *Output) PartitionPath(source string) string {
	if !o.bySource {
		return o.path
	}
	return o.partitionPath(sourceKey(source))
}

// Write JSON-encodes the event and appends it as a line to its segment.
func (o *Output) Write(_ context.Context, event model.Event) error {
	data, err := json.Marshal(output.FormatEvent(event, o.verbosity))
	if err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	key := ""
	if o.bySource {
		key = sourceKey(event.Raw.SourceFile)
	}
	seg, err := o.segment(key)
	if err != nil {
		return err
	}
	if o.maxSize > 0 && seg.written > 0 && seg.written+int64(len(data)) > o.maxSize {
		if err := o.rotate(seg); err != nil {
			return fmt.Errorf("file output: rotate %s: %w", seg.path, err)
		}
	}

	n, err := seg.w.Write(data)
	seg.written += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	seg.observe(event.Timestamp)
	return nil
}

// Close flushes and closes every segment.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for _, seg := range o.segments {
		if err := seg.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("file output: flush %s: %w", seg.path, err))
		}
		if err := seg.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("file output: close %s: %w", seg.path, err))
		}
	}
	return errors.Join(errs...)
}

// segment returns the open segment for key, opening it on first use.
func (o *Output) segment(key string) (*segment, error) {
	if seg, ok := o.segments[key]; ok {
		return seg, nil
	}
	seg := &segment{path: o.partitionPath(key)}
	if err := o.open(seg); err != nil {
		return nil, err
	}
	o.segments[key] = seg
	return seg, nil
}

// open (re)opens seg.path for appending.
func (o *Output) open(seg *segment) error {
	f, err := os.OpenFile(seg.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", seg.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", seg.path, err)
	}
	seg.f = f
	seg.w = bufio.NewWriterSize(f, o.bufSize)
	seg.written = info.Size()
	seg.from, seg.to = time.Time{}, time.Time{}
	if seg.written > 0 {
		// Lines from an earlier run: their span is unknown, so the file's
		// modification time stands in until new events arrive.
		seg.from, seg.to = info.ModTime().UTC(), info.ModTime().UTC()
	}
	return nil
}

// rotate closes seg, renames it after its event span and opens a fresh file.
func (o *Output) rotate(seg *segment) error {
	if err := seg.w.Flush(); err != nil {
		return err
	}
	if err := seg.f.Close(); err != nil {
		return err
	}

	dest := spanPath(seg.path, seg.from, seg.to)
	if err := os.Rename(seg.path, dest); err != nil {
		return err
	}
	seg.rotated = append(seg.rotated, dest)
	for len(seg.rotated) > o.keep {
		os.Remove(seg.rotated[0]) // already gone is fine
		seg.rotated = seg.rotated[1:]
	}
	return o.open(seg)
}

func (o *Output) partitionPath(key string) string {
	if key == "" {
		return o.path
	}
	ext := filepath.Ext(o.path)
	return strings.TrimSuffix(o.path, ext) + "." + key + ext
}

// spanPath names a rotated segment after the first and last event times it
// holds, adding a counter when that name is taken.
func spanPath(path string, from, to time.Time) string {
	ext := filepath.Ext(path)
	name := fmt.Sprintf("%s.%s-%s", strings.TrimSuffix(path, ext),
		from.UTC().Format(spanLayout), to.UTC().Format(spanLayout))
	candidate := name + ext
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", name, i, ext)
	}
}

// sourceKey turns an input path into a file-name-safe partition key: the
// lower-cased base name without extensions.
func sourceKey(source string) string {
	if source == "" {
		return ""
	}
	base := filepath.Base(source)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.ToLower(base))
}
