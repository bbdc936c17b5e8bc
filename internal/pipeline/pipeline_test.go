package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
	_ "github.com/crimson-sun/avrca/internal/parser/all"
)

const (
	zoomDHCP    = "2026-01-08T08:31:23Z [ERROR] Room: CR-205 | DHCP timeout"
	zoomOK      = "2026-01-08T14:23:45Z [INFO] Room: CR-101 | ZoomRoom connected successfully"
	qsysRouting = "2026-01-08 14:23:45.123 [INFO] Core-110f (10.1.5.50): Audio routing updated - Room CR-101"
)

type mockOutput struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (m *mockOutput) Write(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockOutput) Close() error { return nil }

func (m *mockOutput) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Event(nil), m.events...)
}

// tagEnricher marks every event it sees.
type tagEnricher struct{}

func (tagEnricher) Enrich(e model.Event) model.Event {
	e.Location.Building = "HQ"
	return e
}

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var data []byte
	for _, l := range lines {
		data = append(data, l...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func fixtureDir(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zoom.log"), zoomDHCP, "not a log line", zoomOK)
	writeFile(t, filepath.Join(dir, "core-110f.log"), qsysRouting)
	writeFile(t, filepath.Join(dir, "pasted.txt"), "whatever")
	writeFile(t, filepath.Join(dir, ".hidden-zoom.log"), zoomOK)
	writeFile(t, filepath.Join(dir, "sub", "zoom-2.log"), zoomOK)
	return dir
}

func TestIngestPaths(t *testing.T) {
	dir := fixtureDir(t)
	out := &mockOutput{}
	p := New(WithOutput(out), WithEnricher(tagEnricher{}), WithWorkers(2))

	res, err := p.IngestPaths(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, Stats{
		FilesProcessed: 2,
		FilesSkipped:   1,
		TotalEvents:    3,
		ParseErrors:    1,
		EventsWritten:  3,
	}, res.Stats)
	assert.Equal(t, []string{filepath.Join(dir, "pasted.txt")}, res.Skipped)

	require.Len(t, res.Results, 2)
	assert.Equal(t, "qsys", res.Results[0].ParserName)
	assert.Equal(t, "zoom", res.Results[1].ParserName)
	assert.Equal(t, 2, res.Results[1].Errors[0].LineNumber)

	require.Len(t, res.Events, 3)
	assert.Equal(t, "qsys", res.Events[0].SourceVendor)
	for _, e := range res.Events {
		assert.Equal(t, "HQ", e.Location.Building)
	}
	assert.Equal(t, res.Events, out.Events())
}

func TestIngestPathsRecursiveWithPattern(t *testing.T) {
	dir := fixtureDir(t)
	p := New(WithRecursive(true), WithPattern("*.log"))

	files, err := p.Expand([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "core-110f.log"),
		filepath.Join(dir, "sub", "zoom-2.log"),
		filepath.Join(dir, "zoom.log"),
	}, files)

	res, err := p.IngestPaths(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.FilesProcessed)
	assert.Zero(t, res.Stats.FilesSkipped)
	assert.Equal(t, 4, res.Stats.TotalEvents)
	assert.Zero(t, res.Stats.EventsWritten, "no sink configured")
}

func TestExpandExplicitFilesAndDuplicates(t *testing.T) {
	dir := fixtureDir(t)
	p := New(WithPattern("*.csv"))
	f := filepath.Join(dir, "zoom.log")

	files, err := p.Expand([]string{f, f})
	require.NoError(t, err)
	assert.Equal(t, []string{f}, files)

	_, err = p.Expand([]string{filepath.Join(dir, "missing.log")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIngestPathsSinkError(t *testing.T) {
	dir := fixtureDir(t)
	boom := errors.New("sink down")
	p := New(WithOutput(&mockOutput{err: boom}))

	_, err := p.IngestPaths(context.Background(), []string{dir})
	assert.ErrorIs(t, err, boom)
}

func TestIngestPathsCanceled(t *testing.T) {
	dir := fixtureDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().IngestPaths(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestText(t *testing.T) {
	out := &mockOutput{}
	p := New(WithOutput(out))

	res, err := p.IngestText(context.Background(), zoomDHCP+"\n"+zoomOK+"\n", "zoom", "")
	require.NoError(t, err)
	assert.Len(t, res.Events, 2)
	assert.Equal(t, "text_input", res.SourceFile)
	assert.Len(t, out.Events(), 2)

	_, err = p.IngestText(context.Background(), zoomDHCP, "nope", "")
	assert.ErrorIs(t, err, parser.ErrUnknownParser)
}

func TestIngestTextStampsIngestedAt(t *testing.T) {
	at := time.Date(2026, 1, 8, 15, 0, 0, 0, time.FixedZone("EST", -5*3600))
	out := &mockOutput{}
	p := New(WithOutput(out), WithClock(func() time.Time { return at }))

	res, err := p.IngestText(context.Background(), zoomDHCP+"\n"+zoomOK+"\n", "zoom", "")
	require.NoError(t, err)
	for _, ev := range append(res.Events, out.Events()...) {
		assert.Equal(t, at.UTC(), ev.IngestedAt)
		assert.Equal(t, time.UTC, ev.IngestedAt.Location())
	}
}

func TestAnalyze(t *testing.T) {
	p := New(WithWindow(time.Minute))
	res, err := p.IngestText(context.Background(), zoomDHCP+"\n"+zoomOK+"\n", "zoom", "paste")
	require.NoError(t, err)

	a := p.Analyze(context.Background(), res.Events, "camera offline")
	assert.Equal(t, 2, a.TotalEventsAnalyzed)
	assert.Contains(t, a.Summary, "Analysis of: 'camera offline'")
	assert.Positive(t, a.RootCause.Confidence)

	empty := p.Analyze(context.Background(), nil, "")
	assert.Zero(t, empty.TotalEventsAnalyzed)
	assert.NoError(t, p.Close())
}

func TestPathBuffer(t *testing.T) {
	b := newPathBuffer(time.Hour, 3)
	assert.Nil(t, b.flushCh())

	assert.False(t, b.add("b.log"))
	assert.NotNil(t, b.flushCh())
	assert.False(t, b.add("a.log"))
	assert.False(t, b.add("b.log"), "duplicates do not count")
	assert.True(t, b.add("c.log"))

	assert.Equal(t, []string{"a.log", "b.log", "c.log"}, b.take())
	assert.Nil(t, b.flushCh())
	assert.Empty(t, b.take())
}

func TestPathBufferTimerFires(t *testing.T) {
	b := newPathBuffer(10*time.Millisecond, 0)
	b.add("x.log")
	select {
	case <-b.flushCh():
	case <-time.After(time.Second):
		t.Fatal("flush timer did not fire")
	}
	assert.Equal(t, []string{"x.log"}, b.take())
}

func TestWatchIngestsNewAndAppendedLines(t *testing.T) {
	dir := t.TempDir()
	out := &mockOutput{}
	p := New(WithOutput(out))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx, dir, WithDebounce(20*time.Millisecond)) }()

	path := filepath.Join(dir, "zoom.log")
	writeFile(t, path, zoomDHCP)
	require.Eventually(t, func() bool { return len(out.Events()) == 1 }, 5*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(zoomOK + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return len(out.Events()) == 2 }, 5*time.Second, 10*time.Millisecond)
	// Re-parsing the file does not duplicate the first line.
	time.Sleep(100 * time.Millisecond)
	events := out.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Raw.LineNumber)
	assert.Equal(t, 2, events[1].Raw.LineNumber)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchMissingDir(t *testing.T) {
	err := New().Watch(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
