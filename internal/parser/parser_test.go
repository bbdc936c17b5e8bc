package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/avrca/internal/model"
)

// echoParser turns "N ..." lines into events whose signal is N. Lines
// containing "bad" fail, lines containing "boom" panic and "skip" lines are
// dropped.
type echoParser struct{}

func (echoParser) Info() Info {
	return Info{Name: "echo", SourceType: model.SourceApp, Vendor: "unknown"}
}

func (echoParser) ParseLine(line string, lineNo int, source string) (*model.Event, error) {
	switch {
	case strings.Contains(line, "bad"):
		return nil, errors.New("bad line")
	case strings.Contains(line, "boom"):
		panic("kaboom")
	case strings.Contains(line, "skip"):
		return nil, nil
	}
	ev := model.NewEvent(time.Unix(0, 0), model.Raw{Line: line, SourceFile: source, LineNumber: lineNo})
	ev.Signal = strings.Fields(line)[0]
	ev.Severity = model.SeverityInfo
	ev.Category = model.CategoryHardware
	return &ev, nil
}

type idRowParser struct{}

func (idRowParser) Info() Info {
	return Info{Name: "idrows", SourceType: model.SourceTicket}
}

func (idRowParser) ParseRow(row Row, rowNo int, source string) (*model.Event, error) {
	id := row.First("ticket_id", "number")
	if id == "" {
		return nil, errors.New("Missing ticket_id")
	}
	ev := model.NewEvent(time.Unix(0, 0), model.Raw{Line: row.Line(), Fields: row.Fields(), LineNumber: rowNo, SourceFile: source})
	ev.TicketID = id
	return &ev, nil
}

type bareParser struct{}

func (bareParser) Info() Info { return Info{Name: "bare"} }

func TestParseTextSkipsBlankAndComments(t *testing.T) {
	text := "a first\n\n# comment\n   \nb second\n"
	res := ParseText(echoParser{}, text, "")

	assert.True(t, res.Success)
	assert.Equal(t, "text_input", res.SourceFile)
	assert.Equal(t, 5, res.TotalLines)
	require.Len(t, res.Events, 2)
	assert.Equal(t, 1, res.Events[0].Raw.LineNumber)
	assert.Equal(t, 5, res.Events[1].Raw.LineNumber)
	assert.Equal(t, "b", res.Events[1].Signal)
}

func TestParseTextRecordsErrors(t *testing.T) {
	text := "a ok\nbad " + strings.Repeat("x", 300) + "\nc boom\nd skip\ne ok"
	res := ParseText(echoParser{}, text, "t.log")

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ParsedLines)
	assert.Equal(t, 2, res.FailedLines)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 2, res.Errors[0].LineNumber)
	assert.Equal(t, "Parse error: bad line", res.Errors[0].Error)
	assert.Len(t, res.Errors[0].RawLine, 200)
	assert.Equal(t, 3, res.Errors[1].LineNumber)
	assert.Contains(t, res.Errors[1].Error, "panic: kaboom")
}

func TestParseReaderLargeBatchKeepsOrder(t *testing.T) {
	var b strings.Builder
	n := concurrentThreshold*2 + 17
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d line\n", i)
	}
	res, err := ParseReader(context.Background(), echoParser{}, strings.NewReader(b.String()), "big.log")
	require.NoError(t, err)
	require.Len(t, res.Events, n)
	for i, ev := range res.Events {
		require.Equal(t, strconv.Itoa(i), ev.Signal)
		require.Equal(t, i+1, ev.Raw.LineNumber)
	}
}

func TestParseReaderUnsupported(t *testing.T) {
	res, err := ParseReader(context.Background(), bareParser{}, strings.NewReader("x"), "s")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, res.Success)
}

func TestParseFileMissing(t *testing.T) {
	res, err := ParseFile(context.Background(), echoParser{}, filepath.Join(t.TempDir(), "nope.log"))
	require.Error(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Errors[0].LineNumber)
	assert.True(t, strings.HasPrefix(res.Errors[0].Error, "File read error: "))
	assert.Zero(t, res.FailedLines)
}

func TestParseTextSkipsOverlongLine(t *testing.T) {
	text := "a first\n" + strings.Repeat("x", maxLineBytes+10) + "\nb second\nc third\n"
	res := ParseText(echoParser{}, text, "t.log")

	assert.True(t, res.Success)
	assert.Equal(t, 4, res.TotalLines)
	assert.Equal(t, 3, res.ParsedLines)
	assert.Equal(t, 1, res.FailedLines)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].LineNumber)
	assert.Contains(t, res.Errors[0].Error, "line too long")
	assert.Len(t, res.Errors[0].RawLine, maxPrefix)

	require.Len(t, res.Events, 3)
	assert.Equal(t, "b", res.Events[1].Signal)
	assert.Equal(t, 3, res.Events[1].Raw.LineNumber)
	assert.Equal(t, "c", res.Events[2].Signal)
	assert.Equal(t, 4, res.Events[2].Raw.LineNumber)
}

func TestParseTextLineAtLimit(t *testing.T) {
	atLimit := strings.Repeat("y", maxLineBytes)
	res := ParseText(echoParser{}, atLimit+"\n"+strings.Repeat("z", maxLineBytes+1), "t.log")

	assert.Equal(t, 2, res.TotalLines)
	require.Len(t, res.Events, 1)
	assert.Equal(t, atLimit, res.Events[0].Signal)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].LineNumber)
}

func TestParseReaderStreamFailure(t *testing.T) {
	r := io.MultiReader(strings.NewReader("a one\nb two\n"), iotest.ErrReader(errors.New("disk gone")))
	res, err := ParseReader(context.Background(), echoParser{}, r, "s.log")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Len(t, res.Events, 2)
	assert.Equal(t, 2, res.TotalLines)
	assert.Zero(t, res.FailedLines)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "File read error: disk gone", res.Errors[0].Error)
}

func TestParseFileCompressed(t *testing.T) {
	dir := t.TempDir()
	content := []byte("a one\nb two\n")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gzPath := filepath.Join(dir, "x.log.gz")
	require.NoError(t, os.WriteFile(gzPath, gz.Bytes(), 0o644))

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zstPath := filepath.Join(dir, "x.log.zst")
	require.NoError(t, os.WriteFile(zstPath, enc.EncodeAll(content, nil), 0o644))
	require.NoError(t, enc.Close())

	for _, path := range []string{gzPath, zstPath} {
		res, err := ParseFile(context.Background(), echoParser{}, path)
		require.NoError(t, err, path)
		require.Len(t, res.Events, 2, path)
		assert.Equal(t, "b", res.Events[1].Signal)
	}
}

func TestParseRows(t *testing.T) {
	csv := "\uFEFF Ticket_ID ,Title\nINC1,cam down\n,missing id\nINC3,\"quoted, title\"\n"
	res := ParseText(idRowParser{}, csv, "tickets.csv")

	assert.Equal(t, 3, res.TotalLines)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "INC1", res.Events[0].TicketID)
	assert.Equal(t, 2, res.Events[0].Raw.LineNumber)
	assert.Equal(t, "cam down", res.Events[0].Raw.Fields["title"])
	assert.Equal(t, 4, res.Events[1].Raw.LineNumber)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].LineNumber)
	assert.Equal(t, "Parse error: Missing ticket_id", res.Errors[0].Error)
}

func TestParseRowsEmptyInput(t *testing.T) {
	res := ParseText(idRowParser{}, "", "empty.csv")
	assert.True(t, res.Success)
	assert.Empty(t, res.Events)
	assert.Zero(t, res.TotalLines)
}

func TestExtractTimestamp(t *testing.T) {
	ref := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		line string
		want time.Time
		raw  string
	}{
		{"2026-01-08T09:00:00Z camera offline", time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC), "2026-01-08T09:00:00Z"},
		{"2026-01-08T09:00:00-05:00 x", time.Date(2026, 1, 8, 14, 0, 0, 0, time.UTC), "2026-01-08T09:00:00-05:00"},
		{"2026-01-08 09:00:00+0100 x", time.Date(2026, 1, 8, 8, 0, 0, 0, time.UTC), "2026-01-08 09:00:00+0100"},
		{"2026-01-08 09:00:00.250 x", time.Date(2026, 1, 8, 9, 0, 0, 250e6, time.UTC), "2026-01-08 09:00:00.250"},
		{"Jan  8 09:00:00 sw1 link down", time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC), "Jan  8 09:00:00"},
		{"01/08/2026 09:00:00 x", time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC), "01/08/2026 09:00:00"},
		{"2026/01/08 09:00:00 x", time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC), "2026/01/08 09:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, raw, ok := ExtractTimestamp(tt.line, ref)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
			assert.Equal(t, tt.raw, raw)
		})
	}

	_, _, ok := ExtractTimestamp("no time here", ref)
	assert.False(t, ok)
}

func TestOptionsTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 3, 3, 3, 3, 0, time.UTC)
	strict := NewOptions(WithClock(func() time.Time { return now }))
	_, _, err := strict.Timestamp("nothing")
	assert.ErrorIs(t, err, ErrNoTimestamp)

	lax := NewOptions(WithClock(func() time.Time { return now }), WithAllowNow())
	got, raw, err := lax.Timestamp("nothing")
	require.NoError(t, err)
	assert.Equal(t, now, got)
	assert.Empty(t, raw)
}

func TestParseTimestampField(t *testing.T) {
	for _, s := range []string{"2026-01-08T09:00:00Z", "2026-01-08 09:00:00", "2026-01-08 09:00", "01/08/2026 09:00:00", "01/08/2026 09:00"} {
		got, err := ParseTimestampField(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC), got, s)
	}
	got, err := ParseTimestampField("2026-01-08")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseTimestampField("soon")
	assert.ErrorIs(t, err, ErrNoTimestamp)
}

func TestSeverityTable(t *testing.T) {
	assert.Equal(t, model.SeverityCritical, DefaultSeverity.Infer("FATAL: core dumped"))
	assert.Equal(t, model.SeverityError, DefaultSeverity.Infer("DHCP request failed"))
	assert.Equal(t, model.SeverityWarning, DefaultSeverity.Infer("Warning: temp high"))
	assert.Equal(t, model.SeverityNotice, DefaultSeverity.Infer("notice: link"))
	assert.Equal(t, model.SeverityDebug, DefaultSeverity.Infer("debug trace"))
	assert.Equal(t, model.SeverityInfo, DefaultSeverity.Infer("all good"))

	table := DefaultSeverity.Prepend(SeverityRule{model.SeverityCritical, []string{"offline"}})
	assert.Equal(t, model.SeverityCritical, table.Infer("camera offline"))
	assert.Len(t, DefaultSeverity, 5)
}

func TestCategoryScorer(t *testing.T) {
	s := CategoryScorer{
		Rules: []CategoryRule{
			{model.CategoryAudio, []string{"audio", "routing"}},
			{model.CategoryConfig, []string{"update", "routing"}},
		},
		Fallback: model.CategoryHardware,
	}
	assert.Equal(t, model.CategoryAudio, s.Score("Audio routing updated"))
	assert.Equal(t, model.CategoryAudio, s.Score("routing"), "ties go to the first rule")
	assert.Equal(t, model.CategoryConfig, s.Score("firmware update"))
	assert.Equal(t, model.CategoryHardware, s.Score("nothing"))
}

func TestExtractors(t *testing.T) {
	assert.Equal(t, "10.1.5.50", ExtractIP("core (10.1.5.50) up"))
	assert.Empty(t, ExtractIP("no address"))
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", ExtractMAC("client aa:bb:cc:dd:ee:ff joined"))
	assert.Equal(t, "CR-101", ExtractRoom("Camera offline in Room CR-101"))
	assert.Equal(t, "HQ1234", ExtractRoom("device in hq1234 rebooted"))
	assert.Empty(t, ExtractRoom("nothing to see"))
	assert.Equal(t, "in_progress", CleanToken("In Progress"))
}

func TestRegistryAndSelect(t *testing.T) {
	Register(fakeNamed{name: "zoom", patterns: []string{`.*zoom.*\.log`}, priority: 10})
	Register(fakeNamed{name: "tickets", patterns: []string{`.*ticket.*\.csv`}, priority: 40})
	Register(fakeNamed{name: "changes", patterns: []string{`.*change.*\.csv`}, priority: 50})

	p, err := Get("zoom")
	require.NoError(t, err)
	assert.Equal(t, "zoom", p.Info().Name)
	_, err = Get("nope")
	assert.ErrorIs(t, err, ErrUnknownParser)
	assert.Subset(t, Names(), []string{"changes", "tickets", "zoom"})

	tests := map[string]string{
		"/var/log/ZoomRooms.log":     "zoom",
		"zoom_client.log.gz":         "zoom",
		"change_tickets.csv":         "tickets",
		"chg_export.csv":             "changes",
		"zr_weird.txt":               "zoom",
		"incident-export-2026.csv":   "tickets",
		"/tmp/changes-jan.csv.zst":   "changes",
	}
	for name, want := range tests {
		p, err := Select(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, p.Info().Name, name)
	}

	_, err = Select("notes.txt")
	assert.ErrorIs(t, err, ErrNoParser)
}

type fakeNamed struct {
	name     string
	patterns []string
	priority int
}

func (f fakeNamed) Info() Info {
	return Info{Name: f.name, FilePatterns: f.patterns, Priority: f.priority}
}
