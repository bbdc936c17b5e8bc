package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/avrca/internal/model"
)

var tracer = otel.Tracer("avrca.parser")

const (
	// Batches with more candidate lines than this are mapped concurrently.
	concurrentThreshold = 2048
	chunkSize           = 512
	maxLineBytes        = 1 << 20
	// maxPrefix is how much of an overlong line is kept for its error.
	maxPrefix = 200
)

// Info describes a parser.
type Info struct {
	Name       string           `json:"name"`
	SourceType model.SourceType `json:"source_type"`
	Vendor     string           `json:"vendor"`
	// FilePatterns are regular expressions matched against the lower-cased
	// base name of an input file, anchored at the start.
	FilePatterns []string `json:"file_patterns,omitempty"`
	// Priority orders filename selection; lower is tried first.
	Priority int `json:"priority"`
}

// Parser is implemented by every source-specific parser. A concrete parser
// also implements exactly one of LineParser or RowParser.
type Parser interface {
	Info() Info
}

// LineParser maps one line of free text to an event. A nil event with a nil
// error means the line is intentionally skipped. Implementations must be pure
// and safe for concurrent use.
type LineParser interface {
	Parser
	ParseLine(line string, lineNo int, source string) (*model.Event, error)
}

// RowParser maps one CSV row to an event.
type RowParser interface {
	Parser
	ParseRow(row Row, rowNo int, source string) (*model.Event, error)
}

// ErrUnsupported is returned for a Parser that is neither a LineParser nor a
// RowParser.
var ErrUnsupported = errors.New("parser implements neither ParseLine nor ParseRow")

// ErrLineTooLong is the line error for input lines over the size limit.
var ErrLineTooLong = errors.New("line too long")

// ParseText parses an in-memory blob.
func ParseText(p Parser, text, source string) *model.ParseResult {
	if source == "" {
		source = "text_input"
	}
	res, err := ParseReader(context.Background(), p, strings.NewReader(text), source)
	if err != nil {
		slog.Warn("parse text failed", "parser", p.Info().Name, "error", err)
	}
	return res
}

// ParseFile opens path (transparently decompressing .gz and .zst) and parses
// it. When the file cannot be read at all the returned result carries a
// single line-0 error and Success=false, and a non-nil error is returned as
// well.
func ParseFile(ctx context.Context, p Parser, path string) (*model.ParseResult, error) {
	ctx, span := tracer.Start(ctx, "parser.ParseFile",
		trace.WithAttributes(
			attribute.String("parser", p.Info().Name),
			attribute.String("file", path),
		),
	)
	defer span.End()

	slog.Info("parsing file", "parser", p.Info().Name, "file", path)

	rc, err := Open(path)
	if err != nil {
		res := model.NewParseResult(p.Info().Name, path)
		res.AddFileError("File read error: " + err.Error())
		span.RecordError(err)
		return res, fmt.Errorf("parser %s: open %s: %w", p.Info().Name, path, err)
	}
	defer rc.Close()

	res, err := ParseReader(ctx, p, rc, path)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	slog.Info("parsed file",
		"parser", res.ParserName, "file", path,
		"parsed", res.ParsedLines, "total", res.TotalLines, "failed", res.FailedLines)
	return res, nil
}

// ParseReader parses everything readable from r. Line and row failures are
// recorded on the result; the returned error is reserved for failures that
// stop the whole batch (unsupported parser, unreadable stream, cancellation).
func ParseReader(ctx context.Context, p Parser, r io.Reader, source string) (*model.ParseResult, error) {
	var (
		res *model.ParseResult
		err error
	)
	switch v := p.(type) {
	case RowParser:
		res, err = parseRows(ctx, v, r, source)
	case LineParser:
		res, err = parseLines(ctx, v, r, source)
	default:
		res = model.NewParseResult(p.Info().Name, source)
		res.Success = false
		return res, fmt.Errorf("parser %s: %w", p.Info().Name, ErrUnsupported)
	}
	observe(res)
	return res, err
}

type lineSlot struct {
	lineNo int
	text   string
	event  *model.Event
	err    error
}

func parseLines(ctx context.Context, p LineParser, r io.Reader, source string) (*model.ParseResult, error) {
	name := p.Info().Name
	res := model.NewParseResult(name, source)

	br := bufio.NewReaderSize(r, 64*1024)
	var slots []lineSlot
	for {
		raw, tooLong, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			res.AddFileError("File read error: " + err.Error())
			break
		}
		if err != nil && len(raw) == 0 && !tooLong {
			break
		}
		res.TotalLines++
		if tooLong {
			slots = append(slots, lineSlot{
				lineNo: res.TotalLines,
				text:   strings.ToValidUTF8(string(raw), "\uFFFD"),
				err:    fmt.Errorf("%w (limit %d bytes)", ErrLineTooLong, maxLineBytes),
			})
		} else {
			line := strings.TrimRight(strings.ToValidUTF8(string(raw), "\uFFFD"), "\r")
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
				slots = append(slots, lineSlot{lineNo: res.TotalLines, text: line})
			}
		}
		if err != nil {
			break
		}
	}

	if err := mapSlots(ctx, slots, func(s *lineSlot) {
		if s.err != nil {
			return
		}
		s.event, s.err = parseOne(func() (*model.Event, error) {
			return p.ParseLine(s.text, s.lineNo, source)
		})
	}); err != nil {
		return res, err
	}

	for _, s := range slots {
		switch {
		case s.err != nil:
			slog.Debug("line parse error", "parser", name, "line", s.lineNo, "error", s.err)
			res.AddError(s.lineNo, "Parse error: "+s.err.Error(), s.text)
		case s.event != nil:
			res.AddEvent(*s.event)
		}
	}
	return res, nil
}

// readLine returns the next line without its newline. A line longer than
// maxLineBytes is consumed to its end and reported with tooLong set; raw then
// holds only its first maxPrefix bytes. err is io.EOF on the final line.
func readLine(br *bufio.Reader) (raw []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong {
			raw = append(raw, chunk...)
			if len(bytes.TrimSuffix(raw, []byte("\n"))) > maxLineBytes {
				tooLong = true
				raw = raw[:maxPrefix]
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimSuffix(raw, []byte("\n")), tooLong, rerr
	}
}

// mapSlots applies fn to every slot, concurrently for large batches. Slots
// are written in place so output order always follows input order.
func mapSlots[T any](ctx context.Context, slots []T, fn func(*T)) error {
	if len(slots) <= concurrentThreshold {
		for i := range slots {
			fn(&slots[i])
		}
		return ctx.Err()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < len(slots); start += chunkSize {
		end := min(start+chunkSize, len(slots))
		chunk := slots[start:end]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			for i := range chunk {
				fn(&chunk[i])
			}
			return nil
		})
	}
	return g.Wait()
}

// parseOne runs a single parse call, turning a panic in vendor code into a
// line error.
func parseOne(fn func() (*model.Event, error)) (ev *model.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
