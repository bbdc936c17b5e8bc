package parser

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one CSV record keyed by its lower-cased, trimmed header.
type Row struct {
	values map[string]string
	line   string
}

// NewRow pairs headers with values. Missing trailing values are empty.
func NewRow(headers, values []string) Row {
	m := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(values) {
			m[h] = values[i]
		} else {
			m[h] = ""
		}
	}
	return Row{values: m, line: strings.Join(values, ",")}
}

// Get returns the trimmed value of one column.
func (r Row) Get(name string) string {
	return strings.TrimSpace(r.values[name])
}

// First returns the first non-empty value among aliases.
func (r Row) First(aliases ...string) string {
	for _, a := range aliases {
		if v := r.Get(a); v != "" {
			return v
		}
	}
	return ""
}

// Fields returns a copy of the row for Raw provenance.
func (r Row) Fields() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Line is the record re-joined with commas.
func (r Row) Line() string { return r.line }

type rowSlot struct {
	rowNo int
	row   Row
	event *model.Event
	err   error
}

func parseRows(ctx context.Context, p RowParser, r io.Reader, source string) (*model.ParseResult, error) {
	name := p.Info().Name
	res := model.NewParseResult(name, source)

	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		res.AddFileError("CSV read error: " + err.Error())
		return res, nil
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var slots []rowSlot
	for rowNo := 2; ; rowNo++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		res.TotalLines++
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.AddError(rowNo, "CSV read error: "+perr.Error(), strings.Join(rec, ","))
			continue
		}
		if err != nil {
			res.AddFileError("CSV read error: " + err.Error())
			break
		}
		slots = append(slots, rowSlot{rowNo: rowNo, row: NewRow(header, rec)})
	}

	if err := mapSlots(ctx, slots, func(s *rowSlot) {
		s.event, s.err = parseOne(func() (*model.Event, error) {
			return p.ParseRow(s.row, s.rowNo, source)
		})
	}); err != nil {
		return res, err
	}

	for _, s := range slots {
		switch {
		case s.err != nil:
			slog.Debug("row parse error", "parser", name, "row", s.rowNo, "error", s.err)
			res.AddError(s.rowNo, "Parse error: "+s.err.Error(), s.row.Line())
		case s.event != nil:
			res.AddEvent(*s.event)
		}
	}
	return res, nil
}
