package model

import "time"

// maxErrorLine bounds the raw content kept on a ParseError.
const maxErrorLine = 200

// ParseError records one line or row that could not be turned into an event.
type ParseError struct {
	LineNumber int    `json:"line_number"`
	Error      string `json:"error"`
	RawLine    string `json:"raw_line"`
}

// ParseResult is the outcome of parsing one file or text blob. Events keep
// source order; failures are accumulated, never raised.
type ParseResult struct {
	Success     bool         `json:"success"`
	Events      []Event      `json:"events"`
	Errors      []ParseError `json:"errors"`
	TotalLines  int          `json:"total_lines"`
	ParsedLines int          `json:"parsed_lines"`
	FailedLines int          `json:"failed_lines"`
	ParserName  string       `json:"parser_name"`
	SourceFile  string       `json:"source_file,omitempty"`
	ParsedAt    time.Time    `json:"parsed_at"`
}

// NewParseResult returns an empty, successful result.
func NewParseResult(parserName, source string) *ParseResult {
	return &ParseResult{
		Success:    true,
		ParserName: parserName,
		SourceFile: source,
		ParsedAt:   time.Now().UTC(),
	}
}

// AddEvent appends a successfully parsed event.
func (r *ParseResult) AddEvent(e Event) {
	r.Events = append(r.Events, e)
	r.ParsedLines++
}

// AddError records a failed line. The raw content is truncated.
func (r *ParseResult) AddError(line int, msg, raw string) {
	r.Errors = append(r.Errors, ParseError{
		LineNumber: line,
		Error:      msg,
		RawLine:    truncateRunes(raw, maxErrorLine),
	})
	r.FailedLines++
}

// AddFileError records a failure of the whole input, such as an unreadable
// stream. It is reported at line 0, marks the result unsuccessful and is not
// counted in FailedLines.
func (r *ParseResult) AddFileError(msg string) {
	r.Errors = append(r.Errors, ParseError{Error: msg})
	r.Success = false
}

// Merge folds other into r: events and errors are concatenated and counters
// summed. Success is the conjunction of both.
func (r *ParseResult) Merge(other *ParseResult) {
	if other == nil {
		return
	}
	r.Events = append(r.Events, other.Events...)
	r.Errors = append(r.Errors, other.Errors...)
	r.TotalLines += other.TotalLines
	r.ParsedLines += other.ParsedLines
	r.FailedLines += other.FailedLines
	r.Success = r.Success && other.Success
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
