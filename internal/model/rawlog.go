package model

// Raw is the provenance of an event: the original text exactly as read,
// before any normalization. It is set once at construction.
type Raw struct {
	Line       string            `json:"raw_line"`
	Timestamp  string            `json:"raw_ts,omitempty"`      // original timestamp string
	SourceFile string            `json:"source_file,omitempty"` // file path or text identifier
	LineNumber int               `json:"line_number,omitempty"` // 1-based; CSV rows start at 2
	Fields     map[string]string `json:"raw_fields,omitempty"`  // CSV header -> value
}
