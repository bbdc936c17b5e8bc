// Package corpus holds labeled vendor log lines used to check parser output
// across the built-in parsers.
package corpus

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// Entry is one labeled line and the fields its parser must produce.
// An empty ExpectedRoom is not checked.
type Entry struct {
	Parser           string `json:"parser"`
	Raw              string `json:"raw"`
	ExpectedSeverity string `json:"expected_severity"`
	ExpectedCategory string `json:"expected_category"`
	ExpectedSignal   string `json:"expected_signal"`
	ExpectedRoom     string `json:"expected_room,omitempty"`
	Description      string `json:"description"`
}

// Load parses the embedded corpus.json and returns all entries.
func Load() ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}
