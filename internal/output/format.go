package output

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
)

// Verbosity controls how much of an event a sink keeps.
type Verbosity int

const (
	Minimal  Verbosity = iota // drop metadata, tags and raw fields
	Standard                  // keep everything but raw CSV fields
	Full                      // keep everything
)

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Full:
		return "full"
	}
	return fmt.Sprintf("verbosity(%d)", int(v))
}

// ParseVerbosity converts a case-insensitive name to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal, nil
	case "standard", "":
		return Standard, nil
	case "full":
		return Full, nil
	}
	return Standard, fmt.Errorf("unknown verbosity %q", s)
}

// FormatEvent returns a copy of the event with fields stripped according to
// verbosity. The raw line, raw timestamp, source file and line number are
// provenance and always survive.
func FormatEvent(e model.Event, verbosity Verbosity) model.Event {
	switch verbosity {
	case Minimal:
		e.Metadata = nil
		e.Tags = nil
		e.CorrelationIDs = nil
		e.Raw.Fields = nil
	case Standard:
		e.Raw.Fields = nil
	}
	return e
}
