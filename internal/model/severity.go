package model

import (
	"fmt"
	"strings"
)

// Severity is the normalized severity of an event. The zero value is not a
// valid severity; parsers always assign one.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityNotice   Severity = "notice"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Severities lists all severities in ascending order.
var Severities = []Severity{
	SeverityDebug, SeverityInfo, SeverityNotice,
	SeverityWarning, SeverityError, SeverityCritical,
}

// Rank returns the position of s in the debug < ... < critical order, or -1.
func (s Severity) Rank() int {
	for i, v := range Severities {
		if v == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// IsFailure reports whether s is error or critical.
func (s Severity) IsFailure() bool {
	return s == SeverityError || s == SeverityCritical
}

// Valid reports whether s is one of the fixed severities.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// ParseSeverity converts a case-insensitive name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	v := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return v, nil
}

// UnmarshalText rejects values outside the enumeration.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
