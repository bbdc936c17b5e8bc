package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crimson-sun/avrca/internal/model"
)

// Fold lower-cases s for keyword matching. A Caser is stateful, so one is
// built per call.
func Fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

// SeverityRule maps any of its keywords to Level.
type SeverityRule struct {
	Level    model.Severity
	Keywords []string
}

// SeverityTable is an ordered keyword table; the first rule with a keyword
// contained in the text wins.
type SeverityTable []SeverityRule

// DefaultSeverity is the base table every line parser starts from.
var DefaultSeverity = SeverityTable{
	{model.SeverityCritical, []string{"critical", "fatal", "emergency"}},
	{model.SeverityError, []string{"error", "err", "fail", "exception"}},
	{model.SeverityWarning, []string{"warn", "warning"}},
	{model.SeverityNotice, []string{"notice"}},
	{model.SeverityDebug, []string{"debug"}},
}

// Prepend returns a new table with rules checked before t.
func (t SeverityTable) Prepend(rules ...SeverityRule) SeverityTable {
	out := make(SeverityTable, 0, len(rules)+len(t))
	return append(append(out, rules...), t...)
}

// Infer returns the level of the first matching rule, or info.
func (t SeverityTable) Infer(text string) model.Severity {
	folded := Fold(text)
	for _, r := range t {
		if containsAny(folded, r.Keywords) {
			return r.Level
		}
	}
	return model.SeverityInfo
}

// CategoryRule lists the keywords that vote for Category.
type CategoryRule struct {
	Category model.Category
	Keywords []string
}

// CategoryScorer picks the category whose keywords hit most often. Ties go to
// the earlier rule; no hits yields Fallback.
type CategoryScorer struct {
	Rules    []CategoryRule
	Fallback model.Category
}

// Score classifies text.
func (s CategoryScorer) Score(text string) model.Category {
	folded := Fold(text)
	best, bestHits := s.Fallback, 0
	for _, r := range s.Rules {
		hits := 0
		for _, kw := range r.Keywords {
			if strings.Contains(folded, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = r.Category, hits
		}
	}
	return best
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether the folded text contains any keyword.
func ContainsAny(text string, kws ...string) bool {
	return containsAny(Fold(text), kws)
}

var (
	ipRe   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	macRe  = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`)
	roomRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:room|conf|meeting|cr)[\s_-]?([A-Z0-9]{2,}[-_]?\d+)`),
		regexp.MustCompile(`(?i)\b([A-Z]{2,}\d{3,})\b`),
	}
	cleanRe = regexp.MustCompile(`[^a-z0-9_]`)
)

// ExtractIP returns the first dotted-quad in s.
func ExtractIP(s string) string { return ipRe.FindString(s) }

// ExtractMAC returns the first colon or dash separated MAC address in s.
func ExtractMAC(s string) string { return macRe.FindString(s) }

// ExtractRoom applies the generic room patterns and upper-cases the match.
func ExtractRoom(s string) string {
	return FirstGroup(s, roomRe...)
}

// FirstGroup returns the upper-cased first capture group of the first
// pattern that matches.
func FirstGroup(s string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 && m[1] != "" {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

// CleanToken lower-cases s and replaces anything outside [a-z0-9_] with an
// underscore, for use inside dotted signal names.
func CleanToken(s string) string {
	return cleanRe.ReplaceAllString(Fold(strings.TrimSpace(s)), "_")
}
