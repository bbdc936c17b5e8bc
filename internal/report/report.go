// Package report renders an IncidentAnalysis for people and ticket systems.
// Every renderer is a pure function of the analysis and covers all of its
// fields.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
)

// ErrUnknownFormat is returned by Render for an unrecognized format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names accepted by Render.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatSummary  = "summary"
	FormatTicket   = "ticket"
)

// Formats lists the accepted format names.
var Formats = []string{FormatJSON, FormatMarkdown, FormatSummary, FormatTicket}

// Render dispatches on format. Names are case-insensitive; "md" and "text"
// are accepted as aliases.
func Render(format string, a model.IncidentAnalysis) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return JSON(a)
	case FormatMarkdown, "md":
		return Markdown(a), nil
	case FormatSummary, "text":
		return Summary(a), nil
	case FormatTicket:
		return Ticket(a), nil
	}
	return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
}

// JSON renders the analysis as indented JSON.
func JSON(a model.IncidentAnalysis) (string, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: json: %w", err)
	}
	return string(data), nil
}

func percent(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// urgencyOrder is the display order of action groups.
var urgencyOrder = []model.Urgency{model.UrgencyCritical, model.UrgencyHigh, model.UrgencyMedium, model.UrgencyLow}

func byUrgency(actions []model.RecommendedAction, u model.Urgency) []model.RecommendedAction {
	var out []model.RecommendedAction
	for _, a := range actions {
		if a.Urgency == u {
			out = append(out, a)
		}
	}
	return out
}

func title(u model.Urgency) string {
	s := string(u)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func eventLine(e model.Event) string {
	msg := e.Message
	if r := []rune(msg); len(r) > 100 {
		msg = string(r[:100])
	}
	return fmt.Sprintf("%s [%s] %s: %s", e.Timestamp.Format("15:04:05"), strings.ToUpper(string(e.Severity)), e.Category, msg)
}

// Markdown renders a management-ready report.
func Markdown(a model.IncidentAnalysis) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	list := func(items []string) {
		for _, it := range items {
			line("- %s", it)
		}
		line("")
	}

	line("# Incident Root Cause Analysis Report")
	line("")
	line("**Time Window:** %s", a.TimeWindow)
	line("**Events Analyzed:** %d", a.TotalEventsAnalyzed)
	line("")
	line("## Incident Overview")
	line("")
	line("%s", a.Summary)
	line("")

	if len(a.AffectedResources) > 0 {
		line("## Affected Resources")
		line("")
		list(a.AffectedResources)
	}

	rc := a.RootCause
	line("## Root Cause Analysis")
	line("")
	line("### Most Likely Root Cause")
	line("")
	line("**Confidence:** %s", percent(rc.Confidence))
	if rc.Category != "" {
		line("**Category:** %s", rc.Category)
	}
	line("**Description:** %s", rc.Description)
	line("")
	if len(rc.Evidence) > 0 {
		line("**Supporting Evidence:**")
		line("")
		list(rc.Evidence)
	}

	if len(a.SecondaryCauses) > 0 {
		line("### Alternative Possible Causes")
		line("")
		for i, c := range a.SecondaryCauses {
			line("%d. **%s** (Confidence: %s)", i+1, c.Description, percent(c.Confidence))
			for _, ev := range c.Evidence {
				line("   - %s", ev)
			}
		}
		line("")
	}

	if len(a.ChangesBefore) > 0 {
		line("## Changes Before Incident")
		line("")
		list(a.ChangesBefore)
	}

	if a.IsRepeatIssue {
		line("## Recurring Issue Alert")
		line("")
		line("%s", a.HistoricalContext)
		line("")
	}

	if len(a.Actions) > 0 {
		line("## Recommended Next Actions")
		line("")
		for _, u := range urgencyOrder {
			group := byUrgency(a.Actions, u)
			if len(group) == 0 {
				continue
			}
			line("### %s Priority", title(u))
			for _, act := range group {
				line("- **%s**", act.Action)
				line("  - Owner: %s", act.Owner)
			}
			line("")
		}
	}

	if a.EscalationGuidance != "" {
		line("## Escalation Guidance")
		line("")
		line("%s", a.EscalationGuidance)
		line("")
	}

	if len(a.DataGaps) > 0 {
		line("## Data Gaps / Limitations")
		line("")
		list(a.DataGaps)
	}

	if len(a.Timeline) > 0 {
		line("## Event Timeline")
		line("")
		for _, e := range a.Timeline {
			line("- `%s`", eventLine(e))
		}
		line("")
	}

	line("---")
	return b.String()
}

// Summary renders a short plain-text digest for chat notifications.
func Summary(a model.IncidentAnalysis) string {
	lines := []string{
		"INCIDENT SUMMARY:",
		a.Summary,
		"",
		fmt.Sprintf("TIME WINDOW: %s (%d events)", a.TimeWindow, a.TotalEventsAnalyzed),
		"",
		fmt.Sprintf("ROOT CAUSE (%s confidence):", percent(a.RootCause.Confidence)),
		a.RootCause.Description,
	}
	for _, c := range a.SecondaryCauses {
		lines = append(lines, fmt.Sprintf("  or: %s (%s)", c.Description, percent(c.Confidence)))
	}

	var urgent []model.RecommendedAction
	for _, act := range a.Actions {
		if act.Urgency == model.UrgencyCritical || act.Urgency == model.UrgencyHigh {
			urgent = append(urgent, act)
		}
	}
	if len(urgent) > 0 {
		lines = append(lines, "", "IMMEDIATE ACTIONS REQUIRED:")
		for _, act := range urgent {
			lines = append(lines, fmt.Sprintf("- %s (%s)", act.Action, act.Owner))
		}
	}
	if a.IsRepeatIssue {
		lines = append(lines, "", "WARNING: This is a RECURRING issue requiring permanent fix")
		if a.HistoricalContext != "" {
			lines = append(lines, a.HistoricalContext)
		}
	}
	return strings.Join(lines, "\n")
}

// Ticket renders a block suitable for pasting into a ticket update.
func Ticket(a model.IncidentAnalysis) string {
	lines := []string{
		"=== ROOT CAUSE ANALYSIS ===",
		"",
		"Time Window: " + a.TimeWindow,
		fmt.Sprintf("Events Analyzed: %d", a.TotalEventsAnalyzed),
		"Summary: " + a.Summary,
		"",
		"ROOT CAUSE:",
		a.RootCause.Description,
		"Confidence: " + percent(a.RootCause.Confidence),
		"",
	}
	add := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		lines = append(lines, header)
		for _, it := range items {
			lines = append(lines, "  - "+it)
		}
		lines = append(lines, "")
	}

	add("Evidence:", a.RootCause.Evidence)
	var alt []string
	for _, c := range a.SecondaryCauses {
		alt = append(alt, fmt.Sprintf("%s (%s)", c.Description, percent(c.Confidence)))
	}
	add("OTHER POSSIBLE CAUSES:", alt)
	add("AFFECTED:", a.AffectedResources)
	add("CHANGES BEFORE INCIDENT:", a.ChangesBefore)

	if len(a.Actions) > 0 {
		lines = append(lines, "NEXT ACTIONS:")
		for _, act := range a.Actions {
			lines = append(lines, fmt.Sprintf("  [%s] %s - %s", strings.ToUpper(string(act.Urgency)), act.Action, act.Owner))
		}
		lines = append(lines, "")
	}
	if a.IsRepeatIssue {
		lines = append(lines, "RECURRING ISSUE:", "  "+a.HistoricalContext, "")
	}
	if a.EscalationGuidance != "" {
		lines = append(lines, "ESCALATION:", "  "+a.EscalationGuidance, "")
	}
	add("DATA GAPS:", a.DataGaps)

	var timeline []string
	for _, e := range a.Timeline {
		timeline = append(timeline, eventLine(e))
	}
	add("TIMELINE:", timeline)
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
