package rca

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crimson-sun/avrca/internal/model"
)

var categoryActions = map[model.CauseCategory][]model.RecommendedAction{
	model.CauseNetwork: {
		{Action: "Verify network switch port status and PoE power budget", Owner: "Network Team", Urgency: model.UrgencyHigh},
		{Action: "Check DHCP server logs and available IP pool", Owner: "Network Team", Urgency: model.UrgencyHigh},
		{Action: "Test connectivity from affected device subnet to required services", Owner: "Network Team", Urgency: model.UrgencyMedium},
	},
	model.CauseHardware: {
		{Action: "Physically inspect affected AV equipment and cable connections", Owner: "AV Team / Facilities", Urgency: model.UrgencyHigh},
		{Action: "Review equipment firmware versions and update if outdated", Owner: "AV Team", Urgency: model.UrgencyMedium},
		{Action: "Test with known-good spare equipment to isolate hardware failure", Owner: "AV Team", Urgency: model.UrgencyMedium},
	},
	model.CauseConfiguration: {
		{Action: "Review and rollback recent configuration changes", Owner: "AV/IT Operations", Urgency: model.UrgencyHigh},
		{Action: "Compare current config against last known good configuration", Owner: "AV/IT Operations", Urgency: model.UrgencyHigh},
	},
	model.CauseSoftware: {
		{Action: "Verify service account credentials and refresh authentication tokens", Owner: "IT Security / AV Team", Urgency: model.UrgencyHigh},
		{Action: "Review software/firmware update logs for failures", Owner: "AV Team", Urgency: model.UrgencyMedium},
	},
	model.CausePower: {
		{Action: "Check PoE switch power budget and port allocation", Owner: "Network Team", Urgency: model.UrgencyHigh},
		{Action: "Verify power supply status for affected equipment", Owner: "Facilities / AV Team", Urgency: model.UrgencyHigh},
	},
}

var (
	documentAction = model.RecommendedAction{
		Action:  "Document incident timeline and resolution in ticketing system",
		Owner:   "Incident Owner",
		Urgency: model.UrgencyLow,
	}
	permanentFixAction = model.RecommendedAction{
		Action:  "Implement permanent fix - this is a recurring issue requiring root cause elimination",
		Owner:   "Engineering Team",
		Urgency: model.UrgencyHigh,
	}
)

var escalations = map[model.CauseCategory]string{
	model.CauseNetwork: "Escalate to Network Team with:\n" +
		"- Switch port configurations and PoE status\n" +
		"- DHCP/DNS server logs\n" +
		"- Network topology diagram\n" +
		"- Recent network changes",
	model.CauseHardware: "Escalate to AV vendor (Zoom/Crestron/Q-SYS) with:\n" +
		"- Device serial numbers and firmware versions\n" +
		"- Detailed error codes and timestamps\n" +
		"- Recent hardware/software changes\n" +
		"- Results of hardware connectivity tests",
	model.CauseSoftware: "Escalate to Software vendor with:\n" +
		"- Application version and build number\n" +
		"- Full error logs and stack traces\n" +
		"- Steps to reproduce\n" +
		"- Configuration files (sanitized)",
	model.CauseConfiguration: "Internal escalation to Configuration Management with:\n" +
		"- Change request tickets\n" +
		"- Configuration diffs\n" +
		"- Rollback procedures\n" +
		"- Impact assessment",
	model.CausePower: "Escalate to Facilities and Network Teams with:\n" +
		"- PoE switch model and power budget report\n" +
		"- Power consumption per device\n" +
		"- UPS/power infrastructure status\n" +
		"- Recent electrical work",
}

// recommendations lists the category actions for the top cause, then the
// matched pattern's own actions, then the documentation step. A repeat issue
// puts the permanent-fix action first.
func (e *Engine) recommendations(top model.RootCause, repeat bool) []model.RecommendedAction {
	var out []model.RecommendedAction
	if repeat {
		out = append(out, permanentFixAction)
	}
	out = append(out, categoryActions[top.Category]...)
	if p, ok := e.byCause[top.Description]; ok {
		for _, a := range p.RecommendedActions {
			out = append(out, model.RecommendedAction{Action: a, Owner: "AV/IT Operations", Urgency: model.UrgencyMedium})
		}
	}
	return append(out, documentAction)
}

func escalation(cc model.CauseCategory) string {
	if cc == model.CauseNone {
		return "Gather additional diagnostic data before escalating to vendors."
	}
	if s, ok := escalations[cc]; ok {
		return s
	}
	return "Collect all available logs and error messages before escalating."
}

func (e *Engine) dataGaps(events []model.Event, bundle model.Bundle) []string {
	gaps := []string{}

	unidentified := 0
	for _, ev := range events {
		if ev.DeviceID() == "" && ev.Room() == "" {
			unidentified++
		}
	}
	if float64(unidentified) > float64(len(events))*0.3 {
		gaps = append(gaps, "Many events lack device identification - improve logging to include device IDs")
	}

	now := e.now()
	recent := false
	for _, ev := range events {
		if now.Sub(ev.Timestamp) < 24*time.Hour {
			recent = true
			break
		}
	}
	if !recent {
		gaps = append(gaps, "No recent events found - verify log collection is current")
	}

	cats := map[model.Category]struct{}{}
	for _, ev := range events {
		cats[ev.Category] = struct{}{}
	}
	if len(cats) == 1 {
		gaps = append(gaps, fmt.Sprintf("Only %s logs available - correlate with network/system logs for complete picture", events[0].Category))
	}

	if len(bundle.ChangeEvents) == 0 {
		gaps = append(gaps, "No configuration change events detected - verify change logging is enabled")
	}
	return gaps
}

func timeWindow(sorted []model.Event) string {
	earliest, latest := sorted[0].Timestamp, sorted[len(sorted)-1].Timestamp
	return fmt.Sprintf("%s to %s (%s)", earliest.Format(time.RFC3339), latest.Format(time.RFC3339), latest.Sub(earliest))
}

func summary(events []model.Event, top model.RootCause, query string) string {
	var parts []string
	if query != "" {
		parts = append(parts, fmt.Sprintf("Analysis of: '%s'", query))
	}

	roomSet := map[string]struct{}{}
	failures := 0
	for _, ev := range events {
		if r := ev.Room(); r != "" {
			roomSet[r] = struct{}{}
		}
		if ev.IsFailure() {
			failures++
		}
	}
	if len(roomSet) > 0 {
		rooms := make([]string, 0, len(roomSet))
		for r := range roomSet {
			rooms = append(rooms, r)
		}
		sort.Strings(rooms)
		parts = append(parts, fmt.Sprintf("Affecting %d room(s): %s", len(rooms), strings.Join(rooms[:min(3, len(rooms))], ", ")))
	}

	parts = append(parts,
		fmt.Sprintf("Analyzed %d events with %d errors/critical events", len(events), failures),
		"Root cause: "+top.Description,
	)
	return strings.Join(parts, ". ") + "."
}
