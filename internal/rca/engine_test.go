package rca

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/avrca/internal/correlator"
	"github.com/crimson-sun/avrca/internal/model"
)

var t0 = time.Date(2026, 1, 8, 8, 31, 23, 0, time.UTC)

func ev(id string, offset int, sev model.Severity, cat model.Category, msg, room string) model.Event {
	return model.Event{
		ID:        id,
		Timestamp: t0.Add(time.Duration(offset) * time.Second),
		Severity:  sev,
		Category:  cat,
		Message:   msg,
		Location:  model.Location{Room: room},
	}
}

func clockAt(offset time.Duration) Option {
	return WithClock(func() time.Time { return t0.Add(offset) })
}

func analyze(e *Engine, events []model.Event, query string) model.IncidentAnalysis {
	bundle := correlator.New(0).Correlate(events)
	return e.Analyze(context.Background(), events, bundle, query)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := New(nil).Analyze(context.Background(), nil, model.Bundle{}, "anything")

	assert.Equal(t, "No events to analyze", a.Summary)
	assert.Equal(t, "N/A", a.TimeWindow)
	assert.Equal(t, "No data available for analysis", a.RootCause.Description)
	assert.Equal(t, 0.0, a.RootCause.Confidence)
	assert.Equal(t, []string{"No log data provided"}, a.DataGaps)
	assert.Empty(t, a.Actions)
	assert.Zero(t, a.TotalEventsAnalyzed)
}

func TestAnalyzeDHCPIncident(t *testing.T) {
	events := []model.Event{
		ev("a", 0, model.SeverityError, model.CategoryConnectivity, "DHCP timeout", "CR-205"),
		ev("b", 30, model.SeverityInfo, model.CategoryConnectivity, "Retrying lease", "CR-205"),
		ev("c", 60, model.SeverityError, model.CategoryConnectivity, "DHCP timeout", "CR-205"),
	}
	a := analyze(New(nil, clockAt(time.Hour)), events, "Why is CR-205 down?")

	assert.Equal(t, "DHCP server failure or IP address exhaustion", a.RootCause.Description)
	assert.Equal(t, 0.85, a.RootCause.Confidence)
	assert.Equal(t, model.CauseNetwork, a.RootCause.Category)
	assert.Equal(t, []string{"DHCP failures detected: 2 events", "DHCP timeout", "DHCP timeout"}, a.RootCause.Evidence)

	require.Len(t, a.SecondaryCauses, 1)
	assert.Equal(t, "Intermittent network connectivity issues", a.SecondaryCauses[0].Description)
	assert.Equal(t, 0.7, a.SecondaryCauses[0].Confidence)

	assert.Equal(t, "Analysis of: 'Why is CR-205 down?'. Affecting 1 room(s): CR-205. "+
		"Analyzed 3 events with 2 errors/critical events. "+
		"Root cause: DHCP server failure or IP address exhaustion.", a.Summary)
	assert.Equal(t, "2026-01-08T08:31:23Z to 2026-01-08T08:32:23Z (1m0s)", a.TimeWindow)
	assert.Equal(t, []string{"Room: CR-205"}, a.AffectedResources)
	assert.Equal(t, 3, a.TotalEventsAnalyzed)
	assert.Len(t, a.Timeline, 3)

	require.Len(t, a.Actions, 4)
	assert.Equal(t, "Verify network switch port status and PoE power budget", a.Actions[0].Action)
	assert.Equal(t, "Network Team", a.Actions[0].Owner)
	assert.Equal(t, documentAction, a.Actions[3])
	assert.Contains(t, a.EscalationGuidance, "Escalate to Network Team with:\n- Switch port configurations and PoE status")

	assert.Equal(t, []string{
		"Only connectivity logs available - correlate with network/system logs for complete picture",
		"No configuration change events detected - verify change logging is enabled",
	}, a.DataGaps)
	assert.False(t, a.IsRepeatIssue)
	assert.Empty(t, a.HistoricalContext)
}

func TestAnalyzeBurstPicksFirstBurstEvent(t *testing.T) {
	var events []model.Event
	for i := 0; i < 5; i++ {
		events = append(events, ev(fmt.Sprintf("e%d", i), i*2, model.SeverityCritical, model.CategoryVideo, "Camera offline", "CR-101"))
	}
	events = append(events, ev("early", -120, model.SeverityError, model.CategoryAudio, "Mic muted unexpectedly", "CR-101"))
	bundle := correlator.New(0).Correlate(events)
	require.Len(t, bundle.Bursts, 1)
	assert.Equal(t, 5, bundle.Bursts[0].ErrorCount)

	primary := primaryFailure(correlator.Sorted(events), bundle)
	assert.Equal(t, "e0", primary.ID)

	a := New(nil, clockAt(time.Hour)).Analyze(context.Background(), events, bundle, "")
	assert.Equal(t, "Camera hardware failure or disconnection", a.RootCause.Description)
	assert.Equal(t, 0.75, a.RootCause.Confidence)
	assert.Equal(t, []string{"Camera offline", "Camera offline"}, a.RootCause.Evidence)
	assert.Equal(t, model.CauseHardware, a.RootCause.Category)
	assert.Contains(t, a.EscalationGuidance, "Escalate to AV vendor (Zoom/Crestron/Q-SYS) with:")
}

func TestPrimaryFailureFallbacks(t *testing.T) {
	info := ev("i", 0, model.SeverityInfo, model.CategoryAudio, "ok", "")
	errA := ev("a", 10, model.SeverityError, model.CategoryAudio, "x", "")
	errB := ev("b", 20, model.SeverityError, model.CategoryVideo, "y", "")

	sorted := []model.Event{info, errA, errB}
	assert.Equal(t, "a", primaryFailure(sorted, model.Bundle{}).ID)
	assert.Equal(t, "b", primaryFailure(sorted, model.Bundle{Cascades: []model.Cascade{{Primary: errB}}}).ID)
	assert.Equal(t, "i", primaryFailure([]model.Event{info}, model.Bundle{}).ID)
}

func TestAnalyzeChangeBeforeFailure(t *testing.T) {
	events := []model.Event{
		ev("chg", 0, model.SeverityInfo, model.CategoryConfig, "Firmware update deployed to Core-1", "CR-101"),
		ev("err", 60, model.SeverityError, model.CategoryConnectivity, "Dante network timeout", "CR-101"),
	}
	a := analyze(New(nil, clockAt(time.Hour)), events, "")

	assert.Equal(t, []string{"2026-01-08T08:31:23Z (1 min before failure): Firmware update deployed to Core-1"}, a.ChangesBefore)
	assert.Equal(t, "Recent configuration change introduced instability", a.RootCause.Description)
	assert.Equal(t, 0.85, a.RootCause.Confidence)
	assert.Equal(t, []string{a.ChangesBefore[0], "Configuration changes detected shortly before incident"}, a.RootCause.Evidence)
	require.Len(t, a.SecondaryCauses, 1)
	assert.Equal(t, "Intermittent network connectivity issues", a.SecondaryCauses[0].Description)

	require.Len(t, a.Actions, 3)
	assert.Equal(t, "Review and rollback recent configuration changes", a.Actions[0].Action)
	assert.Contains(t, a.EscalationGuidance, "Internal escalation to Configuration Management")
	assert.NotContains(t, a.DataGaps, "No configuration change events detected - verify change logging is enabled")
}

func TestAnalyzeNetworkCascade(t *testing.T) {
	events := []model.Event{
		ev("net", 0, model.SeverityCritical, model.CategoryConnectivity, "Gateway unreachable", "CR-101"),
		ev("cam", 20, model.SeverityError, model.CategoryVideo, "Video feed lost", "CR-101"),
		ev("mic", 40, model.SeverityError, model.CategoryAudio, "Audio stream dropped", "CR-101"),
	}
	a := analyze(New(nil, clockAt(time.Hour)), events, "")

	assert.Equal(t, "Network connectivity loss causing cascading service failures", a.RootCause.Description)
	assert.Equal(t, 0.9, a.RootCause.Confidence)
	assert.Equal(t, []string{
		"Network failure at 2026-01-08T08:31:23Z",
		"Followed by 2 service failures",
		"Gateway unreachable",
	}, a.RootCause.Evidence)
}

func TestAnalyzeHourlyRecurrence(t *testing.T) {
	events := []model.Event{
		ev("a", 0, model.SeverityCritical, model.CategoryPower, "PoE denied on Gi1/0/5", "CR-101"),
		ev("b", 3600, model.SeverityCritical, model.CategoryPower, "PoE denied on Gi1/0/5", "CR-101"),
		ev("c", 7200, model.SeverityCritical, model.CategoryPower, "PoE denied on Gi1/0/5", "CR-101"),
	}
	a := analyze(New(nil, clockAt(3*time.Hour)), events, "")

	assert.True(t, a.IsRepeatIssue)
	assert.Equal(t, "This issue recurs hourly with 3 occurrences detected. "+
		"Indicates a systemic issue requiring permanent fix, not temporary workaround.", a.HistoricalContext)
	assert.Equal(t, "PoE (Power over Ethernet) failure - insufficient power budget or switch issue", a.RootCause.Description)

	require.Len(t, a.Actions, 4)
	assert.Equal(t, permanentFixAction, a.Actions[0])
	assert.Equal(t, "Check PoE switch power budget and port allocation", a.Actions[1].Action)
	assert.Equal(t, documentAction, a.Actions[3])
}

func TestRepeatFromMultipleBursts(t *testing.T) {
	bundle := model.Bundle{Bursts: make([]model.Burst, 3)}
	repeat, ctx := repeatIssue(bundle)
	assert.True(t, repeat)
	assert.Equal(t, "Multiple error bursts detected (3 incidents). Pattern suggests recurring problem.", ctx)

	repeat, ctx = repeatIssue(model.Bundle{Bursts: make([]model.Burst, 1)})
	assert.False(t, repeat)
	assert.Empty(t, ctx)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	events := []model.Event{
		ev("a", 0, model.SeverityInfo, model.CategoryVendorService, "heartbeat", ""),
		ev("b", 10, model.SeverityInfo, model.CategoryVendorService, "heartbeat", ""),
	}
	a := analyze(New(nil, clockAt(48*time.Hour)), events, "")

	assert.Equal(t, "Insufficient data to determine root cause", a.RootCause.Description)
	assert.Equal(t, 0.1, a.RootCause.Confidence)
	assert.Equal(t, []string{"No clear error patterns found in available logs"}, a.RootCause.Evidence)
	assert.Empty(t, a.SecondaryCauses)
	assert.Equal(t, "Gather additional diagnostic data before escalating to vendors.", a.EscalationGuidance)
	assert.Equal(t, []model.RecommendedAction{documentAction}, a.Actions)
	assert.Equal(t, []string{
		"Many events lack device identification - improve logging to include device IDs",
		"No recent events found - verify log collection is current",
		"Only vendor_service logs available - correlate with network/system logs for complete picture",
		"No configuration change events detected - verify change logging is enabled",
	}, a.DataGaps)
	assert.Equal(t, "Analyzed 2 events with 0 errors/critical events. Root cause: Insufficient data to determine root cause.", a.Summary)
}

func TestAnalyzeKnownPattern(t *testing.T) {
	patterns := []KnownPattern{{
		ID:                 "vlan-dhcp",
		Name:               "AV VLAN DHCP exhaustion",
		Symptoms:           []string{"DHCP timeout", "no IP address"},
		TypicalRootCause:   "scope exhausted",
		RecommendedActions: []string{"Widen the scope"},
		Category:           model.CauseNetwork,
	}}
	events := []model.Event{
		ev("a", 0, model.SeverityError, model.CategoryConnectivity, "DHCP timeout", "CR-205"),
		ev("b", 5, model.SeverityWarning, model.CategoryConnectivity, "No IP address assigned", "CR-205"),
	}
	a := analyze(New(patterns, clockAt(time.Hour)), events, "")

	assert.Equal(t, "AV VLAN DHCP exhaustion: scope exhausted", a.RootCause.Description)
	assert.Equal(t, 0.95, a.RootCause.Confidence)
	assert.Equal(t, []string{
		"Pattern symptom detected: DHCP timeout",
		"Pattern symptom detected: no IP address",
	}, a.RootCause.Evidence)
	require.Len(t, a.Actions, 5)
	assert.Equal(t, model.RecommendedAction{Action: "Widen the scope", Owner: "AV/IT Operations", Urgency: model.UrgencyMedium}, a.Actions[3])
}

func TestPatternBelowHalfDoesNotMatch(t *testing.T) {
	e := New([]KnownPattern{{ID: "x", Name: "X", TypicalRootCause: "y", Symptoms: []string{"alpha", "beta", "gamma"}}})
	in := &input{events: []model.Event{{Message: "ALPHA seen"}}}
	assert.Empty(t, e.matchPatterns(in))

	in.events = append(in.events, model.Event{Message: "then beta"})
	got := e.matchPatterns(in)
	require.Len(t, got, 1)
	assert.InDelta(t, 2.0/3.0, got[0].Confidence, 1e-9)
	assert.Equal(t, model.CauseNone, got[0].Category)
}

func TestRank(t *testing.T) {
	got := rank([]model.RootCause{
		{Description: "a", Confidence: 0.5, Evidence: []string{"a1"}},
		{Description: "b", Confidence: 0.666, Evidence: []string{"b1"}},
		{Description: "a", Confidence: 0.7, Evidence: []string{"a2"}},
		{Description: "c", Confidence: 1.3},
		{Description: "d", Confidence: 0.7},
	})
	require.Len(t, got, 4)
	assert.Equal(t, "c", got[0].Description)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, "a", got[1].Description)
	assert.Equal(t, 0.7, got[1].Confidence)
	assert.Equal(t, []string{"a1", "a2"}, got[1].Evidence)
	assert.Equal(t, "d", got[2].Description)
	assert.Equal(t, 0.67, got[3].Confidence)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
	}
}

func TestChangesBefore(t *testing.T) {
	failure := ev("f", 0, model.SeverityError, model.CategoryAudio, "down", "")
	var changes []model.Event
	for i := 1; i <= 7; i++ {
		changes = append(changes, ev(fmt.Sprintf("c%d", i), -i*600, model.SeverityInfo, model.CategoryConfig, fmt.Sprintf("config change %d", i), ""))
	}
	changes = append(changes,
		ev("old", -25*3600, model.SeverityInfo, model.CategoryConfig, "ancient config", ""),
		ev("after", 60, model.SeverityInfo, model.CategoryConfig, "later config", ""),
		ev("same", 0, model.SeverityInfo, model.CategoryConfig, "same-time config", ""),
	)

	got := changesBefore(changes, failure)
	require.Len(t, got, 5)
	assert.Equal(t, "2026-01-08T07:41:23Z (50 min before failure): config change 5", got[0])
	assert.Equal(t, "2026-01-08T08:21:23Z (10 min before failure): config change 1", got[4])
}

func TestAnalyzeConcurrentUse(t *testing.T) {
	e := New(DefaultPatterns(), clockAt(time.Hour))
	events := []model.Event{
		ev("a", 0, model.SeverityError, model.CategoryConnectivity, "DHCP timeout", "CR-205"),
		ev("b", 5, model.SeverityError, model.CategoryVideo, "Camera offline", "CR-205"),
	}
	bundle := correlator.New(0).Correlate(events)
	want := e.Analyze(context.Background(), events, bundle, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := e.Analyze(context.Background(), events, bundle, "")
			assert.Equal(t, want.RootCause, got.RootCause)
		}()
	}
	wg.Wait()
}

func TestConfidenceBounds(t *testing.T) {
	events := []model.Event{
		ev("a", 0, model.SeverityError, model.CategoryConnectivity, "DHCP timeout", "CR-205"),
		ev("b", 1, model.SeverityError, model.CategoryConnectivity, "DNS lookup failed, host unreachable", "CR-205"),
		ev("c", 2, model.SeverityError, model.CategoryVideo, "Camera USB disconnected", "CR-205"),
		ev("d", 3, model.SeverityError, model.CategoryAuth, "Auth token expired", "CR-205"),
		ev("e", 4, model.SeverityError, model.CategoryPower, "PoE denied", "CR-205"),
	}
	a := analyze(New(DefaultPatterns(), clockAt(time.Hour)), events, "")

	all := append([]model.RootCause{a.RootCause}, a.SecondaryCauses...)
	require.Len(t, all, 4)
	for i, c := range all {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		assert.Equal(t, c.Confidence, roundConfidence(c.Confidence))
		if i > 0 {
			assert.GreaterOrEqual(t, all[i-1].Confidence, c.Confidence)
		}
	}
}
