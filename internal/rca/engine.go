// Package rca ranks likely root causes for an incident from parsed events and
// their correlation bundle, and turns the top cause into recommendations and
// escalation guidance.
package rca

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/avrca/internal/correlator"
	"github.com/crimson-sun/avrca/internal/model"
)

var tracer = otel.Tracer("avrca.rca")

const (
	changeLookback  = 24 * time.Hour
	maxChanges      = 5
	maxSecondary    = 3
	maxTimeline     = 10
	insufficientMsg = "Insufficient data to determine root cause"
)

// Engine is stateless per call. Its patterns are read-only after New, so one
// Engine may serve concurrent analyses.
type Engine struct {
	patterns []KnownPattern
	byCause  map[string]KnownPattern
	now      func() time.Time
	rules    []rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for the data-recency check.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over the given known patterns.
func New(patterns []KnownPattern, opts ...Option) *Engine {
	e := &Engine{
		patterns: append([]KnownPattern(nil), patterns...),
		byCause:  make(map[string]KnownPattern, len(patterns)),
		now:      time.Now,
	}
	for _, p := range e.patterns {
		e.byCause[p.Cause()] = p
	}
	for _, o := range opts {
		o(e)
	}
	e.rules = e.strategies()
	return e
}

// Patterns returns a copy of the loaded known patterns.
func (e *Engine) Patterns() []KnownPattern {
	return append([]KnownPattern(nil), e.patterns...)
}

// Analyze produces the incident analysis for events. bundle must be the
// correlation of the same events. query, when set, is echoed in the summary.
func (e *Engine) Analyze(ctx context.Context, events []model.Event, bundle model.Bundle, query string) model.IncidentAnalysis {
	ctx, span := tracer.Start(ctx, "rca.Analyze", trace.WithAttributes(
		attribute.Int("rca.events", len(events)),
	))
	defer span.End()
	start := time.Now()

	if len(events) == 0 {
		analysesTotal.WithLabelValues("none").Inc()
		return emptyAnalysis("No events to analyze")
	}

	sorted := correlator.Sorted(events)
	primary := primaryFailure(sorted, bundle)
	changes := changesBefore(bundle.ChangeEvents, primary)

	causes := rank(e.candidates(ctx, &input{
		events:  sorted,
		bundle:  bundle,
		primary: primary,
		changes: changes,
	}))
	if len(causes) == 0 {
		causes = []model.RootCause{{
			Description: insufficientMsg,
			Confidence:  0.1,
			Evidence:    []string{"No clear error patterns found in available logs"},
		}}
	}
	top := causes[0]
	repeat, history := repeatIssue(bundle)

	affected := append([]string{}, bundle.AffectedResources...)
	if changes == nil {
		changes = []string{}
	}
	analysis := model.IncidentAnalysis{
		Summary:             summary(sorted, top, query),
		TimeWindow:          timeWindow(sorted),
		AffectedResources:   affected,
		RootCause:           top,
		SecondaryCauses:     append([]model.RootCause{}, causes[1:min(1+maxSecondary, len(causes))]...),
		ChangesBefore:       changes,
		Actions:             e.recommendations(top, repeat),
		IsRepeatIssue:       repeat,
		HistoricalContext:   history,
		EscalationGuidance:  escalation(top.Category),
		DataGaps:            e.dataGaps(sorted, bundle),
		TotalEventsAnalyzed: len(events),
		Timeline:            sorted[:min(maxTimeline, len(sorted))],
	}

	label := string(top.Category)
	if label == "" {
		label = "uncategorized"
	}
	analysesTotal.WithLabelValues(label).Inc()
	analysisDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("rca.top_cause", top.Description),
		attribute.Float64("rca.confidence", top.Confidence),
	)
	slog.Debug("rca analysis complete",
		"events", len(events),
		"candidates", len(causes),
		"top_cause", top.Description,
		"confidence", top.Confidence,
	)
	return analysis
}

// candidates runs every rule concurrently and joins the results in rule
// order.
func (e *Engine) candidates(ctx context.Context, in *input) []model.RootCause {
	slots := make([][]model.RootCause, len(e.rules))
	var g errgroup.Group
	for i, r := range e.rules {
		g.Go(func() error {
			_, span := tracer.Start(ctx, "rca.rule."+r.name)
			defer span.End()
			slots[i] = r.run(in)
			candidatesTotal.WithLabelValues(r.name).Add(float64(len(slots[i])))
			return nil
		})
	}
	_ = g.Wait()

	var out []model.RootCause
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

// primaryFailure prefers the first burst, then the first cascade, then the
// first failure, then the first event.
func primaryFailure(sorted []model.Event, bundle model.Bundle) model.Event {
	if len(bundle.Bursts) > 0 && len(bundle.Bursts[0].Events) > 0 {
		return bundle.Bursts[0].Events[0]
	}
	if len(bundle.Cascades) > 0 {
		return bundle.Cascades[0].Primary
	}
	for _, ev := range sorted {
		if ev.IsFailure() {
			return ev
		}
	}
	return sorted[0]
}

// changesBefore formats the change events strictly before the failure and at
// most a day old, keeping the most recent few in time order.
func changesBefore(changeEvents []model.Event, failure model.Event) []string {
	var before []model.Event
	for _, c := range correlator.Sorted(changeEvents) {
		d := failure.Timestamp.Sub(c.Timestamp)
		if d > 0 && d <= changeLookback {
			before = append(before, c)
		}
	}
	if len(before) > maxChanges {
		before = before[len(before)-maxChanges:]
	}
	var out []string
	for _, c := range before {
		out = append(out, fmt.Sprintf("%s (%d min before failure): %s",
			c.Timestamp.Format(time.RFC3339),
			int(failure.Timestamp.Sub(c.Timestamp).Minutes()),
			c.Message))
	}
	return out
}

// rank merges candidates with the same description, keeping the highest
// confidence and all evidence, then sorts by confidence. Equal confidences
// keep rule order.
func rank(cands []model.RootCause) []model.RootCause {
	idx := map[string]int{}
	var out []model.RootCause
	for _, c := range cands {
		if i, ok := idx[c.Description]; ok {
			out[i].Evidence = append(out[i].Evidence, c.Evidence...)
			out[i].Confidence = max(out[i].Confidence, c.Confidence)
			continue
		}
		c.Evidence = append([]string{}, c.Evidence...)
		idx[c.Description] = len(out)
		out = append(out, c)
	}
	for i := range out {
		out[i].Confidence = roundConfidence(out[i].Confidence)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func roundConfidence(c float64) float64 {
	return math.Round(min(1, max(0, c))*100) / 100
}

func repeatIssue(bundle model.Bundle) (bool, string) {
	if ri := bundle.Temporal.RecurringIntervals; len(ri) > 0 {
		return true, fmt.Sprintf("This issue recurs %s with %d occurrences detected. "+
			"Indicates a systemic issue requiring permanent fix, not temporary workaround.",
			ri[0].Pattern, ri[0].Occurrences)
	}
	if n := len(bundle.Bursts); n > 1 {
		return true, fmt.Sprintf("Multiple error bursts detected (%d incidents). Pattern suggests recurring problem.", n)
	}
	return false, ""
}

func emptyAnalysis(msg string) model.IncidentAnalysis {
	return model.IncidentAnalysis{
		Summary:           msg,
		TimeWindow:        "N/A",
		AffectedResources: []string{},
		RootCause: model.RootCause{
			Description: "No data available for analysis",
			Confidence:  0,
			Evidence:    []string{},
		},
		SecondaryCauses: []model.RootCause{},
		ChangesBefore:   []string{},
		Actions:         []model.RecommendedAction{},
		DataGaps:        []string{"No log data provided"},
	}
}
