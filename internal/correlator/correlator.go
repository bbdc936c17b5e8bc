// Package correlator derives temporal and causal structure from a batch of
// canonical events: clusters, cascades, periodicity, bursts, change events
// and the set of affected resources.
//
// Every function here is pure. Input events are never mutated and the same
// event set yields the same Bundle regardless of input order.
package correlator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crimson-sun/avrca/internal/model"
)

// DefaultWindow is the correlation window used when none is configured.
const DefaultWindow = 300 * time.Second

const (
	burstWindow    = 60 * time.Second
	burstThreshold = 5
	minRecurring   = 3
	// A gap series is periodic when its population variance is below this
	// fraction of its mean.
	recurringVarianceRatio = 0.1
)

var changeKeywords = []string{"config", "update", "modify", "change", "deploy", "restart", "reboot"}

// Correlator groups events that happen within one window of each other.
type Correlator struct {
	window time.Duration
}

// New creates a Correlator. A non-positive window selects DefaultWindow.
func New(window time.Duration) *Correlator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Correlator{window: window}
}

// Window returns the configured correlation window.
func (c *Correlator) Window() time.Duration { return c.window }

// Correlate sorts a copy of events chronologically and computes the Bundle.
func (c *Correlator) Correlate(events []model.Event) model.Bundle {
	sorted := Sorted(events)
	return model.Bundle{
		Timeline:          sorted,
		Clusters:          c.clusters(sorted),
		Cascades:          c.cascades(sorted),
		Temporal:          temporalPatterns(sorted),
		AffectedResources: affectedResources(sorted),
		ChangeEvents:      changeEvents(sorted),
		Bursts:            bursts(sorted),
	}
}

// Sorted returns a copy of events ordered by timestamp. Equal timestamps are
// ordered by event ID so the result does not depend on input order.
func Sorted(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsChange reports whether the event message names a change.
func IsChange(e model.Event) bool {
	msg := strings.ToLower(e.Message)
	for _, kw := range changeKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// EventsBefore returns the events in [failure-lookback, failure), sorted.
func EventsBefore(events []model.Event, failure model.Event, lookback time.Duration) []model.Event {
	cutoff := failure.Timestamp.Add(-lookback)
	var out []model.Event
	for _, e := range events {
		if !e.Timestamp.Before(cutoff) && e.Timestamp.Before(failure.Timestamp) {
			out = append(out, e)
		}
	}
	return Sorted(out)
}

// clusters grows each cluster from a fixed origin: an event joins while it is
// within the window of the cluster's first event. Singletons are dropped.
func (c *Correlator) clusters(events []model.Event) []model.Cluster {
	out := []model.Cluster{}
	var cur []model.Event
	flush := func() {
		if len(cur) > 1 {
			out = append(out, newCluster(cur))
		}
	}
	for _, e := range events {
		if len(cur) > 0 && e.Timestamp.Sub(cur[0].Timestamp) <= c.window {
			cur = append(cur, e)
			continue
		}
		flush()
		cur = []model.Event{e}
	}
	flush()
	return out
}

func newCluster(events []model.Event) model.Cluster {
	start, end := events[0].Timestamp, events[len(events)-1].Timestamp
	cl := model.Cluster{
		Start:      start,
		End:        end,
		Duration:   end.Sub(start),
		EventCount: len(events),
		Events:     events,
		Severities: map[model.Severity]int{},
		Categories: map[model.Category]int{},
	}
	for _, e := range events {
		cl.Severities[e.Severity]++
		cl.Categories[e.Category]++
	}
	return cl
}

// cascades treats every failure as a potential primary and collects later
// failures of a different category within the window. Scanning stops at the
// first failure outside the window.
func (c *Correlator) cascades(events []model.Event) []model.Cascade {
	failures := failuresOf(events)
	out := []model.Cascade{}
	for i := 0; i < len(failures)-1; i++ {
		primary := failures[i]
		var followers []model.Event
		for _, cand := range failures[i+1:] {
			if cand.Timestamp.Sub(primary.Timestamp) > c.window {
				break
			}
			if cand.Category != primary.Category {
				followers = append(followers, cand)
			}
		}
		if len(followers) == 0 {
			continue
		}
		cats := []model.Category{primary.Category}
		for _, f := range followers {
			cats = appendUnique(cats, f.Category)
		}
		out = append(out, model.Cascade{
			Primary:            primary,
			Followers:          followers,
			Duration:           followers[len(followers)-1].Timestamp.Sub(primary.Timestamp),
			CategoriesAffected: cats,
		})
	}
	return out
}

func temporalPatterns(events []model.Event) model.TemporalPatterns {
	tp := model.TemporalPatterns{
		HourDistribution:   map[int]int{},
		DayDistribution:    map[string]int{},
		RecurringIntervals: []model.RecurringInterval{},
	}
	for _, e := range events {
		tp.HourDistribution[e.Timestamp.Hour()]++
		tp.DayDistribution[e.Timestamp.Weekday().String()]++
	}

	failures := failuresOf(events)
	if len(failures) < minRecurring {
		return tp
	}
	gaps := make([]float64, 0, len(failures)-1)
	for i := 1; i < len(failures); i++ {
		gaps = append(gaps, failures[i].Timestamp.Sub(failures[i-1].Timestamp).Seconds())
	}
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))
	var variance float64
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))

	if variance < mean*recurringVarianceRatio {
		tp.RecurringIntervals = append(tp.RecurringIntervals, model.RecurringInterval{
			AverageIntervalSeconds: mean,
			Occurrences:            len(failures),
			Pattern:                ClassifyInterval(mean),
		})
	}
	return tp
}

// ClassifyInterval names a mean gap between failures.
func ClassifyInterval(seconds float64) string {
	switch {
	case seconds >= 3500 && seconds <= 3700:
		return "hourly"
	case seconds >= 85000 && seconds <= 88000:
		return "daily"
	case seconds >= 600 && seconds <= 900:
		return "every_15_minutes"
	case seconds < 60:
		return "rapid_succession"
	}
	return fmt.Sprintf("every_%d_minutes", int(seconds/60))
}

func affectedResources(events []model.Event) []string {
	seen := map[string]struct{}{}
	for _, e := range events {
		for _, r := range e.Resources() {
			seen[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func changeEvents(events []model.Event) []model.Event {
	out := []model.Event{}
	for _, e := range events {
		if IsChange(e) {
			out = append(out, e)
		}
	}
	return out
}

// bursts reports, for every failure, the run of failures that follow it
// within burstWindow when the run reaches burstThreshold. Runs may overlap.
func bursts(events []model.Event) []model.Burst {
	failures := failuresOf(events)
	out := []model.Burst{}
	for i, first := range failures {
		n := 1
		for _, next := range failures[i+1:] {
			if next.Timestamp.Sub(first.Timestamp) > burstWindow {
				break
			}
			n++
		}
		if n < burstThreshold {
			continue
		}
		members := failures[i : i+n]
		var cats []model.Category
		for _, e := range members {
			cats = appendUnique(cats, e.Category)
		}
		sort.Slice(cats, func(a, b int) bool { return cats[a] < cats[b] })
		out = append(out, model.Burst{
			Start:      first.Timestamp,
			ErrorCount: n,
			Duration:   members[n-1].Timestamp.Sub(first.Timestamp),
			Events:     members,
			Categories: cats,
		})
	}
	return out
}

func failuresOf(events []model.Event) []model.Event {
	var out []model.Event
	for _, e := range events {
		if e.IsFailure() {
			out = append(out, e)
		}
	}
	return out
}

func appendUnique(cats []model.Category, c model.Category) []model.Category {
	for _, have := range cats {
		if have == c {
			return cats
		}
	}
	return append(cats, c)
}
