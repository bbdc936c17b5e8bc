package model

import "time"

// Bundle is the derived, read-only view the correlator computes over one
// batch of events. It is recomputed on every analysis and never persisted.
type Bundle struct {
	Timeline          []Event          `json:"timeline"`
	Clusters          []Cluster        `json:"clusters"`
	Cascades          []Cascade        `json:"cascading_failures"`
	Temporal          TemporalPatterns `json:"temporal_patterns"`
	AffectedResources []string         `json:"affected_resources"`
	ChangeEvents      []Event          `json:"change_events"`
	Bursts            []Burst          `json:"error_bursts"`
}

// Cluster is a group of two or more events that started within one
// correlation window of the cluster's first event.
type Cluster struct {
	Start      time.Time        `json:"start_time"`
	End        time.Time        `json:"end_time"`
	Duration   time.Duration    `json:"duration"`
	EventCount int              `json:"event_count"`
	Events     []Event          `json:"events"`
	Severities map[Severity]int `json:"severity_distribution"`
	Categories map[Category]int `json:"categories"`
}

// Cascade is a primary failure followed by failures in other categories.
type Cascade struct {
	Primary            Event         `json:"primary_event"`
	Followers          []Event       `json:"subsequent_errors"`
	Duration           time.Duration `json:"duration"`
	CategoriesAffected []Category    `json:"categories_affected"` // distinct, first-seen order starting with the primary
}

// TemporalPatterns summarizes when events happen.
type TemporalPatterns struct {
	HourDistribution   map[int]int         `json:"hour_distribution"`
	DayDistribution    map[string]int      `json:"day_distribution"`
	RecurringIntervals []RecurringInterval `json:"recurring_intervals"`
}

// RecurringInterval describes failures arriving at a steady cadence.
type RecurringInterval struct {
	AverageIntervalSeconds float64 `json:"average_interval_seconds"`
	Occurrences            int     `json:"occurrences"`
	Pattern                string  `json:"pattern"` // hourly, daily, every_15_minutes, rapid_succession, every_N_minutes
}

// Burst is a run of at least five failures within sixty seconds.
type Burst struct {
	Start      time.Time     `json:"start_time"`
	ErrorCount int           `json:"error_count"`
	Duration   time.Duration `json:"duration"`
	Events     []Event       `json:"events"`
	Categories []Category    `json:"categories"`
}
