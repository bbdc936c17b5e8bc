package model

// Urgency ranks a recommended action.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// RootCause is one ranked hypothesis. Confidence is in [0,1] and rounded to
// two decimals once ranking is done.
type RootCause struct {
	Description string        `json:"description"`
	Confidence  float64       `json:"confidence"`
	Evidence    []string      `json:"evidence"`
	Category    CauseCategory `json:"category,omitempty"`
}

// RecommendedAction is a next step with an owner.
type RecommendedAction struct {
	Action  string  `json:"action"`
	Owner   string  `json:"owner"`
	Urgency Urgency `json:"urgency"`
}

// IncidentAnalysis is the final artifact of one analysis call. Renderers read
// it; nothing writes to it after the engine returns.
type IncidentAnalysis struct {
	Summary             string              `json:"incident_summary"`
	TimeWindow          string              `json:"time_window_analyzed"`
	AffectedResources   []string            `json:"affected_resources"`
	RootCause           RootCause           `json:"most_likely_root_cause"`
	SecondaryCauses     []RootCause         `json:"secondary_possible_causes"`
	ChangesBefore       []string            `json:"what_changed_before_incident"`
	Actions             []RecommendedAction `json:"recommended_next_actions"`
	IsRepeatIssue       bool                `json:"is_repeat_issue"`
	HistoricalContext   string              `json:"historical_context,omitempty"`
	EscalationGuidance  string              `json:"escalation_guidance"`
	DataGaps            []string            `json:"data_gaps"`
	TotalEventsAnalyzed int                 `json:"total_events_analyzed"`
	Timeline            []Event             `json:"timeline,omitempty"`
}
