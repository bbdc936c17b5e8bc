package model

import (
	"time"

	"github.com/google/uuid"
)

// ParserVersion is stamped on every event produced by this module.
const ParserVersion = "1.0.0"

// SourceType classifies where an event came from.
type SourceType string

const (
	SourceAV      SourceType = "av"
	SourceNetwork SourceType = "network"
	SourceCompute SourceType = "compute"
	SourceApp     SourceType = "app"
	SourceTicket  SourceType = "ticket"
	SourceChange  SourceType = "change"
)

// Location is the optional site/building/floor/room hierarchy of an event.
type Location struct {
	Site     string `json:"site,omitempty"`
	Building string `json:"building,omitempty"`
	Floor    string `json:"floor,omitempty"`
	Room     string `json:"room,omitempty"`
}

// Asset identifies the device an event is about. Fields that could not be
// determined from the source are left empty, never guessed.
type Asset struct {
	AssetID         string `json:"asset_id,omitempty"`
	AssetType       string `json:"asset_type,omitempty"` // display, codec, dsp, controller, switch, ap, pc, sensor, camera, microphone, speaker, other
	Make            string `json:"make,omitempty"`
	Model           string `json:"model,omitempty"`
	Serial          string `json:"serial,omitempty"`
	IP              string `json:"ip,omitempty"`
	MAC             string `json:"mac,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// Empty reports whether no field of the asset is set.
func (a *Asset) Empty() bool {
	return a == nil || *a == Asset{}
}

// Event is the canonical, vendor-agnostic record every parser emits and every
// downstream stage consumes.
type Event struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"ts"` // always UTC

	SourceType   SourceType `json:"source_type"`
	SourceVendor string     `json:"source_vendor"`
	SourceSystem string     `json:"source_system"`

	Location Location `json:"location"`
	Asset    *Asset   `json:"asset,omitempty"`

	Severity Severity `json:"severity"`
	Category Category `json:"category"`

	Signal  string `json:"signal"`  // stable dotted identifier, e.g. network.poe.denied
	Message string `json:"message"` // human-readable

	IncidentID     string            `json:"incident_id,omitempty"`
	TicketID       string            `json:"ticket_id,omitempty"`
	ChangeID       string            `json:"change_id,omitempty"`
	CorrelationIDs map[string]string `json:"correlation_ids,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
	Tags     []string       `json:"tags,omitempty"`

	Raw Raw `json:"raw"`

	IngestedAt    time.Time `json:"ingested_at,omitzero"` // set when the event enters a pipeline
	ParserVersion string    `json:"parser_version"`
}

// NewEvent returns an event with a fresh ID, the timestamp normalized to UTC
// and the provenance attached. IngestedAt is left zero so that parsing is a
// pure function of the input. Callers fill the remaining fields before
// handing the event downstream.
func NewEvent(ts time.Time, raw Raw) Event {
	return Event{
		ID:            uuid.NewString(),
		Timestamp:     ts.UTC(),
		Raw:           raw,
		ParserVersion: ParserVersion,
	}
}

// Room is shorthand for e.Location.Room.
func (e Event) Room() string { return e.Location.Room }

// DeviceID returns the most specific device identifier available.
func (e Event) DeviceID() string {
	if e.Asset == nil {
		return ""
	}
	switch {
	case e.Asset.AssetID != "":
		return e.Asset.AssetID
	case e.Asset.Hostname != "":
		return e.Asset.Hostname
	default:
		return e.Asset.IP
	}
}

// Resources returns the affected-resource labels this event contributes.
func (e Event) Resources() []string {
	var out []string
	if r := e.Location.Room; r != "" {
		out = append(out, "Room: "+r)
	}
	if d := e.DeviceID(); d != "" {
		out = append(out, "Device: "+d)
	}
	if e.SourceSystem != "" {
		out = append(out, "Service: "+e.SourceSystem)
	}
	if e.Asset != nil && e.Asset.AssetType != "" {
		out = append(out, "Type: "+e.Asset.AssetType)
	}
	return out
}

// IsFailure reports whether the event is error or critical.
func (e Event) IsFailure() bool { return e.Severity.IsFailure() }
