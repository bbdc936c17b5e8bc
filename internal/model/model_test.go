package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrder(t *testing.T) {
	for i := 1; i < len(Severities); i++ {
		assert.Greater(t, Severities[i].Rank(), Severities[i-1].Rank())
	}
	assert.True(t, SeverityCritical.AtLeast(SeverityError))
	assert.False(t, SeverityNotice.AtLeast(SeverityWarning))
	assert.True(t, SeverityError.IsFailure())
	assert.True(t, SeverityCritical.IsFailure())
	assert.False(t, SeverityWarning.IsFailure())
	assert.Equal(t, -1, Severity("loud").Rank())
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity(" WARNING ")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)

	_, err = ParseSeverity("severe")
	assert.Error(t, err)
}

func TestSeverityUnmarshalRejectsUnknown(t *testing.T) {
	var e struct {
		S Severity `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"error"}`), &e))
	assert.Equal(t, SeverityError, e.S)
	assert.Error(t, json.Unmarshal([]byte(`{"s":"bad"}`), &e))
}

func TestCategoryCauseMapping(t *testing.T) {
	tests := []struct {
		in   Category
		want CauseCategory
	}{
		{CategoryConnectivity, CauseNetwork},
		{CategoryVideo, CauseHardware},
		{CategoryAudio, CauseHardware},
		{CategoryControl, CauseHardware},
		{CategoryHardware, CauseHardware},
		{CategoryAuth, CauseSoftware},
		{CategoryVendorService, CauseSoftware},
		{CategoryConfig, CauseConfiguration},
		{CategoryPower, CausePower},
		{CategoryUserAction, CauseNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.CauseCategory(), tt.in)
	}
	for _, c := range Categories {
		assert.True(t, c.Valid())
	}
	_, err := ParseCategory("weather")
	assert.Error(t, err)
}

func TestNewEventNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2026, 1, 8, 9, 0, 0, 0, loc)
	e := NewEvent(ts, Raw{Line: "x", LineNumber: 3})

	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, 14, e.Timestamp.Hour())
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, ParserVersion, e.ParserVersion)
	assert.Equal(t, 3, e.Raw.LineNumber)

	other := NewEvent(ts, Raw{Line: "x"})
	assert.NotEqual(t, e.ID, other.ID)
}

func TestEventResources(t *testing.T) {
	e := Event{
		SourceSystem: "zoom_rooms_client",
		Location:     Location{Room: "CR-101"},
		Asset:        &Asset{IP: "10.0.0.5", AssetType: "camera"},
	}
	assert.Equal(t, []string{
		"Room: CR-101",
		"Device: 10.0.0.5",
		"Service: zoom_rooms_client",
		"Type: camera",
	}, e.Resources())

	assert.Empty(t, Event{}.Resources())
	assert.True(t, (*Asset)(nil).Empty())
	assert.True(t, (&Asset{}).Empty())
}

func TestParseResultCounters(t *testing.T) {
	r := NewParseResult("zoom", "a.log")
	r.AddEvent(Event{ID: "1"})
	r.AddError(4, "Parse error: bad", strings.Repeat("x", 500))
	r.TotalLines = 2

	assert.Equal(t, 1, r.ParsedLines)
	assert.Equal(t, 1, r.FailedLines)
	require.Len(t, r.Errors, 1)
	assert.Len(t, r.Errors[0].RawLine, 200)
	assert.Equal(t, 4, r.Errors[0].LineNumber)

	other := NewParseResult("qsys", "b.log")
	other.Success = false
	other.AddEvent(Event{ID: "2"})
	other.TotalLines = 1
	r.Merge(other)

	assert.False(t, r.Success)
	assert.Equal(t, 3, r.TotalLines)
	assert.Equal(t, 2, r.ParsedLines)
	assert.Len(t, r.Events, 2)
}

func TestParseErrorRawLineKeepsWholeRunes(t *testing.T) {
	r := NewParseResult("generic", "")
	r.AddError(1, "Parse error: bad", strings.Repeat("é", 300))
	require.Len(t, r.Errors, 1)
	assert.Equal(t, strings.Repeat("é", 200), r.Errors[0].RawLine)

	r.AddError(2, "Parse error: short", "ok")
	assert.Equal(t, "ok", r.Errors[1].RawLine)
}

func TestAddFileErrorIsNotALineFailure(t *testing.T) {
	r := NewParseResult("zoom", "gone.log")
	r.AddFileError("File read error: disk gone")

	assert.False(t, r.Success)
	assert.Zero(t, r.FailedLines)
	require.Len(t, r.Errors, 1)
	assert.Zero(t, r.Errors[0].LineNumber)
	assert.Equal(t, "File read error: disk gone", r.Errors[0].Error)
}
