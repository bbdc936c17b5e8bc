package tickets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

func TestParseServiceNowExport(t *testing.T) {
	csv := "ticket_id,created_at,status,priority,category,title,room,assigned_to,business_impact\n" +
		"INC0012345,2026-01-08 14:23:45,open,high,av_hardware,Camera offline in CR-101,CR-101,AV Team,exec meeting\n"
	res := parser.ParseText(New(""), csv, "tickets.csv")
	require.Empty(t, res.Errors)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]

	assert.Equal(t, time.Date(2026, 1, 8, 14, 23, 45, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, model.SourceTicket, ev.SourceType)
	assert.Equal(t, "servicenow", ev.SourceSystem)
	assert.Equal(t, "INC0012345", ev.TicketID)
	assert.Equal(t, model.SeverityError, ev.Severity)
	assert.Equal(t, model.CategoryAudio, ev.Category)
	assert.Equal(t, "ticket.av_hardware.open", ev.Signal)
	assert.Equal(t, "Ticket INC0012345: Camera offline in CR-101", ev.Message)
	assert.Equal(t, "CR-101", ev.Location.Room)
	assert.Equal(t, []string{"status:open", "priority:high", "category:av_hardware", "camera", "offline"}, ev.Tags)
	assert.Equal(t, "AV Team", ev.Metadata["assigned_to"])
	assert.Equal(t, "exec meeting", ev.Metadata["business_impact"])
	assert.NotContains(t, ev.Metadata, "description")
	assert.Equal(t, 2, ev.Raw.LineNumber)
	assert.Equal(t, "2026-01-08 14:23:45", ev.Raw.Timestamp)
	assert.Equal(t, "INC0012345", ev.Raw.Fields["ticket_id"])
}

func TestParseAliasedColumns(t *testing.T) {
	csv := "Number,Opened_At,State,Urgency,Type,Short_Description,Location\n" +
		"INC2,01/09/2026 08:00:00,In Progress,P1,Network,WiFi down,Building A Room HQ200\n"
	res := parser.ParseText(New("jira"), csv, "jira.csv")
	require.Len(t, res.Events, 1)
	ev := res.Events[0]

	assert.Equal(t, time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, "jira", ev.SourceVendor)
	assert.Equal(t, model.SeverityCritical, ev.Severity)
	assert.Equal(t, model.CategoryConnectivity, ev.Category)
	assert.Equal(t, "ticket.network.in_progress", ev.Signal)
	assert.Equal(t, "HQ200", ev.Location.Room)
	assert.Equal(t, []string{"status:in progress", "priority:p1", "category:network", "wifi"}, ev.Tags)
}

func TestRowErrors(t *testing.T) {
	csv := "ticket_id,created_at,title\n" +
		",2026-01-08 10:00:00,no id\n" +
		"INC3,,no time\n" +
		"INC4,whenever,bad time\n" +
		"INC5,2026-01-08 10:00:00,\n"
	res := parser.ParseText(New(""), csv, "tickets.csv")

	require.Len(t, res.Events, 1)
	assert.Equal(t, "Ticket INC5: No title", res.Events[0].Message)
	assert.Equal(t, model.SeverityWarning, res.Events[0].Severity, "priority defaults to medium")
	assert.Equal(t, "ticket.general.unknown", res.Events[0].Signal)

	require.Len(t, res.Errors, 3)
	assert.Equal(t, 2, res.Errors[0].LineNumber)
	assert.Equal(t, "Parse error: Missing ticket_id", res.Errors[0].Error)
	assert.Equal(t, "Parse error: Missing created_at timestamp", res.Errors[1].Error)
	assert.Contains(t, res.Errors[2].Error, "invalid created_at timestamp")
}

func TestMapCategory(t *testing.T) {
	tests := map[string]model.Category{
		"Ethernet":       model.CategoryConnectivity,
		"Video":          model.CategoryAudio,
		"PoE":            model.CategoryPower,
		"Access Request": model.CategoryAuth,
		"Settings":       model.CategoryConfig,
		"Touch Panel":    model.CategoryControl,
		"Device":         model.CategoryHardware,
		"Training":       model.CategoryUserAction,
		"general":        model.CategoryHardware,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapCategory(in), in)
	}
}

func TestMapPriority(t *testing.T) {
	assert.Equal(t, model.SeverityCritical, mapPriority("urgent"))
	assert.Equal(t, model.SeverityError, mapPriority("p2"))
	assert.Equal(t, model.SeverityWarning, mapPriority("moderate"))
	assert.Equal(t, model.SeverityNotice, mapPriority("low"))
	assert.Equal(t, model.SeverityInfo, mapPriority("planning"))
}
