package changes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

func TestParseFirmwareChange(t *testing.T) {
	csv := "change_id,change_type,scheduled_at,status,target_identifier,change_description,changed_by,new_version,room\n" +
		"CHG0012345,firmware_update,2026-01-08 14:00:00,completed,10.1.5.50,Upgrade Q-SYS Core to 9.8.1,ops_team,9.8.1,CR-101\n"
	res := parser.ParseText(New(""), csv, "changes.csv")
	require.Empty(t, res.Errors)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]

	assert.Equal(t, time.Date(2026, 1, 8, 14, 0, 0, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, model.SourceChange, ev.SourceType)
	assert.Equal(t, "manual", ev.SourceVendor)
	assert.Equal(t, "CHG0012345", ev.ChangeID)
	assert.Equal(t, model.SeverityInfo, ev.Severity)
	assert.Equal(t, model.CategoryConfig, ev.Category)
	assert.Equal(t, "change.firmware_update.completed", ev.Signal)
	assert.Equal(t, "Change CHG0012345 (firmware_update): Upgrade Q-SYS Core to 9.8.1 on 10.1.5.50 - Status: completed", ev.Message)
	assert.Equal(t, "CR-101", ev.Location.Room)
	assert.Equal(t, []string{"change_type:firmware_update", "status:completed", "target_type:device", "firmware", "update"}, ev.Tags)
	assert.Equal(t, "9.8.1", ev.Metadata["new_version"])
	assert.Equal(t, "ops_team", ev.Metadata["changed_by"])
	assert.Equal(t, "2026-01-08T14:00:00Z", ev.Metadata["scheduled_at"])
	assert.NotContains(t, ev.Metadata, "executed_at")

	require.NotNil(t, ev.Asset)
	assert.Equal(t, "10.1.5.50", ev.Asset.IP)
}

func TestExecutedTimeWinsAndRollbackIsError(t *testing.T) {
	csv := "change_id,type,planned_start,actual_start,state,risk_level,target,description\n" +
		"CHG2,network,2026-01-08 09:00:00,2026-01-08 09:30:00,Rolled_Back,high,sw-core-1,Move AV VLAN\n"
	res := parser.ParseText(New(""), csv, "chg.csv")
	require.Len(t, res.Events, 1)
	ev := res.Events[0]

	assert.Equal(t, time.Date(2026, 1, 8, 9, 30, 0, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, "2026-01-08 09:30:00", ev.Raw.Timestamp)
	assert.Equal(t, model.SeverityError, ev.Severity)
	assert.Equal(t, model.CategoryConnectivity, ev.Category)
	assert.Equal(t, "change.network.rolled_back", ev.Signal)
	assert.Equal(t, "high", ev.Metadata["risk_level"])
	assert.Equal(t, "2026-01-08T09:30:00Z", ev.Metadata["executed_at"])
	require.NotNil(t, ev.Asset)
	assert.Equal(t, "sw-core-1", ev.Asset.Hostname)
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		status, risk string
		want         model.Severity
	}{
		{"failed", "low", model.SeverityError},
		{"scheduled", "High", model.SeverityWarning},
		{"scheduled", "medium", model.SeverityNotice},
		{"closed", "", model.SeverityInfo},
		{"in_progress", "", model.SeverityNotice},
		{"scheduled", "", model.SeverityInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, severity(tt.status, tt.risk), tt.status+"/"+tt.risk)
	}
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, model.CategoryConfig, categorize("patch Tuesday"))
	assert.Equal(t, model.CategoryHardware, categorize("replace projector lamp"))
	assert.Equal(t, model.CategoryPower, categorize("UPS battery swap"))
	assert.Equal(t, model.CategoryConfig, categorize("general_change Something"))
}

func TestRowErrors(t *testing.T) {
	csv := "change_id,scheduled_at\n,2026-01-08 10:00:00\nCHG9,\n"
	res := parser.ParseText(New(""), csv, "changes.csv")
	assert.Empty(t, res.Events)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "Parse error: Missing change_id", res.Errors[0].Error)
	assert.Equal(t, "Parse error: Missing scheduled_at timestamp", res.Errors[1].Error)
	assert.Equal(t, 3, res.Errors[1].LineNumber)
}
