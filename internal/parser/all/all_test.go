package all

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
	"github.com/crimson-sun/avrca/internal/parser/corpus"
)

func TestAllRegistered(t *testing.T) {
	assert.Equal(t, []string{"changes", "generic", "network", "qsys", "tickets", "zoom"}, parser.Names())
}

func TestCorpus(t *testing.T) {
	entries, err := corpus.Load()
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		t.Run(e.Description, func(t *testing.T) {
			p, err := parser.Get(e.Parser)
			require.NoError(t, err)
			lp, ok := p.(parser.LineParser)
			require.True(t, ok, "%s is not a line parser", e.Parser)

			ev, err := lp.ParseLine(e.Raw, 1, "corpus")
			require.NoError(t, err)
			require.NotNil(t, ev)
			assert.Equal(t, e.ExpectedSeverity, string(ev.Severity))
			assert.Equal(t, e.ExpectedCategory, string(ev.Category))
			assert.Equal(t, e.ExpectedSignal, ev.Signal)
			if e.ExpectedRoom != "" {
				assert.Equal(t, e.ExpectedRoom, ev.Location.Room)
			}
		})
	}
}

// identityless returns the JSON of ev with its generated ID cleared.
func identityless(t *testing.T, ev model.Event) string {
	t.Helper()
	ev.ID = ""
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(data)
}

func TestParseLineIsIdempotent(t *testing.T) {
	entries, err := corpus.Load()
	require.NoError(t, err)

	for _, e := range entries {
		t.Run(e.Description, func(t *testing.T) {
			p, err := parser.Get(e.Parser)
			require.NoError(t, err)
			lp := p.(parser.LineParser)

			first, err := lp.ParseLine(e.Raw, 7, "corpus")
			require.NoError(t, err)
			second, err := lp.ParseLine(e.Raw, 7, "corpus")
			require.NoError(t, err)

			assert.NotEqual(t, first.ID, second.ID)
			assert.Equal(t, identityless(t, *first), identityless(t, *second))
		})
	}
}

func TestParseRowsIsIdempotent(t *testing.T) {
	inputs := map[string]string{
		"tickets": "ticket_id,created_at,status,priority,category,title,room\n" +
			"INC0012345,2026-01-08 14:23:45,open,high,av_hardware,Camera offline in CR-101,CR-101\n",
		"changes": "change_id,change_type,scheduled_at,status,target_identifier,change_description,new_version\n" +
			"CHG0012345,firmware_update,2026-01-08 14:00:00,completed,10.1.5.50,Upgrade Q-SYS Core,9.8.1\n",
	}
	for name, csv := range inputs {
		t.Run(name, func(t *testing.T) {
			p, err := parser.Get(name)
			require.NoError(t, err)

			first := parser.ParseText(p, csv, name+".csv")
			second := parser.ParseText(p, csv, name+".csv")
			require.Len(t, first.Events, 1)
			require.Len(t, second.Events, 1)
			assert.Equal(t, identityless(t, first.Events[0]), identityless(t, second.Events[0]))
		})
	}
}

func TestSelect(t *testing.T) {
	tests := map[string]string{
		"zr-cr-101.log":              "zoom",
		"/logs/ZoomRooms-jan.log":    "zoom",
		"core-110f.log":              "qsys",
		"qsys-syslog.log":            "qsys",
		"switch-01.log":              "network",
		"meraki.log.gz":              "network",
		"servicenow_export.csv":      "tickets",
		"chg_jan.csv":                "changes",
		"/tmp/change-window.csv.zst": "changes",
	}
	for name, want := range tests {
		p, err := parser.Select(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, p.Info().Name, name)
	}

	_, err := parser.Select("pasted.txt")
	assert.ErrorIs(t, err, parser.ErrNoParser)
}
