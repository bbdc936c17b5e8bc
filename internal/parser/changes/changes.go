// Package changes parses change-management CSV exports: firmware updates,
// configuration changes and hardware work.
package changes

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

const Name = "changes"

func init() { parser.Register(New("manual")) }

var (
	errMissingID        = errors.New("Missing change_id")
	errMissingScheduled = errors.New("Missing scheduled_at timestamp")
)

var (
	idCols        = []string{"change_id", "number", "chg_number", "id"}
	typeCols      = []string{"change_type", "type", "category"}
	scheduledCols = []string{"scheduled_at", "planned_start", "scheduled_start", "start_date"}
	executedCols  = []string{"executed_at", "actual_start", "work_start", "implemented_at"}
	completedCols = []string{"completed_at", "actual_end", "work_end", "closed_at"}
	statusCols    = []string{"status", "state", "change_state"}
	targetCols    = []string{"target_identifier", "target", "ci_name", "device", "hostname", "ip"}
	descCols      = []string{"change_description", "description", "short_description", "summary"}
	roomCols      = []string{"room", "location", "affected_location"}
	optionalCols  = []string{"risk_level", "expected_impact", "actual_impact", "approval_id", "rollback_plan"}
	typeTags      = []string{"firmware", "config", "hardware", "network", "software", "update", "upgrade"}
	roomCodeRe    = regexp.MustCompile(`(?i)([A-Z]{2,}[-_]?\d+)`)
)

var categoryMap = []parser.CategoryRule{
	{Category: model.CategoryConfig, Keywords: []string{"firmware", "software", "patch", "update", "upgrade"}},
	{Category: model.CategoryConfig, Keywords: []string{"config", "setting", "parameter"}},
	{Category: model.CategoryHardware, Keywords: []string{"hardware", "replace", "install", "cable"}},
	{Category: model.CategoryConnectivity, Keywords: []string{"network", "vlan", "switch", "router"}},
	{Category: model.CategoryPower, Keywords: []string{"power", "poe", "ups"}},
}

// Parser is the change-record CSV row parser.
type Parser struct {
	system string
}

// New returns a change parser that stamps events with sourceSystem.
func New(sourceSystem string) *Parser {
	if sourceSystem == "" {
		sourceSystem = "manual"
	}
	return &Parser{system: sourceSystem}
}

func (p *Parser) Info() parser.Info {
	return parser.Info{
		Name:         Name,
		SourceType:   model.SourceChange,
		Vendor:       "manual",
		FilePatterns: []string{`.*change.*\.csv`, `.*chg.*\.csv`},
		Priority:     50,
	}
}

func (p *Parser) ParseRow(row parser.Row, rowNo int, source string) (*model.Event, error) {
	id := row.First(idCols...)
	if id == "" {
		return nil, errMissingID
	}
	changeType := orDefault(row.First(typeCols...), "general_change")

	scheduledRaw := row.First(scheduledCols...)
	if scheduledRaw == "" {
		return nil, errMissingScheduled
	}
	scheduled, err := parser.ParseTimestampField(scheduledRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduled_at timestamp %q", scheduledRaw)
	}
	executed, executedRaw := optionalTime(row, executedCols)
	completed, _ := optionalTime(row, completedCols)

	ts, rawTS := scheduled, scheduledRaw
	if !executed.IsZero() {
		ts, rawTS = executed, executedRaw
	}

	status := orDefault(strings.ToLower(row.First(statusCols...)), "unknown")
	targetType := orDefault(row.Get("target_type"), "device")
	target := orDefault(row.First(targetCols...), "unknown")
	description := orDefault(row.First(descCols...), "No description")
	changedBy := orDefault(row.First("changed_by", "requested_by"), "unknown")

	ev := model.NewEvent(ts, model.Raw{
		Line:       row.Line(),
		Timestamp:  rawTS,
		SourceFile: source,
		LineNumber: rowNo,
		Fields:     row.Fields(),
	})
	ev.SourceType = model.SourceChange
	ev.SourceVendor = "manual"
	ev.SourceSystem = p.system
	ev.ChangeID = id
	ev.Severity = severity(status, row.Get("risk_level"))
	ev.Category = categorize(changeType + " " + description)
	ev.Signal = "change." + parser.CleanToken(changeType) + "." + parser.CleanToken(status)
	ev.Message = fmt.Sprintf("Change %s (%s): %s on %s - Status: %s", id, changeType, description, target, status)
	ev.Location = model.Location{
		Room:     extractRoom(row),
		Building: row.Get("building"),
		Floor:    row.Get("floor"),
		Site:     row.Get("site"),
	}
	ev.Asset = targetAsset(target, targetType)

	meta := map[string]any{
		"change_id":         id,
		"change_type":       changeType,
		"status":            status,
		"target_type":       targetType,
		"target_identifier": target,
		"description":       description,
		"changed_by":        changedBy,
		"scheduled_at":      scheduled.Format(time.RFC3339),
	}
	if v := row.First("previous_version", "from_version"); v != "" {
		meta["previous_version"] = v
	}
	if v := row.First("new_version", "to_version"); v != "" {
		meta["new_version"] = v
	}
	for _, col := range optionalCols {
		if v := row.Get(col); v != "" {
			meta[col] = v
		}
	}
	if !executed.IsZero() {
		meta["executed_at"] = executed.Format(time.RFC3339)
	}
	if !completed.IsZero() {
		meta["completed_at"] = completed.Format(time.RFC3339)
	}
	ev.Metadata = meta
	ev.Tags = tags(changeType, status, targetType)
	return &ev, nil
}

// optionalTime returns the first alias that parses; unparseable values are
// ignored.
func optionalTime(row parser.Row, cols []string) (time.Time, string) {
	raw := row.First(cols...)
	if raw == "" {
		return time.Time{}, ""
	}
	t, err := parser.ParseTimestampField(raw)
	if err != nil {
		return time.Time{}, ""
	}
	return t, raw
}

func categorize(text string) model.Category {
	folded := parser.Fold(text)
	for _, r := range categoryMap {
		for _, kw := range r.Keywords {
			if strings.Contains(folded, kw) {
				return r.Category
			}
		}
	}
	return model.CategoryConfig
}

func severity(status, risk string) model.Severity {
	has := func(s string, kws ...string) bool {
		for _, kw := range kws {
			if strings.Contains(s, kw) {
				return true
			}
		}
		return false
	}
	risk = strings.ToLower(risk)
	switch {
	case has(status, "failed", "error", "rolled_back"):
		return model.SeverityError
	case has(risk, "high", "critical"):
		return model.SeverityWarning
	case has(risk, "medium"):
		return model.SeverityNotice
	case has(status, "completed", "successful", "closed"):
		return model.SeverityInfo
	case has(status, "progress", "implementing"):
		return model.SeverityNotice
	}
	return model.SeverityInfo
}

// targetAsset turns the change target into an asset when it names a device.
func targetAsset(target, targetType string) *model.Asset {
	if target == "unknown" || !strings.EqualFold(targetType, "device") {
		return nil
	}
	if ip := net.ParseIP(target); ip != nil {
		return &model.Asset{AssetID: target, IP: target}
	}
	if strings.ContainsAny(target, " \t") {
		return nil
	}
	return &model.Asset{AssetID: target, Hostname: target}
}

func extractRoom(row parser.Row) string {
	v := row.First(roomCols...)
	if v == "" {
		return ""
	}
	if m := roomCodeRe.FindStringSubmatch(v); m != nil {
		return strings.ToUpper(m[1])
	}
	return v
}

func tags(changeType, status, targetType string) []string {
	out := []string{
		"change_type:" + strings.ReplaceAll(strings.ToLower(changeType), " ", "_"),
		"status:" + strings.ReplaceAll(status, " ", "_"),
		"target_type:" + strings.ToLower(targetType),
	}
	lower := strings.ToLower(changeType)
	for _, kw := range typeTags {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
