// Package tickets parses incident ticket CSV exports from ServiceNow, Jira
// and similar systems. Column names vary between exports, so every field is
// looked up through a list of aliases.
package tickets

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

const Name = "tickets"

func init() { parser.Register(New("servicenow")) }

var (
	errMissingID      = errors.New("Missing ticket_id")
	errMissingCreated = errors.New("Missing created_at timestamp")
)

var (
	idCols       = []string{"ticket_id", "number", "incident_number", "id", "issue_key"}
	createdCols  = []string{"created_at", "opened_at", "created", "opened", "sys_created_on"}
	statusCols   = []string{"status", "state", "incident_state"}
	priorityCols = []string{"priority", "severity", "impact", "urgency"}
	categoryCols = []string{"category", "type", "subcategory", "classification"}
	titleCols    = []string{"title", "short_description", "summary", "subject"}
	descCols     = []string{"description", "details", "comments", "work_notes"}
	roomCols     = []string{"room", "location", "affected_location", "ci_name"}
	optionalCols = []string{"affected_users", "business_impact", "resolved_at", "updated_at"}
	tagKeywords  = []string{
		"camera", "microphone", "display", "projector", "zoom",
		"network", "wifi", "ethernet", "dhcp", "dns",
		"poe", "power", "offline", "timeout", "error",
	}
	roomCodeRe = regexp.MustCompile(`(?i)([A-Z]{2,}[-_]?\d+)`)
)

// categoryMap is checked in order; the first entry with a keyword contained in
// the ticket category wins.
var categoryMap = []parser.CategoryRule{
	{Category: model.CategoryConnectivity, Keywords: []string{"network", "connectivity", "wifi", "ethernet"}},
	{Category: model.CategoryAudio, Keywords: []string{"av", "audio", "video", "camera", "microphone"}},
	{Category: model.CategoryPower, Keywords: []string{"power", "poe"}},
	{Category: model.CategoryAuth, Keywords: []string{"auth", "access", "login"}},
	{Category: model.CategoryConfig, Keywords: []string{"config", "setting"}},
	{Category: model.CategoryControl, Keywords: []string{"control", "touch panel"}},
	{Category: model.CategoryHardware, Keywords: []string{"hardware", "device"}},
	{Category: model.CategoryUserAction, Keywords: []string{"user", "training"}},
}

var priorityMap = parser.SeverityTable{
	{Level: model.SeverityCritical, Keywords: []string{"critical", "p1", "1", "urgent"}},
	{Level: model.SeverityError, Keywords: []string{"high", "p2", "2"}},
	{Level: model.SeverityWarning, Keywords: []string{"medium", "p3", "3", "moderate"}},
	{Level: model.SeverityNotice, Keywords: []string{"low", "p4", "4"}},
}

// Parser is the ticket CSV row parser.
type Parser struct {
	system string
}

// New returns a ticket parser that stamps events with sourceSystem
// (servicenow, jira, ...).
func New(sourceSystem string) *Parser {
	if sourceSystem == "" {
		sourceSystem = "servicenow"
	}
	return &Parser{system: sourceSystem}
}

func (p *Parser) Info() parser.Info {
	return parser.Info{
		Name:       Name,
		SourceType: model.SourceTicket,
		Vendor:     p.system,
		FilePatterns: []string{
			`.*ticket.*\.csv`, `.*incident.*\.csv`, `.*servicenow.*\.csv`, `.*jira.*\.csv`,
		},
		Priority: 40,
	}
}

func (p *Parser) ParseRow(row parser.Row, rowNo int, source string) (*model.Event, error) {
	id := row.First(idCols...)
	if id == "" {
		return nil, errMissingID
	}
	createdRaw := row.First(createdCols...)
	if createdRaw == "" {
		return nil, errMissingCreated
	}
	created, err := parser.ParseTimestampField(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at timestamp %q", createdRaw)
	}

	status := orDefault(strings.ToLower(row.First(statusCols...)), "unknown")
	priority := orDefault(strings.ToLower(row.First(priorityCols...)), "medium")
	categoryStr := orDefault(row.First(categoryCols...), "general")
	title := orDefault(row.First(titleCols...), "No title")
	description := row.First(descCols...)
	assignedTo := row.First("assigned_to", "assignee")
	assignedTeam := row.First("assigned_team", "assignment_group")

	ev := model.NewEvent(created, model.Raw{
		Line:       row.Line(),
		Timestamp:  createdRaw,
		SourceFile: source,
		LineNumber: rowNo,
		Fields:     row.Fields(),
	})
	ev.SourceType = model.SourceTicket
	ev.SourceVendor = p.system
	ev.SourceSystem = p.system
	ev.TicketID = id
	ev.Severity = mapPriority(priority)
	ev.Category = MapCategory(categoryStr)
	ev.Signal = "ticket." + parser.CleanToken(categoryStr) + "." + parser.CleanToken(status)
	ev.Message = fmt.Sprintf("Ticket %s: %s", id, title)
	ev.Location = model.Location{
		Room:     extractRoom(row),
		Building: row.Get("building"),
		Floor:    row.Get("floor"),
		Site:     row.Get("site"),
	}

	meta := map[string]any{
		"ticket_id": id,
		"status":    status,
		"priority":  priority,
		"category":  categoryStr,
		"title":     title,
	}
	putNonEmpty(meta, "description", description)
	putNonEmpty(meta, "assigned_to", assignedTo)
	putNonEmpty(meta, "assigned_team", assignedTeam)
	for _, col := range optionalCols {
		putNonEmpty(meta, col, row.Get(col))
	}
	ev.Metadata = meta
	ev.Tags = tags(status, priority, categoryStr, title+" "+description)
	return &ev, nil
}

// MapCategory maps a free-form ticket category onto the canonical set.
// Unrecognized categories are treated as hardware.
func MapCategory(s string) model.Category {
	folded := parser.Fold(s)
	for _, r := range categoryMap {
		for _, kw := range r.Keywords {
			if strings.Contains(folded, kw) {
				return r.Category
			}
		}
	}
	return model.CategoryHardware
}

func mapPriority(priority string) model.Severity {
	for _, r := range priorityMap {
		for _, kw := range r.Keywords {
			if strings.Contains(priority, kw) {
				return r.Level
			}
		}
	}
	return model.SeverityInfo
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

func tags(status, priority, category, text string) []string {
	out := []string{
		"status:" + status,
		"priority:" + priority,
		"category:" + strings.ReplaceAll(strings.ToLower(category), " ", "_"),
	}
	folded := parser.Fold(text)
	for _, kw := range tagKeywords {
		if strings.Contains(folded, kw) {
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

func putNonEmpty(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
