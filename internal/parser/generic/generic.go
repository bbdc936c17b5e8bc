// Package generic is the fallback line parser for operator-pasted text whose
// source is not declared. It knows no vendor format and relies on broad
// keyword tables instead.
package generic

import (
	"regexp"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

const Name = "generic"

// Registered with AllowNow: pasted snippets often carry no timestamp at all.
func init() { parser.Register(New(parser.WithAllowNow())) }

var severities = parser.SeverityTable{
	{Level: model.SeverityCritical, Keywords: []string{"critical", "fatal", "emergency", "down", "failed", "offline", "unreachable", "unresponsive", "crash", "panic"}},
	{Level: model.SeverityError, Keywords: []string{"error", "fail", "exception", "denied", "timeout", "refused", "unavailable", "disconnected", "lost"}},
	{Level: model.SeverityWarning, Keywords: []string{"warn", "warning", "degraded", "slow", "retry", "delay", "latency", "jitter", "packet loss"}},
	{Level: model.SeverityNotice, Keywords: []string{"notice"}},
	{Level: model.SeverityDebug, Keywords: []string{"debug"}},
}

var categories = parser.CategoryScorer{
	Rules: []parser.CategoryRule{
		{Category: model.CategoryConnectivity, Keywords: []string{"network", "ethernet", "wifi", "dhcp", "dns", "vlan", "switch", "router", "ping", "tcp", "udp", "port", "gateway", "multicast"}},
		{Category: model.CategoryVideo, Keywords: []string{"camera", "display", "projector", "hdmi", "usb", "codec"}},
		{Category: model.CategoryAudio, Keywords: []string{"audio", "microphone", "speaker", "dsp", "amplifier"}},
		{Category: model.CategoryControl, Keywords: []string{"touch panel", "controller", "crestron"}},
		{Category: model.CategoryAuth, Keywords: []string{"auth", "login", "credential", "token", "password"}},
		{Category: model.CategoryPower, Keywords: []string{"power", "poe", "voltage", "battery", "shutdown", "reboot", "restart", "boot"}},
		{Category: model.CategoryConfig, Keywords: []string{"config", "setting", "parameter", "provision", "deploy", "modify"}},
		{Category: model.CategoryPerformance, Keywords: []string{"latency", "jitter", "packet loss", "bandwidth", "qos", "cpu", "memory"}},
		{Category: model.CategoryHardware, Keywords: []string{"hardware", "device", "fan", "temperature", "sensor"}},
		{Category: model.CategoryVendorService, Keywords: []string{"software", "firmware", "application", "service", "process", "update", "patch", "version", "driver", "api"}},
	},
	Fallback: model.CategoryVendorService,
}

var conditions = []string{"dhcp", "dns", "timeout", "offline", "denied"}

var (
	roomLabelRe = regexp.MustCompile(`(?i)Room:\s*([A-Z0-9][-A-Z0-9]*\d+)`)
	hostRe      = regexp.MustCompile(`(?i)(?:host|device|node):\s*([a-zA-Z0-9_-]+)`)
	serviceRe   = regexp.MustCompile(`\[([A-Za-z0-9_-]+)\]`)
	errorCodeRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:error|err)[\s:-]*(\d+)`),
		regexp.MustCompile(`(?i)(?:code|status)[\s:-]*(\d+)`),
		regexp.MustCompile(`(?i)\b(ERR-\d+)\b`),
		regexp.MustCompile(`(?i)\b(0x[0-9A-Fa-f]+)\b`),
	}
	serviceKeywords = []string{"zoom", "dhcp", "dns", "ssh", "http", "ntp"}
	severityTokens  = map[string]bool{
		"debug": true, "info": true, "notice": true, "warn": true,
		"warning": true, "error": true, "critical": true, "fatal": true,
	}
	vendorHints = []struct{ kw, vendor string }{
		{"zoom", "zoom"},
		{"crestron", "crestron"},
		{"q-sys", "qsys"},
		{"qsys", "qsys"},
		{"cisco", "cisco"},
		{"meraki", "meraki"},
		{"extron", "extron"},
		{"biamp", "biamp"},
	}
	eventTypes = []struct {
		name string
		kws  []string
	}{
		{"connection", []string{"connect", "disconnect", "connection", "link up", "link down"}},
		{"authentication", []string{"auth", "login", "logout", "credential"}},
		{"configuration_change", []string{"config", "configured", "setting changed"}},
		{"boot", []string{"boot", "startup", "restart", "reboot"}},
		{"timeout", []string{"timeout", "timed out"}},
		{"packet_loss", []string{"packet loss", "dropped packets"}},
		{"service_failure", []string{"service failed", "service down"}},
	}
)

// Parser is the generic line parser.
type Parser struct {
	opts parser.Options
}

// New returns a generic parser.
func New(opts ...parser.Option) *Parser {
	return &Parser{opts: parser.NewOptions(opts...)}
}

func (p *Parser) Info() parser.Info {
	return parser.Info{
		Name:       Name,
		SourceType: model.SourceApp,
		Vendor:     "unknown",
		Priority:   100,
	}
}

func (p *Parser) ParseLine(line string, lineNo int, source string) (*model.Event, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	ts, rawTS, err := p.opts.Timestamp(line)
	if err != nil {
		return nil, err
	}

	folded := parser.Fold(line)
	severity := severities.Infer(line)
	category := categories.Score(line)
	service := extractService(line, folded)

	ev := model.NewEvent(ts, model.Raw{
		Line:       line,
		Timestamp:  rawTS,
		SourceFile: source,
		LineNumber: lineNo,
	})
	ev.SourceType = model.SourceApp
	ev.SourceVendor = vendor(folded)
	ev.SourceSystem = "generic"
	if service != "" {
		ev.SourceSystem = parser.CleanToken(service)
	}
	ev.Severity = severity
	ev.Category = category
	ev.Signal = "generic." + string(category) + "." + condition(folded)
	ev.Message = strings.TrimSpace(line)

	ev.Location.Room = parser.FirstGroup(line, roomLabelRe)
	if ev.Location.Room == "" {
		ev.Location.Room = parser.ExtractRoom(line)
	}

	ip, mac := parser.ExtractIP(line), parser.ExtractMAC(line)
	deviceID := ip
	if m := hostRe.FindStringSubmatch(line); m != nil {
		deviceID = m[1]
	}
	if deviceID != "" || mac != "" {
		ev.Asset = &model.Asset{AssetID: deviceID, IP: ip, MAC: mac}
		if deviceID != ip {
			ev.Asset.Hostname = deviceID
		}
	}

	meta := map[string]any{"event_type": eventType(folded, severity)}
	if service != "" {
		meta["service"] = service
	}
	for _, re := range errorCodeRe {
		if m := re.FindStringSubmatch(line); m != nil {
			meta["error_code"] = m[1]
			break
		}
	}
	ev.Metadata = meta
	return &ev, nil
}

func condition(folded string) string {
	for _, c := range conditions {
		if strings.Contains(folded, c) {
			return c
		}
	}
	return "event"
}

func vendor(folded string) string {
	for _, h := range vendorHints {
		if strings.Contains(folded, h.kw) {
			return h.vendor
		}
	}
	return "unknown"
}

func extractService(line, folded string) string {
	for _, m := range serviceRe.FindAllStringSubmatch(line, -1) {
		if !severityTokens[strings.ToLower(m[1])] {
			return m[1]
		}
	}
	for _, kw := range serviceKeywords {
		if strings.Contains(folded, kw) {
			return strings.ToUpper(kw)
		}
	}
	return ""
}

func eventType(folded string, severity model.Severity) string {
	for _, et := range eventTypes {
		for _, kw := range et.kws {
			if strings.Contains(folded, kw) {
				return et.name
			}
		}
	}
	switch {
	case severity.IsFailure():
		return "error"
	case severity == model.SeverityWarning:
		return "warning"
	}
	return "informational"
}
