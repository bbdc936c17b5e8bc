// Package zoom parses Zoom Rooms controller and client logs.
//
// Example lines:
//
//	2026-01-08T14:23:45Z [INFO] Room: CR-101 | ZoomRoom connected successfully
//	2026-01-08T14:30:12Z [ERROR] Room: CR-205 | Network connection lost - DHCP timeout
//	Jan 8 14:45:23 zr-cr-101 zrclient[1234]: Camera offline - USB enumeration failed
package zoom

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

const Name = "zoom"

func init() { parser.Register(New()) }

var (
	roomLabelRe   = regexp.MustCompile(`(?i)Room:\s*([A-Z0-9][-A-Z0-9]*\d+)`)
	zrHostRe      = regexp.MustCompile(`(?i)(?:zr-|zoomroom-)([a-z0-9-]+)`)
	componentRe   = regexp.MustCompile(`(?i)\[([A-Z_]+)\]`)
	errorCodeRe   = regexp.MustCompile(`(?i)(?:Error|Code)[\s:]+(\d+|0x[0-9A-Fa-f]+)`)
	versionRe     = regexp.MustCompile(`(?i)(?:version|ver|v)[\s:]+(\d+\.\d+\.\d+(?:\.\d+)?)`)
	origSevRe     = regexp.MustCompile(`(?i)\[(DEBUG|INFO|NOTICE|WARN|WARNING|ERROR|CRITICAL|FATAL)\]`)
	leadingISORe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?\s*`)
	leadingBSDRe  = regexp.MustCompile(`^\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s*`)
	syslogProcRe  = regexp.MustCompile(`(?i)^[a-z0-9-]+\s+\w+\[\d+\]:\s*`)
	severityLabel = map[string]bool{
		"DEBUG": true, "INFO": true, "NOTICE": true, "WARN": true,
		"WARNING": true, "ERROR": true, "CRITICAL": true, "FATAL": true,
	}
)

var severities = parser.DefaultSeverity.Prepend(
	parser.SeverityRule{Level: model.SeverityCritical, Keywords: []string{"offline", "unreachable"}},
	parser.SeverityRule{Level: model.SeverityError, Keywords: []string{"timeout", "disconnected"}},
	parser.SeverityRule{Level: model.SeverityWarning, Keywords: []string{"degraded"}},
)

var categories = parser.CategoryScorer{
	Rules: []parser.CategoryRule{
		{Category: model.CategoryConnectivity, Keywords: []string{"network", "dhcp", "dns", "connection", "ping", "tcp", "udp"}},
		{Category: model.CategoryVideo, Keywords: []string{"camera", "video", "usb", "hdmi", "display", "screen"}},
		{Category: model.CategoryAudio, Keywords: []string{"audio", "microphone", "speaker", "sound", "dsp"}},
		{Category: model.CategoryAuth, Keywords: []string{"auth", "login", "credential", "token", "sso"}},
		{Category: model.CategoryPower, Keywords: []string{"power", "poe", "battery", "shutdown", "reboot"}},
		{Category: model.CategoryConfig, Keywords: []string{"config", "setting", "provision", "update"}},
		{Category: model.CategoryControl, Keywords: []string{"controller", "control", "touch panel", "button"}},
		{Category: model.CategoryPerformance, Keywords: []string{"latency", "jitter", "packet loss", "bandwidth", "cpu", "memory"}},
		{Category: model.CategoryHardware, Keywords: []string{"hardware", "device", "peripheral", "sensor"}},
	},
	Fallback: model.CategoryVendorService,
}

// Parser is the Zoom Rooms line parser.
type Parser struct {
	opts parser.Options
}

// New returns a Zoom Rooms parser.
func New(opts ...parser.Option) *Parser {
	return &Parser{opts: parser.NewOptions(opts...)}
}

func (p *Parser) Info() parser.Info {
	return parser.Info{
		Name:         Name,
		SourceType:   model.SourceAV,
		Vendor:       "zoom",
		FilePatterns: []string{`.*zoom.*\.log`, `.*zr-.*\.log`, `.*zoomroom.*\.log`},
		Priority:     10,
	}
}

func (p *Parser) ParseLine(line string, lineNo int, source string) (*model.Event, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	ts, rawTS, err := p.opts.Timestamp(line, parser.FormatISO, parser.FormatSyslog)
	if err != nil {
		return nil, err
	}

	folded := parser.Fold(line)
	component := extractComponent(line, folded)
	category := categories.Score(line)

	ev := model.NewEvent(ts, model.Raw{
		Line:       line,
		Timestamp:  rawTS,
		SourceFile: source,
		LineNumber: lineNo,
	})
	ev.SourceType = model.SourceAV
	ev.SourceVendor = "zoom"
	ev.SourceSystem = "zoom_rooms_" + strings.ToLower(component)
	ev.Severity = severities.Infer(line)
	ev.Category = category
	ev.Signal = signal(folded, category)
	ev.Message = cleanMessage(line)
	ev.Location.Room = extractRoom(line)
	ev.Asset = extractAsset(line, folded)

	meta := map[string]any{"component": component}
	if m := origSevRe.FindStringSubmatch(line); m != nil {
		meta["original_severity"] = strings.ToUpper(m[1])
	}
	if m := errorCodeRe.FindStringSubmatch(line); m != nil {
		meta["error_code"] = m[1]
	}
	if m := versionRe.FindStringSubmatch(line); m != nil {
		meta["zoom_version"] = m[1]
	}
	ev.Metadata = meta
	return &ev, nil
}

func extractRoom(line string) string {
	if room := parser.FirstGroup(line, roomLabelRe); room != "" {
		return room
	}
	if m := zrHostRe.FindStringSubmatch(line); m != nil {
		return strings.ToUpper(strings.ReplaceAll(m[1], "-", "_"))
	}
	return parser.ExtractRoom(line)
}

func extractComponent(line, folded string) string {
	for _, m := range componentRe.FindAllStringSubmatch(line, -1) {
		if tok := strings.ToUpper(m[1]); !severityLabel[tok] {
			return tok
		}
	}
	switch {
	case strings.Contains(folded, "client"):
		return "CLIENT"
	case strings.Contains(folded, "controller"):
		return "CONTROLLER"
	case strings.Contains(folded, "camera"):
		return "CAMERA"
	case strings.Contains(folded, "microphone"), strings.Contains(folded, "audio"):
		return "AUDIO"
	case strings.Contains(folded, "display"), strings.Contains(folded, "screen"):
		return "DISPLAY"
	case strings.Contains(folded, "network"):
		return "NETWORK"
	}
	return "UNKNOWN"
}

func signal(folded string, category model.Category) string {
	has := func(kw string) bool { return strings.Contains(folded, kw) }
	sub := "general"
	switch category {
	case model.CategoryConnectivity:
		switch {
		case has("dhcp") && has("timeout"):
			sub = "dhcp_timeout"
		case has("dns") && has("fail"):
			sub = "dns_failure"
		case has("network") && has("lost"):
			sub = "network_lost"
		case has("disconnect"):
			sub = "disconnected"
		}
	case model.CategoryVideo:
		switch {
		case has("camera") && (has("offline") || has("fail")):
			sub = "camera_offline"
		case has("usb") && has("enum"):
			sub = "usb_enumeration_failed"
		case has("display") || has("hdmi"):
			sub = "display_issue"
		}
	case model.CategoryAudio:
		switch {
		case has("microphone") && (has("fail") || has("offline")):
			sub = "microphone_offline"
		case has("speaker") && has("fail"):
			sub = "speaker_failure"
		}
	case model.CategoryAuth:
		switch {
		case has("login") && has("fail"):
			sub = "login_failed"
		case has("token") && (has("expir") || has("invalid")):
			sub = "token_invalid"
		}
	case model.CategoryPower:
		switch {
		case has("poe"):
			sub = "poe_failure"
		case has("reboot") || has("restart"):
			sub = "reboot"
		}
	default:
		sub = "event"
	}
	return fmt.Sprintf("zoom.%s.%s", category, sub)
}

func extractAsset(line, folded string) *model.Asset {
	a := &model.Asset{IP: parser.ExtractIP(line), MAC: parser.ExtractMAC(line)}
	a.AssetID = a.IP

	switch {
	case strings.Contains(folded, "camera"):
		a.AssetType, a.Make = "camera", "Zoom"
	case strings.Contains(folded, "microphone"):
		a.AssetType = "microphone"
	case strings.Contains(folded, "speaker"):
		a.AssetType = "speaker"
	case strings.Contains(folded, "display"):
		a.AssetType = "display"
	case strings.Contains(folded, "controller"), strings.Contains(folded, "zrc"):
		a.AssetType, a.Make, a.Model = "controller", "Zoom", "Zoom Rooms Controller"
	case strings.Contains(folded, "codec"):
		a.AssetType = "codec"
	default:
		a.AssetType = "other"
	}

	if a.IP == "" && a.MAC == "" && a.AssetType == "other" {
		return nil
	}
	return a
}

func cleanMessage(line string) string {
	msg := leadingISORe.ReplaceAllString(line, "")
	msg = leadingBSDRe.ReplaceAllString(msg, "")
	msg = syslogProcRe.ReplaceAllString(msg, "")
	return strings.TrimSpace(msg)
}
