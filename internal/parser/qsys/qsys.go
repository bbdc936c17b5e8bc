// Package qsys parses Q-SYS Core audio DSP logs.
//
// Example lines:
//
//	2026-01-08 14:23:45.123 [INFO] Core-110f (10.1.5.50): Audio routing updated - Room CR-101
//	2026-01-08 14:30:12.456 [ERROR] Core-110f (10.1.5.50): Dante network timeout - primary
//	Jan 8 14:45:23 qsys-core syslog: Stream failure on input 8
package qsys

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

const Name = "qsys"

func init() { parser.Register(New()) }

// formatCore is the Core's own stamp, which may use several spaces between
// date and time.
var formatCore = parser.TimeFormat{
	Name:    "qsys",
	Pattern: regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}(?:\.\d+)?`),
	Parse:   parser.ParseISO,
}

var (
	coreRe       = regexp.MustCompile(`(?i)Core[- ](\d{3}[a-z]{0,2})`)
	deviceIPRe   = regexp.MustCompile(`([A-Za-z0-9-]+)\s*\((\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\)`)
	roomRe       = regexp.MustCompile(`(?i)Room\s+([A-Z]{2,}[-_]?\d+)`)
	markerRe     = regexp.MustCompile(`(?i)\[(DEBUG|INFO|NOTICE|WARNING|WARN|ERROR|CRITICAL|FAULT)\]`)
	channelRe    = regexp.MustCompile(`(?i)(?:input|output|channel|stream)\s+(\d+)`)
	leadingTSRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}(?:\.\d+)?\s*`)
	leadingBSDRe = regexp.MustCompile(`^\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s*`)
	markerStrip  = regexp.MustCompile(`(?i)\[(DEBUG|INFO|NOTICE|WARNING|WARN|ERROR|CRITICAL|FAULT)\]\s*`)
)

var markerLevels = map[string]model.Severity{
	"DEBUG":    model.SeverityDebug,
	"INFO":     model.SeverityInfo,
	"NOTICE":   model.SeverityNotice,
	"WARNING":  model.SeverityWarning,
	"WARN":     model.SeverityWarning,
	"ERROR":    model.SeverityError,
	"CRITICAL": model.SeverityCritical,
	"FAULT":    model.SeverityCritical,
}

var categories = parser.CategoryScorer{
	Rules: []parser.CategoryRule{
		{Category: model.CategoryAudio, Keywords: []string{"audio", "stream", "routing", "dsp", "gain", "mute", "channel", "input", "output"}},
		{Category: model.CategoryConnectivity, Keywords: []string{"network", "dante", "aes67", "multicast", "qlan"}},
		{Category: model.CategoryConfig, Keywords: []string{"config", "design", "deploy", "update", "setting"}},
		{Category: model.CategoryControl, Keywords: []string{"control", "gpio", "relay", "trigger"}},
		{Category: model.CategoryPerformance, Keywords: []string{"cpu", "load", "latency", "buffer", "overrun"}},
		{Category: model.CategoryHardware, Keywords: []string{"hardware", "fan", "temperature", "power supply"}},
		{Category: model.CategoryPower, Keywords: []string{"power", "poe", "shutdown", "reboot"}},
	},
	Fallback: model.CategoryAudio,
}

// Parser is the Q-SYS line parser.
type Parser struct {
	opts parser.Options
}

// New returns a Q-SYS parser.
func New(opts ...parser.Option) *Parser {
	return &Parser{opts: parser.NewOptions(opts...)}
}

func (p *Parser) Info() parser.Info {
	return parser.Info{
		Name:         Name,
		SourceType:   model.SourceAV,
		Vendor:       "qsys",
		FilePatterns: []string{`.*qsys.*\.log`, `.*q-sys.*\.log`, `.*core-\d+.*\.log`},
		Priority:     20,
	}
}

func (p *Parser) ParseLine(line string, lineNo int, source string) (*model.Event, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	ts, rawTS, err := p.opts.Timestamp(line, formatCore, parser.FormatSyslog)
	if err != nil {
		return nil, err
	}

	folded := parser.Fold(line)
	name, ip := extractDevice(line)
	category := categories.Score(line)

	ev := model.NewEvent(ts, model.Raw{
		Line:       line,
		Timestamp:  rawTS,
		SourceFile: source,
		LineNumber: lineNo,
	})
	ev.SourceType = model.SourceAV
	ev.SourceVendor = "qsys"
	ev.SourceSystem = "qsys_core"
	if name != "" {
		ev.SourceSystem = "qsys_" + strings.ReplaceAll(strings.ToLower(name), "-", "_")
	}
	ev.Severity = severity(line)
	ev.Category = category
	ev.Signal = signal(folded, category)
	ev.Message = cleanMessage(line)

	ev.Location.Room = parser.FirstGroup(line, roomRe)
	if ev.Location.Room == "" {
		ev.Location.Room = parser.ExtractRoom(line)
	}

	core := coreRe.FindStringSubmatch(line)
	if ip != "" || name != "" {
		ev.Asset = &model.Asset{
			AssetID:   ip,
			IP:        ip,
			Hostname:  name,
			AssetType: "dsp",
			Make:      "QSC",
		}
		if core != nil {
			ev.Asset.Model = "Q-SYS Core-" + core[1]
		}
	}

	meta := map[string]any{}
	if core != nil {
		meta["qsys_core_model"] = "Core-" + core[1]
	}
	if m := channelRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			meta["channel"] = n
		}
	}
	if strings.Contains(folded, "dante") {
		meta["dante_network"] = true
	}
	if m := markerRe.FindStringSubmatch(line); m != nil {
		meta["original_severity"] = strings.ToUpper(m[1])
	}
	if len(meta) > 0 {
		ev.Metadata = meta
	}
	return &ev, nil
}

func extractDevice(line string) (name, ip string) {
	if m := deviceIPRe.FindStringSubmatch(line); m != nil {
		return m[1], m[2]
	}
	if m := coreRe.FindStringSubmatch(line); m != nil {
		return "Core-" + m[1], parser.ExtractIP(line)
	}
	return "", parser.ExtractIP(line)
}

func severity(line string) model.Severity {
	if m := markerRe.FindStringSubmatch(line); m != nil {
		if s, ok := markerLevels[strings.ToUpper(m[1])]; ok {
			return s
		}
		return model.SeverityInfo
	}
	return parser.DefaultSeverity.Infer(line)
}

func signal(folded string, category model.Category) string {
	has := func(kw string) bool { return strings.Contains(folded, kw) }
	switch category {
	case model.CategoryAudio:
		switch {
		case has("stream") && (has("fail") || has("timeout")):
			return "qsys.audio.stream_failure"
		case has("routing"):
			return "qsys.audio.routing_change"
		case has("overrun") || has("underrun"):
			return "qsys.audio.buffer_error"
		case has("clipping"):
			return "qsys.audio.clipping"
		}
		return "qsys.audio.event"
	case model.CategoryConnectivity:
		switch {
		case has("dante") && has("timeout"):
			return "qsys.network.dante_timeout"
		case has("dante") && has("fail"):
			return "qsys.network.dante_failure"
		case has("multicast"):
			return "qsys.network.multicast_issue"
		}
		return "qsys.network.event"
	case model.CategoryConfig:
		switch {
		case has("deploy"):
			return "qsys.config.deployment"
		case has("update"):
			return "qsys.config.update"
		}
		return "qsys.config.change"
	case model.CategoryPerformance:
		switch {
		case has("cpu"):
			return "qsys.performance.cpu_high"
		case has("buffer"):
			return "qsys.performance.buffer_issue"
		}
		return "qsys.performance.event"
	case model.CategoryHardware:
		switch {
		case has("fan"):
			return "qsys.hardware.fan_issue"
		case has("temp"):
			return "qsys.hardware.temperature"
		}
		return "qsys.hardware.event"
	}
	return "qsys." + string(category) + ".event"
}

func cleanMessage(line string) string {
	msg := leadingTSRe.ReplaceAllString(line, "")
	msg = leadingBSDRe.ReplaceAllString(msg, "")
	msg = markerStrip.ReplaceAllString(msg, "")
	return strings.TrimSpace(msg)
}
