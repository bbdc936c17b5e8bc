// Package syslog parses syslog from network equipment: Cisco Catalyst and
// Nexus switches, Meraki devices and Netgear switches, in RFC 3164 or
// RFC 5424 framing.
//
// Example lines:
//
//	Jan 8 14:23:45 switch-cr-101 %LINK-3-UPDOWN: Interface GigabitEthernet1/0/12, changed state to down
//	2026-01-08T14:30:12Z meraki-ap-01 events Association succeeded for client 00:11:22:33:44:55
//	Jan 8 14:45:23 10.1.1.1 %POWER-3-POE_DENIED: GigabitEthernet1/0/5: inline power denied
package syslog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
)

const Name = "network"

func init() { parser.Register(New()) }

var (
	formatRFC5424 = parser.TimeFormat{
		Name:    "rfc5424",
		Pattern: regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?`),
		Parse:   parser.ParseISO,
	}
	formatRFC3164 = parser.TimeFormat{
		Name:    "rfc3164",
		Pattern: regexp.MustCompile(`^\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`),
		Parse:   parser.ParseBSD,
	}
)

var (
	hostRe = []*regexp.Regexp{
		regexp.MustCompile(`^\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+([a-zA-Z0-9._-]+)`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\S+\s+([a-zA-Z0-9._-]+)`),
	}
	bareIPRe     = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	ciscoRe      = regexp.MustCompile(`(?i)%([A-Z_]+)-(\d+)-([A-Z_]+):\s*(.*)`)
	interfaceRe  = regexp.MustCompile(`(?i)(?:Interface\s+)?(?:GigabitEthernet|FastEthernet|TenGigabitEthernet|Ethernet|Gi|Fa|Te|Eth)(\d+/\d+(?:/\d+)?)`)
	vlanRe       = regexp.MustCompile(`[Vv][Ll][Aa][Nn]\s*(\d+)`)
	poeWattsRe   = regexp.MustCompile(`(\d+\.?\d*)\s*[Ww](?:atts?)?`)
	hostRoomRe   = regexp.MustCompile(`(?i)(cr|room|conf)[-_]?([a-z0-9]+)`)
	leadingBSD   = regexp.MustCompile(`^\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s*`)
	leadingISO   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?\s*`)
	leadingHost  = regexp.MustCompile(`^[a-zA-Z0-9._-]+\s+`)
	ciscoLevels  = map[int]model.Severity{
		0: model.SeverityCritical,
		1: model.SeverityCritical,
		2: model.SeverityCritical,
		3: model.SeverityError,
		4: model.SeverityWarning,
		5: model.SeverityNotice,
		6: model.SeverityInfo,
		7: model.SeverityDebug,
	}
)

var categories = parser.CategoryScorer{
	Rules: []parser.CategoryRule{
		{Category: model.CategoryConnectivity, Keywords: []string{"link", "port", "interface", "up", "down", "flap"}},
		{Category: model.CategoryPower, Keywords: []string{"poe", "power", "inline power"}},
		{Category: model.CategoryAuth, Keywords: []string{"auth", "dot1x", "802.1x", "mac auth", "radius"}},
		{Category: model.CategoryConfig, Keywords: []string{"config", "vlan", "stp", "spanning-tree"}},
		{Category: model.CategoryPerformance, Keywords: []string{"cpu", "memory", "buffer", "queue", "drop"}},
		{Category: model.CategoryHardware, Keywords: []string{"fan", "temperature", "power supply", "module"}},
	},
	Fallback: model.CategoryConnectivity,
}

type ciscoMessage struct {
	facility string
	level    int
	mnemonic string
}

// Parser is the network syslog line parser.
type Parser struct {
	opts parser.Options
}

// New returns a network syslog parser.
func New(opts ...parser.Option) *Parser {
	return &Parser{opts: parser.NewOptions(opts...)}
}

func (p *Parser) Info() parser.Info {
	return parser.Info{
		Name:       Name,
		SourceType: model.SourceNetwork,
		Vendor:     "cisco",
		FilePatterns: []string{
			`.*syslog.*`, `.*switch.*\.log`, `.*router.*\.log`,
			`.*meraki.*\.log`, `.*cisco.*\.log`,
		},
		Priority: 30,
	}
}

func (p *Parser) ParseLine(line string, lineNo int, source string) (*model.Event, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	ts, rawTS, err := p.opts.Timestamp(line, formatRFC5424, formatRFC3164)
	if err != nil {
		return nil, err
	}

	folded := parser.Fold(line)
	hostname, deviceIP := extractHost(line)
	cisco := parseCisco(line)
	category := categories.Score(line)

	ev := model.NewEvent(ts, model.Raw{
		Line:       line,
		Timestamp:  rawTS,
		SourceFile: source,
		LineNumber: lineNo,
	})
	ev.SourceType = model.SourceNetwork
	ev.SourceVendor = "cisco"
	if strings.Contains(folded, "meraki") || strings.Contains(parser.Fold(hostname), "meraki") {
		ev.SourceVendor = "meraki"
	}
	ev.SourceSystem = "network_switch"
	if hostname != "" {
		ev.SourceSystem = "network_" + strings.ReplaceAll(strings.ToLower(hostname), "-", "_")
	}

	ev.Severity = parser.DefaultSeverity.Infer(line)
	if cisco != nil {
		if s, ok := ciscoLevels[cisco.level]; ok {
			ev.Severity = s
		} else {
			ev.Severity = model.SeverityInfo
		}
	}
	ev.Category = category
	ev.Signal = signal(folded, cisco, category)
	ev.Message = cleanMessage(line)
	ev.Location.Room = roomFromHost(hostname)
	ev.Asset = extractAsset(folded, hostname, deviceIP, cisco != nil)

	meta := map[string]any{}
	if cisco != nil {
		meta["cisco_facility"] = cisco.facility
		meta["cisco_severity"] = cisco.level
		meta["cisco_mnemonic"] = cisco.mnemonic
	}
	if m := interfaceRe.FindString(line); m != "" {
		meta["interface"] = m
	}
	if m := vlanRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			meta["vlan_id"] = n
		}
	}
	if mac := parser.ExtractMAC(line); mac != "" {
		meta["client_mac"] = mac
	}
	if m := poeWattsRe.FindStringSubmatch(line); m != nil {
		if w, err := strconv.ParseFloat(m[1], 64); err == nil {
			meta["poe_power_watts"] = w
		}
	}
	if len(meta) > 0 {
		ev.Metadata = meta
	}
	return &ev, nil
}

// extractHost returns the host field after the stamp, split into hostname or
// IP. Without one, any IP on the line is used.
func extractHost(line string) (hostname, ip string) {
	for _, re := range hostRe {
		if m := re.FindStringSubmatch(line); m != nil {
			if bareIPRe.MatchString(m[1]) {
				return "", m[1]
			}
			return m[1], ""
		}
	}
	return "", parser.ExtractIP(line)
}

func parseCisco(line string) *ciscoMessage {
	m := ciscoRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	level, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	return &ciscoMessage{
		facility: strings.ToUpper(m[1]),
		level:    level,
		mnemonic: strings.ToUpper(m[3]),
	}
}

func signal(folded string, cisco *ciscoMessage, category model.Category) string {
	if cisco != nil {
		return "network." + strings.ToLower(cisco.facility) + "." + strings.ToLower(cisco.mnemonic)
	}
	has := func(kw string) bool { return strings.Contains(folded, kw) }
	switch category {
	case model.CategoryConnectivity:
		switch {
		case has("up") && has("link"):
			return "network.link.up"
		case has("down") && has("link"):
			return "network.link.down"
		case has("flap"):
			return "network.link.flapping"
		}
		return "network.connectivity.event"
	case model.CategoryPower:
		switch {
		case has("poe") && has("denied"):
			return "network.poe.denied"
		case has("poe") && has("fault"):
			return "network.poe.fault"
		}
		return "network.power.event"
	case model.CategoryAuth:
		switch {
		case has("fail"):
			return "network.auth.failed"
		case has("success"):
			return "network.auth.success"
		}
		return "network.auth.event"
	}
	return "network." + string(category) + ".event"
}

func extractAsset(folded, hostname, ip string, isCisco bool) *model.Asset {
	if hostname == "" && ip == "" {
		return nil
	}
	a := &model.Asset{IP: ip, AssetID: ip, Hostname: hostname}
	if a.AssetID == "" {
		a.AssetID = hostname
	}
	if hostname != "" {
		h := strings.ToLower(hostname)
		switch {
		case strings.Contains(h, "switch"):
			a.AssetType = "switch"
		case strings.Contains(h, "ap"), strings.Contains(h, "access-point"):
			a.AssetType = "ap"
		default:
			a.AssetType = "switch"
		}
	}
	switch {
	case strings.Contains(folded, "cisco"), isCisco:
		a.Make = "Cisco"
	case strings.Contains(folded, "meraki"):
		a.Make = "Meraki"
	case strings.Contains(folded, "netgear"):
		a.Make = "Netgear"
	}
	return a
}

// roomFromHost maps "switch-cr-101" to "CR-101" and "ap-room-205" to "205".
func roomFromHost(hostname string) string {
	if hostname == "" {
		return ""
	}
	m := hostRoomRe.FindStringSubmatch(hostname)
	if m == nil {
		return ""
	}
	if strings.EqualFold(m[1], "cr") {
		return "CR-" + strings.ToUpper(m[2])
	}
	return strings.ToUpper(m[2])
}

func cleanMessage(line string) string {
	msg := leadingBSD.ReplaceAllString(line, "")
	msg = leadingISO.ReplaceAllString(msg, "")
	msg = leadingHost.ReplaceAllString(msg, "")
	return strings.TrimSpace(msg)
}
