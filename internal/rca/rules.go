package rca

import (
	"fmt"
	"strings"
	"time"

	"github.com/crimson-sun/avrca/internal/model"
)

// input is the read-only evidence every rule sees.
type input struct {
	events  []model.Event // sorted
	bundle  model.Bundle
	primary model.Event
	changes []string
}

// rule is one independent candidate generator.
type rule struct {
	name string
	run  func(in *input) []model.RootCause
}

func (e *Engine) strategies() []rule {
	return []rule{
		{name: "known_pattern", run: e.matchPatterns},
		{name: "network", run: networkCauses},
		{name: "configuration", run: configurationCauses},
		{name: "hardware", run: hardwareCauses},
		{name: "power", run: powerCauses},
		{name: "software", run: softwareCauses},
	}
}

// matchPatterns emits a cause for every pattern with at least half of its
// symptoms present in the event messages.
func (e *Engine) matchPatterns(in *input) []model.RootCause {
	msgs := make([]string, len(in.events))
	for i, ev := range in.events {
		msgs[i] = strings.ToLower(ev.Message)
	}
	var out []model.RootCause
	for _, p := range e.patterns {
		var evidence []string
		for _, symptom := range p.Symptoms {
			s := strings.ToLower(symptom)
			for _, m := range msgs {
				if strings.Contains(m, s) {
					evidence = append(evidence, "Pattern symptom detected: "+symptom)
					break
				}
			}
		}
		matched, total := float64(len(evidence)), float64(len(p.Symptoms))
		if matched == 0 || matched < total*0.5 {
			continue
		}
		out = append(out, model.RootCause{
			Description: p.Cause(),
			Confidence:  min(0.95, matched/total),
			Evidence:    evidence,
			Category:    p.Category,
		})
	}
	return out
}

func networkCauses(in *input) []model.RootCause {
	errs := failuresIn(in.events, model.CauseNetwork)
	if len(errs) == 0 {
		return nil
	}
	var out []model.RootCause
	if dhcp := mentioning(errs, "dhcp"); len(dhcp) > 0 {
		out = append(out, model.RootCause{
			Description: "DHCP server failure or IP address exhaustion",
			Confidence:  0.85,
			Evidence:    append([]string{fmt.Sprintf("DHCP failures detected: %d events", len(dhcp))}, messages(dhcp, 2)...),
			Category:    model.CauseNetwork,
		})
	}
	if dns := mentioning(errs, "dns"); len(dns) > 0 {
		out = append(out, model.RootCause{
			Description: "DNS server unreachable or misconfigured",
			Confidence:  0.80,
			Evidence:    append([]string{fmt.Sprintf("DNS resolution failures: %d events", len(dns))}, messages(dns, 2)...),
			Category:    model.CauseNetwork,
		})
	}
	conn := mentioning(errs, "unreachable", "timeout", "connection refused")
	if len(conn) == 0 {
		return out
	}
	if cs := in.bundle.Cascades; len(cs) > 0 && cs[0].Primary.Category.CauseCategory() == model.CauseNetwork {
		return append(out, model.RootCause{
			Description: "Network connectivity loss causing cascading service failures",
			Confidence:  0.90,
			Evidence: []string{
				"Network failure at " + cs[0].Primary.Timestamp.Format(time.RFC3339),
				fmt.Sprintf("Followed by %d service failures", len(cs[0].Followers)),
				cs[0].Primary.Message,
			},
			Category: model.CauseNetwork,
		})
	}
	return append(out, model.RootCause{
		Description: "Intermittent network connectivity issues",
		Confidence:  0.70,
		Evidence:    messages(conn, 3),
		Category:    model.CauseNetwork,
	})
}

// configurationCauses needs both a change shortly before the failure and at
// least one configuration event in the batch.
func configurationCauses(in *input) []model.RootCause {
	if len(in.changes) == 0 {
		return nil
	}
	for _, ev := range in.events {
		if ev.Category.CauseCategory() != model.CauseConfiguration {
			continue
		}
		evidence := append([]string{}, in.changes[:min(3, len(in.changes))]...)
		return []model.RootCause{{
			Description: "Recent configuration change introduced instability",
			Confidence:  0.85,
			Evidence:    append(evidence, "Configuration changes detected shortly before incident"),
			Category:    model.CauseConfiguration,
		}}
	}
	return nil
}

func hardwareCauses(in *input) []model.RootCause {
	errs := failuresIn(in.events, model.CauseHardware)
	var out []model.RootCause
	if cam := mentioning(errs, "camera"); len(cam) > 0 {
		out = append(out, model.RootCause{
			Description: "Camera hardware failure or disconnection",
			Confidence:  0.75,
			Evidence:    messages(cam, 2),
			Category:    model.CauseHardware,
		})
	}
	if usb := mentioning(errs, "usb"); len(usb) > 0 {
		out = append(out, model.RootCause{
			Description: "USB device failure or power issue (check PoE/power supply)",
			Confidence:  0.80,
			Evidence:    messages(usb, 2),
			Category:    model.CauseHardware,
		})
	}
	if codec := mentioning(errs, "codec", "controller", "zoom", "crestron", "q-sys"); len(codec) > 0 {
		out = append(out, model.RootCause{
			Description: "AV codec/controller malfunction or network connectivity loss",
			Confidence:  0.75,
			Evidence:    messages(codec, 2),
			Category:    model.CauseHardware,
		})
	}
	return out
}

func powerCauses(in *input) []model.RootCause {
	errs := failuresIn(in.events, model.CausePower)
	if len(errs) == 0 {
		return nil
	}
	if poe := mentioning(errs, "poe"); len(poe) > 0 {
		return []model.RootCause{{
			Description: "PoE (Power over Ethernet) failure - insufficient power budget or switch issue",
			Confidence:  0.85,
			Evidence:    messages(poe, 2),
			Category:    model.CausePower,
		}}
	}
	return []model.RootCause{{
		Description: "Power supply interruption or brownout",
		Confidence:  0.70,
		Evidence:    messages(errs, 2),
		Category:    model.CausePower,
	}}
}

func softwareCauses(in *input) []model.RootCause {
	errs := failuresIn(in.events, model.CauseSoftware)
	var out []model.RootCause
	if auth := mentioning(errs, "auth", "credential"); len(auth) > 0 {
		out = append(out, model.RootCause{
			Description: "Authentication failure - expired credentials or service account issue",
			Confidence:  0.80,
			Evidence:    messages(auth, 2),
			Category:    model.CauseSoftware,
		})
	}
	if fw := mentioning(errs, "firmware", "update"); len(fw) > 0 {
		out = append(out, model.RootCause{
			Description: "Firmware update failure or incompatibility",
			Confidence:  0.75,
			Evidence:    messages(fw, 2),
			Category:    model.CauseSoftware,
		})
	}
	return out
}

// failuresIn returns the error and critical events whose category maps to cc.
func failuresIn(events []model.Event, cc model.CauseCategory) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if ev.IsFailure() && ev.Category.CauseCategory() == cc {
			out = append(out, ev)
		}
	}
	return out
}

// mentioning returns the events whose message contains any keyword.
func mentioning(events []model.Event, keywords ...string) []model.Event {
	var out []model.Event
	for _, ev := range events {
		msg := strings.ToLower(ev.Message)
		for _, kw := range keywords {
			if strings.Contains(msg, kw) {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

func messages(events []model.Event, n int) []string {
	out := make([]string, 0, min(n, len(events)))
	for _, ev := range events[:min(n, len(events))] {
		out = append(out, ev.Message)
	}
	return out
}
