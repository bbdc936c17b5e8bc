package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrNoTimestamp is returned when no known timestamp format matches.
var ErrNoTimestamp = errors.New("no timestamp found")

// TimeFormat pairs a locating pattern with a parse function. Parse receives
// the matched text and a reference time used for formats that omit the year.
type TimeFormat struct {
	Name    string
	Pattern *regexp.Regexp
	Parse   func(raw string, ref time.Time) (time.Time, error)
}

var (
	// FormatISO covers ISO-8601 with a T or space separator, optional
	// fractional seconds and optional Z, ±hh:mm or ±hhmm offset.
	FormatISO = TimeFormat{
		Name:    "iso8601",
		Pattern: regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`),
		Parse:   ParseISO,
	}
	// FormatSyslog is the BSD syslog stamp, e.g. "Jan  8 09:00:00".
	FormatSyslog = TimeFormat{
		Name:    "syslog",
		Pattern: regexp.MustCompile(`\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`),
		Parse:   ParseBSD,
	}
	FormatUSDate = TimeFormat{
		Name:    "mm/dd/yyyy",
		Pattern: regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}:\d{2}`),
		Parse:   layoutParser("01/02/2006 15:04:05"),
	}
	FormatSlashDate = TimeFormat{
		Name:    "yyyy/mm/dd",
		Pattern: regexp.MustCompile(`\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2}`),
		Parse:   layoutParser("2006/01/02 15:04:05"),
	}

	// DefaultTimeFormats is the order used when a parser passes none.
	DefaultTimeFormats = []TimeFormat{FormatISO, FormatSyslog, FormatUSDate, FormatSlashDate}
)

var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
}

// ParseISO parses an ISO-8601 stamp. Stamps without an offset are UTC.
func ParseISO(raw string, _ time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 10 && (s[10] == ' ' || s[10] == '\t') {
		s = s[:10] + "T" + strings.TrimSpace(s[10:])
	}
	var err error
	for _, layout := range isoLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// ParseBSD parses "Mon D HH:MM:SS", taking the year from ref.
func ParseBSD(raw string, ref time.Time) (time.Time, error) {
	t, err := time.Parse("Jan 2 15:04:05", strings.Join(strings.Fields(raw), " "))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ref.UTC().Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}

func layoutParser(layout string) func(string, time.Time) (time.Time, error) {
	return func(raw string, _ time.Time) (time.Time, error) {
		fields := strings.Fields(raw)
		t, err := time.Parse(layout, strings.Join(fields, " "))
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
}

// ExtractTimestamp finds the first format whose pattern matches line and
// parses successfully. It returns the UTC time and the matched text.
func ExtractTimestamp(line string, ref time.Time, formats ...TimeFormat) (time.Time, string, bool) {
	if len(formats) == 0 {
		formats = DefaultTimeFormats
	}
	for _, f := range formats {
		raw := f.Pattern.FindString(line)
		if raw == "" {
			continue
		}
		if t, err := f.Parse(raw, ref); err == nil {
			return t, raw, true
		}
	}
	return time.Time{}, "", false
}

var fieldLayouts = []string{
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

// ParseTimestampField parses a whole CSV cell as a timestamp.
func ParseTimestampField(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrNoTimestamp
	}
	if t, err := ParseISO(s, time.Time{}); err == nil {
		return t, nil
	}
	norm := strings.Join(strings.Fields(s), " ")
	for _, layout := range fieldLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrNoTimestamp
}

// Options carries settings shared by the concrete parsers.
type Options struct {
	// Now resolves year-less stamps and, with AllowNow, stands in for a
	// missing timestamp.
	Now      func() time.Time
	AllowNow bool
}

// Option configures Options.
type Option func(*Options)

// WithClock sets the reference clock.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithAllowNow makes a line without a timestamp take the clock's time
// instead of failing.
func WithAllowNow() Option {
	return func(o *Options) { o.AllowNow = true }
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{Now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Timestamp extracts the event time from line using formats, honoring
// AllowNow.
func (o Options) Timestamp(line string, formats ...TimeFormat) (time.Time, string, error) {
	ref := o.Now()
	if t, raw, ok := ExtractTimestamp(line, ref, formats...); ok {
		return t, raw, nil
	}
	if o.AllowNow {
		return ref.UTC(), "", nil
	}
	return time.Time{}, "", ErrNoTimestamp
}
