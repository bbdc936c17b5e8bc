package avrca

import "time"

type options struct {
	window       time.Duration
	patternsPath string
	assetsPath   string
	ipMapPath    string
	now          func() time.Time
}

// Option configures an Analyzer.
type Option func(*options)

// WithWindow sets the correlation window. Default: 5 minutes.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

// WithPatternsPath loads known failure patterns from a YAML file instead of
// the built-in set.
func WithPatternsPath(path string) Option {
	return func(o *options) {
		o.patternsPath = path
	}
}

// WithAssets enriches parsed events from an asset database (CSV or JSON)
// and an IP-to-room CSV. Either path may be empty.
func WithAssets(assetsPath, ipMapPath string) Option {
	return func(o *options) {
		o.assetsPath = assetsPath
		o.ipMapPath = ipMapPath
	}
}

// WithClock overrides the clock used to judge how recent the analyzed
// events are.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
