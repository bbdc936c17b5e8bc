package parser

import (
	"errors"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrNoParser is returned by Select when neither a file pattern nor a
// fallback keyword identifies the input.
var ErrNoParser = errors.New("no parser for this input")

// fallbacks are tried in order after every file pattern has missed.
var fallbacks = []struct {
	parser string
	ext    string
	any    []string
}{
	{parser: "zoom", any: []string{"zoom", "zr"}},
	{parser: "qsys", any: []string{"qsys", "q-sys"}},
	{parser: "network", any: []string{"syslog", "switch"}},
	{parser: "tickets", ext: ".csv", any: []string{"ticket", "incident"}},
	{parser: "changes", ext: ".csv", any: []string{"change", "chg"}},
}

var patternCache sync.Map // string -> *regexp.Regexp

// Select picks a parser for filename by its base name. Compression suffixes
// are ignored. File patterns of registered parsers are tried by ascending
// Priority; the first match wins.
func Select(filename string) (Parser, error) {
	base := strings.ToLower(filepath.Base(filename))
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".gz"), ".zst")

	ps := registered()
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Info().Priority < ps[j].Info().Priority
	})
	for _, p := range ps {
		for _, pat := range p.Info().FilePatterns {
			re, err := compilePattern(pat)
			if err != nil {
				continue
			}
			if re.MatchString(base) {
				return p, nil
			}
		}
	}

	for _, fb := range fallbacks {
		if fb.ext != "" && !strings.HasSuffix(base, fb.ext) {
			continue
		}
		for _, kw := range fb.any {
			if strings.Contains(base, kw) {
				if p, err := Get(fb.parser); err == nil {
					return p, nil
				}
			}
		}
	}
	return nil, ErrNoParser
}

// compilePattern anchors pat at the start of the name.
func compilePattern(pat string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pat); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + pat + ")")
	if err != nil {
		return nil, err
	}
	patternCache.Store(pat, re)
	return re, nil
}
