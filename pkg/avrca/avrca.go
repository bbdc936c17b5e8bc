package avrca

import (
	"context"
	"fmt"
	"os"

	"github.com/crimson-sun/avrca/internal/enrich"
	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
	_ "github.com/crimson-sun/avrca/internal/parser/all"
	"github.com/crimson-sun/avrca/internal/pipeline"
	"github.com/crimson-sun/avrca/internal/rca"
	"github.com/crimson-sun/avrca/internal/report"
)

// Event is a canonical event.
type Event = model.Event

// ParseResult is the outcome of parsing one input.
type ParseResult = model.ParseResult

// Analysis is a root cause analysis report.
type Analysis = model.IncidentAnalysis

// Report format names accepted by Render.
const (
	FormatJSON     = report.FormatJSON
	FormatMarkdown = report.FormatMarkdown
	FormatSummary  = report.FormatSummary
	FormatTicket   = report.FormatTicket
)

// Analyzer parses inputs and analyzes incidents.
// Safe for concurrent use.
type Analyzer struct {
	pipeline *pipeline.Pipeline
}

// New creates an Analyzer, loading the known-pattern and asset files named
// by the options.
func New(opts ...Option) (*Analyzer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	patterns := rca.DefaultPatterns()
	if o.patternsPath != "" {
		p, err := rca.LoadPatterns(o.patternsPath)
		if err != nil {
			return nil, fmt.Errorf("avrca: %w", err)
		}
		patterns = p
	}
	var engineOpts []rca.Option
	if o.now != nil {
		engineOpts = append(engineOpts, rca.WithClock(o.now))
	}

	popts := []pipeline.Option{
		pipeline.WithEngine(rca.New(patterns, engineOpts...)),
		pipeline.WithWindow(o.window),
	}
	if o.assetsPath != "" || o.ipMapPath != "" {
		e, err := enrich.Load(o.assetsPath, o.ipMapPath)
		if err != nil {
			return nil, fmt.Errorf("avrca: %w", err)
		}
		popts = append(popts, pipeline.WithEnricher(e))
	}
	return &Analyzer{pipeline: pipeline.New(popts...)}, nil
}

// Parsers returns the names accepted by Parse.
func Parsers() []string {
	return parser.Names()
}

// Parse parses pasted text with the named parser. Lines that fail to parse
// are reported in the result's Errors.
func (a *Analyzer) Parse(text, parserName string) (*ParseResult, error) {
	res, err := a.pipeline.IngestText(context.Background(), text, parserName, "")
	if err != nil {
		return nil, fmt.Errorf("avrca: %w", err)
	}
	return res, nil
}

// ParseFile parses a file with the parser its name selects.
func (a *Analyzer) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	p, err := parser.Select(path)
	if err != nil {
		return nil, fmt.Errorf("avrca: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("avrca: %w", err)
	}
	res, err := a.pipeline.IngestText(ctx, string(data), p.Info().Name, path)
	if err != nil {
		return nil, fmt.Errorf("avrca: %w", err)
	}
	return res, nil
}

// Analyze correlates events and ranks likely root causes. query is the
// operator's description of the incident and may be empty.
func (a *Analyzer) Analyze(ctx context.Context, events []Event, query string) Analysis {
	return a.pipeline.Analyze(ctx, events, query)
}

// AnalyzeText parses text with the named parser and analyzes the events.
func (a *Analyzer) AnalyzeText(ctx context.Context, text, parserName, query string) (Analysis, error) {
	res, err := a.pipeline.IngestText(ctx, text, parserName, "")
	if err != nil {
		return Analysis{}, fmt.Errorf("avrca: %w", err)
	}
	return a.Analyze(ctx, res.Events, query), nil
}

// Render formats an analysis as json, markdown, summary or ticket text.
func Render(format string, an Analysis) (string, error) {
	return report.Render(format, an)
}
