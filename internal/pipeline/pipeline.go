// Package pipeline wires parsing, enrichment, sinks and analysis together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/avrca/internal/correlator"
	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/output"
	"github.com/crimson-sun/avrca/internal/parser"
	"github.com/crimson-sun/avrca/internal/rca"
)

var tracer = otel.Tracer("avrca.pipeline")

var (
	// Files seen by IngestPaths, by outcome: processed, skipped, failed.
	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avrca_pipeline_files_total",
		Help: "Files handled by ingestion, by outcome.",
	}, []string{"outcome"})
	// Events handed to the configured sink.
	writtenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avrca_pipeline_events_written_total",
		Help: "Events written to the output sink.",
	})
)

const defaultWorkers = 4

// Enricher fills asset and location details on an event.
type Enricher interface {
	Enrich(model.Event) model.Event
}

// Stats summarizes one ingestion run.
type Stats struct {
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	FilesFailed    int `json:"files_failed"`
	TotalEvents    int `json:"total_events"`
	ParseErrors    int `json:"parse_errors"`
	EventsWritten  int `json:"events_written"`
}

func (s *Stats) add(o Stats) {
	s.FilesProcessed += o.FilesProcessed
	s.FilesSkipped += o.FilesSkipped
	s.FilesFailed += o.FilesFailed
	s.TotalEvents += o.TotalEvents
	s.ParseErrors += o.ParseErrors
	s.EventsWritten += o.EventsWritten
}

// Result is the outcome of IngestPaths. Results keeps one entry per parsed
// file in path order; Events concatenates their (enriched) events.
type Result struct {
	Stats   Stats                `json:"stats"`
	Results []*model.ParseResult `json:"results"`
	Events  []model.Event        `json:"-"`
	Skipped []string             `json:"skipped,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutput sets the sink every ingested event is written to.
func WithOutput(out output.Output) Option {
	return func(p *Pipeline) { p.out = out }
}

// WithEnricher sets the asset enricher. Nil disables enrichment.
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithWorkers bounds the number of files parsed concurrently. Default: 4.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRecursive makes directory expansion descend into subdirectories.
func WithRecursive(r bool) Option {
	return func(p *Pipeline) { p.recursive = r }
}

// WithPattern restricts files found in directories to base names matching
// the glob. Explicitly named files are never filtered.
func WithPattern(glob string) Option {
	return func(p *Pipeline) { p.pattern = glob }
}

// WithWindow sets the correlation window used by Analyze.
func WithWindow(d time.Duration) Option {
	return func(p *Pipeline) { p.correlator = correlator.New(d) }
}

// WithEngine sets the RCA engine used by Analyze.
func WithEngine(e *rca.Engine) Option {
	return func(p *Pipeline) { p.engine = e }
}

// WithClock sets the clock that stamps IngestedAt. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline ingests files and text into canonical events and analyzes them.
// It is safe for concurrent use when its sink is.
type Pipeline struct {
	out        output.Output
	enricher   Enricher
	correlator *correlator.Correlator
	engine     *rca.Engine
	workers    int
	recursive  bool
	pattern    string
	now        func() time.Time
}

// New creates a Pipeline. Without options it has no sink, no enricher, the
// default correlation window and the built-in known patterns.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{workers: defaultWorkers, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.correlator == nil {
		p.correlator = correlator.New(0)
	}
	if p.engine == nil {
		p.engine = rca.New(rca.DefaultPatterns())
	}
	if p.pattern != "" {
		if _, err := filepath.Match(p.pattern, ""); err != nil {
			slog.Warn("invalid file pattern ignored", "pattern", p.pattern, "error", err)
			p.pattern = ""
		}
	}
	return p
}

// Expand turns paths into a sorted, de-duplicated file list. Directories are
// walked (one level unless recursive); hidden entries are skipped.
func (p *Pipeline) Expand(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			hidden := strings.HasPrefix(d.Name(), ".") && path != root
			if d.IsDir() {
				if path != root && (hidden || !p.recursive) {
					return filepath.SkipDir
				}
				return nil
			}
			if hidden || !d.Type().IsRegular() {
				return nil
			}
			if p.pattern != "" {
				if ok, _ := filepath.Match(p.pattern, d.Name()); !ok {
					return nil
				}
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: walk %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// IngestPaths parses every file under paths with the parser selected by its
// name, enriches the events and writes them to the sink. Files without a
// parser are skipped; unreadable files are counted and reported in Results
// without stopping the run. The returned error is reserved for expansion,
// cancellation and sink failures.
func (p *Pipeline) IngestPaths(ctx context.Context, paths []string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.IngestPaths",
		trace.WithAttributes(attribute.Int("paths", len(paths))))
	defer span.End()

	files, err := p.Expand(paths)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	type job struct {
		path   string
		parser parser.Parser
		res    *model.ParseResult
		err    error
	}
	res := &Result{Results: []*model.ParseResult{}, Events: []model.Event{}}
	var jobs []*job
	for _, f := range files {
		ps, err := parser.Select(f)
		if err != nil {
			slog.Warn("skipping file", "file", f, "error", err)
			res.Skipped = append(res.Skipped, f)
			res.Stats.FilesSkipped++
			filesTotal.WithLabelValues("skipped").Inc()
			continue
		}
		jobs = append(jobs, &job{path: f, parser: ps})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, j := range jobs {
		g.Go(func() error {
			j.res, j.err = parser.ParseFile(gctx, j.parser, j.path)
			if errors.Is(j.err, context.Canceled) || errors.Is(j.err, context.DeadlineExceeded) {
				return j.err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("pipeline: ingest: %w", err)
	}

	for _, j := range jobs {
		if j.err != nil {
			slog.Warn("file failed", "file", j.path, "error", j.err)
			res.Stats.FilesFailed++
			filesTotal.WithLabelValues("failed").Inc()
		} else {
			res.Stats.FilesProcessed++
			filesTotal.WithLabelValues("processed").Inc()
		}
		st, err := p.emit(ctx, j.res)
		res.Stats.add(st)
		res.Results = append(res.Results, j.res)
		res.Events = append(res.Events, j.res.Events...)
		if err != nil {
			span.RecordError(err)
			return res, err
		}
	}

	slog.Info("ingestion complete",
		"files", res.Stats.FilesProcessed, "skipped", res.Stats.FilesSkipped,
		"failed", res.Stats.FilesFailed, "events", res.Stats.TotalEvents,
		"parse_errors", res.Stats.ParseErrors, "written", res.Stats.EventsWritten)
	return res, nil
}

// IngestText parses text with the named parser, then enriches and emits the
// events like IngestPaths does.
func (p *Pipeline) IngestText(ctx context.Context, text, parserName, source string) (*model.ParseResult, error) {
	ps, err := parser.Get(parserName)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if source == "" {
		source = "text_input"
	}
	res, err := parser.ParseReader(ctx, ps, strings.NewReader(text), source)
	if err != nil {
		return res, fmt.Errorf("pipeline: parse: %w", err)
	}
	if _, err := p.emit(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// emit stamps res.Events with the ingestion time, enriches them in place and
// writes them to the sink.
func (p *Pipeline) emit(ctx context.Context, res *model.ParseResult) (Stats, error) {
	st := Stats{TotalEvents: len(res.Events), ParseErrors: res.FailedLines}
	now := p.now().UTC()
	for i := range res.Events {
		res.Events[i].IngestedAt = now
		if p.enricher != nil {
			res.Events[i] = p.enricher.Enrich(res.Events[i])
		}
		if p.out == nil {
			continue
		}
		if err := p.out.Write(ctx, res.Events[i]); err != nil {
			return st, fmt.Errorf("pipeline: output: %w", err)
		}
		st.EventsWritten++
		writtenTotal.Inc()
	}
	return st, nil
}

// Analyze correlates events and runs root cause analysis over them.
func (p *Pipeline) Analyze(ctx context.Context, events []model.Event, query string) model.IncidentAnalysis {
	bundle := p.correlator.Correlate(events)
	return p.engine.Analyze(ctx, events, bundle, query)
}

// Close shuts down the sink.
func (p *Pipeline) Close() error {
	if p.out == nil {
		return nil
	}
	return p.out.Close()
}
