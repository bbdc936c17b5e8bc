package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/avrca/internal/config"
	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/report"
)

type analyzeFlags struct {
	query    string
	format   string
	out      string
	parser   string
	patterns string
	window   time.Duration
	assets   string
	ipMap    string
	recurse  bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [flags] <file|dir|->...",
		Short: "Parse logs and report the likely root cause of an incident",
		Long: `analyze parses the given files, correlates their events and prints a
root cause analysis. Use "-" to read pasted text from stdin; --parser then
names the parser to apply (default generic). With files, --parser forces one
parser instead of selecting by file name.`,
		Example: `  avrca analyze -q "CR-101 camera offline" zoom.log core.log tickets.csv
  pbpaste | avrca analyze -f summary -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("patterns") {
				cfg.RCA.PatternsPath = f.patterns
			}
			if cmd.Flags().Changed("correlation-window") {
				cfg.Correlator.Window = f.window
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Parser.Recursive = f.recurse
			}
			applyEnrichFlags(cmd, &cfg, f.assets, f.ipMap)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, f, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.query, "query", "q", "", "incident description, echoed in the summary")
	fl.StringVarP(&f.format, "format", "f", report.FormatMarkdown, "report format: json, markdown, summary, ticket")
	fl.StringVarP(&f.out, "output", "o", "", "write the report to this file instead of stdout")
	fl.StringVar(&f.parser, "parser", "", "parser to apply (required name for stdin, default generic)")
	fl.StringVar(&f.patterns, "patterns", "", "known-pattern YAML file")
	fl.DurationVar(&f.window, "correlation-window", 0, "correlation window (default 5m0s)")
	fl.StringVar(&f.assets, "assets", "", "asset database (CSV or JSON)")
	fl.StringVar(&f.ipMap, "ip-map", "", "IP-to-room mapping CSV")
	fl.BoolVarP(&f.recurse, "recursive", "r", false, "descend into subdirectories")
	return cmd
}

func applyEnrichFlags(cmd *cobra.Command, cfg *config.Config, assets, ipMap string) {
	if cmd.Flags().Changed("assets") {
		cfg.Enrich.AssetsPath = assets
	}
	if cmd.Flags().Changed("ip-map") {
		cfg.Enrich.IPMapPath = ipMap
	}
}

func runAnalyze(ctx context.Context, cfg config.Config, f *analyzeFlags, args []string, stdin io.Reader, stdout io.Writer) error {
	// Reject a bad format before doing any parsing work.
	if _, err := report.Render(f.format, model.IncidentAnalysis{}); err != nil {
		return err
	}

	p, err := buildPipeline(cfg, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	var events []model.Event
	var files []string
	for _, arg := range args {
		if arg != "-" {
			files = append(files, arg)
			continue
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		name := f.parser
		if name == "" {
			name = "generic"
		}
		res, err := p.IngestText(ctx, string(data), name, "stdin")
		if err != nil {
			return err
		}
		events = append(events, res.Events...)
	}

	if len(files) > 0 {
		if f.parser != "" {
			evs, err := ingestForced(ctx, p, files, f.parser)
			if err != nil {
				return err
			}
			events = append(events, evs...)
		} else {
			res, err := p.IngestPaths(ctx, files)
			if err != nil {
				return err
			}
			events = append(events, res.Events...)
		}
	}

	slog.Debug("analyzing", "events", len(events))
	analysis := p.Analyze(ctx, events, f.query)
	text, err := report.Render(f.format, analysis)
	if err != nil {
		return err
	}

	if f.out == "" {
		_, err = fmt.Fprintln(stdout, text)
		return err
	}
	if err := os.WriteFile(f.out, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	slog.Info("report written", "path", f.out, "format", f.format)
	return nil
}

type textIngester interface {
	Expand(paths []string) ([]string, error)
	IngestText(ctx context.Context, text, parserName, source string) (*model.ParseResult, error)
}

// ingestForced parses every file under paths with one named parser.
func ingestForced(ctx context.Context, p textIngester, paths []string, parserName string) ([]model.Event, error) {
	files, err := p.Expand(paths)
	if err != nil {
		return nil, err
	}
	var events []model.Event
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		res, err := p.IngestText(ctx, string(data), parserName, path)
		if err != nil {
			return nil, err
		}
		events = append(events, res.Events...)
	}
	return events, nil
}
