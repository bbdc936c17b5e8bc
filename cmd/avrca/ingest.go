package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/avrca/internal/config"
)

type ingestFlags struct {
	recursive bool
	pattern   string
	sink      string
	assets    string
	ipMap     string
	noEnrich  bool
}

func newIngestCmd(a *app) *cobra.Command {
	f := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest [flags] <file|dir>...",
		Short: "Normalize logs into canonical events and write them to a sink",
		Long: `ingest parses files with the parser matching each file name, enriches
the events from the asset database and writes them to the configured sink.
Statistics are printed to stderr as JSON when the run completes.`,
		Example: `  avrca ingest -r -p '*.log' /var/log/av
  avrca ingest --sink store tickets.csv changes.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("recursive") {
				cfg.Parser.Recursive = f.recursive
			}
			if cmd.Flags().Changed("pattern") {
				cfg.Parser.Pattern = f.pattern
			}
			if cmd.Flags().Changed("sink") {
				cfg.Output.Sink = f.sink
			}
			if f.noEnrich {
				cfg.Enrich.Enabled = false
			}
			applyEnrichFlags(cmd, &cfg, f.assets, f.ipMap)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, args, cmd.ErrOrStderr())
		},
	}
	fl := cmd.Flags()
	fl.BoolVarP(&f.recursive, "recursive", "r", false, "descend into subdirectories")
	fl.StringVarP(&f.pattern, "pattern", "p", "", "glob applied to files found in directories")
	fl.StringVar(&f.sink, "sink", "", "event sink: stdout, file, store, webhook")
	fl.StringVar(&f.assets, "assets", "", "asset database (CSV or JSON)")
	fl.StringVar(&f.ipMap, "ip-map", "", "IP-to-room mapping CSV")
	fl.BoolVar(&f.noEnrich, "no-enrich", false, "skip asset enrichment")
	return cmd
}

func runIngest(ctx context.Context, cfg config.Config, paths []string, stats io.Writer) error {
	out, err := buildOutput(cfg.Output)
	if err != nil {
		return err
	}
	p, err := buildPipeline(cfg, out)
	if err != nil {
		out.Close()
		return err
	}

	res, ingestErr := p.IngestPaths(ctx, paths)
	if err := p.Close(); err != nil && ingestErr == nil {
		ingestErr = fmt.Errorf("close sink: %w", err)
	}
	if res != nil {
		enc := json.NewEncoder(stats)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Stats); err != nil {
			return err
		}
	}
	return ingestErr
}
