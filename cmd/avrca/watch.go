package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/avrca/internal/config"
	"github.com/crimson-sun/avrca/internal/pipeline"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		recursive bool
		pattern   string
		sink      string
		debounce  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch [flags] <dir>",
		Short: "Ingest log files continuously as they change",
		Long: `watch ingests every file in dir once, then follows file creation and
writes, emitting only events that were not emitted before. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("recursive") {
				cfg.Parser.Recursive = recursive
			}
			if cmd.Flags().Changed("pattern") {
				cfg.Parser.Pattern = pattern
			}
			if cmd.Flags().Changed("sink") {
				cfg.Output.Sink = sink
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runWatch(cmd.Context(), cfg, args[0], debounce)
		},
	}
	fl := cmd.Flags()
	fl.BoolVarP(&recursive, "recursive", "r", false, "watch subdirectories")
	fl.StringVarP(&pattern, "pattern", "p", "", "glob applied to file names")
	fl.StringVar(&sink, "sink", "", "event sink: stdout, file, store, webhook")
	fl.DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait this long after a change before ingesting")
	return cmd
}

func runWatch(ctx context.Context, cfg config.Config, dir string, debounce time.Duration) error {
	out, err := buildOutput(cfg.Output)
	if err != nil {
		return err
	}
	p, err := buildPipeline(cfg, out)
	if err != nil {
		out.Close()
		return err
	}
	defer p.Close()

	slog.Info("watching", "dir", dir, "sink", cfg.Output.Sink)
	return p.Watch(ctx, dir,
		pipeline.WithDebounce(debounce),
		pipeline.WithOnBatch(func(r *pipeline.Result) {
			slog.Info("batch ingested",
				"files", r.Stats.FilesProcessed, "events", r.Stats.TotalEvents,
				"written", r.Stats.EventsWritten, "parse_errors", r.Stats.ParseErrors)
		}),
	)
}
