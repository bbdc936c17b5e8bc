package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/crimson-sun/avrca/internal/config"
	"github.com/crimson-sun/avrca/internal/enrich"
	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/output"
	"github.com/crimson-sun/avrca/internal/output/async"
	"github.com/crimson-sun/avrca/internal/output/file"
	"github.com/crimson-sun/avrca/internal/output/multi"
	"github.com/crimson-sun/avrca/internal/output/store"
	"github.com/crimson-sun/avrca/internal/output/stdout"
	"github.com/crimson-sun/avrca/internal/output/webhook"
	"github.com/crimson-sun/avrca/internal/pipeline"
	"github.com/crimson-sun/avrca/internal/rca"
)

// buildEngine returns an RCA engine over the configured or built-in patterns.
func buildEngine(cfg config.Config) (*rca.Engine, error) {
	patterns := rca.DefaultPatterns()
	if cfg.RCA.PatternsPath != "" {
		p, err := rca.LoadPatterns(cfg.RCA.PatternsPath)
		if err != nil {
			return nil, err
		}
		patterns = p
		slog.Info("loaded known patterns", "path", cfg.RCA.PatternsPath, "count", len(p))
	}
	return rca.New(patterns), nil
}

// buildEnricher returns nil when enrichment is disabled or nothing is
// configured to enrich with.
func buildEnricher(cfg config.Config) (pipeline.Enricher, error) {
	if !cfg.Enrich.Enabled || (cfg.Enrich.AssetsPath == "" && cfg.Enrich.IPMapPath == "") {
		return nil, nil
	}
	e, err := enrich.Load(cfg.Enrich.AssetsPath, cfg.Enrich.IPMapPath)
	if err != nil {
		return nil, err
	}
	st := e.Stats()
	slog.Info("asset enrichment enabled",
		"assets", st.TotalAssets, "ip_mappings", st.IPMappings, "hostname_mappings", st.HostnameMappings)
	return e, nil
}

// buildOutput opens every configured sink, routed when there is more than
// one and wrapped in an async writer when requested.
func buildOutput(cfg config.OutputConfig) (output.Output, error) {
	v, err := output.ParseVerbosity(cfg.Verbosity)
	if err != nil {
		return nil, err
	}
	names := cfg.Sinks()
	if len(names) == 0 {
		names = []string{"stdout"}
	}
	var routes []multi.Route
	for _, name := range names {
		out, err := openSink(name, cfg, v)
		if err != nil {
			for _, rt := range routes {
				rt.Output.Close()
			}
			return nil, err
		}
		routes = append(routes, multi.Route{Name: name, Output: out, Filter: sinkFilter(name, cfg)})
	}

	var out output.Output
	if len(routes) == 1 && routes[0].Filter == nil {
		out = routes[0].Output
	} else {
		out = multi.New(routes...)
	}
	if cfg.Async {
		out = async.New(out, async.WithBufferSize(cfg.BufferSize))
	}
	return out, nil
}

// sinkFilter returns the event filter for a sink, or nil for all events.
func sinkFilter(name string, cfg config.OutputConfig) multi.Filter {
	if strings.EqualFold(name, "webhook") && cfg.WebhookMinSeverity != "" {
		return multi.MinSeverity(model.Severity(cfg.WebhookMinSeverity))
	}
	return nil
}

func openSink(name string, cfg config.OutputConfig, v output.Verbosity) (output.Output, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return stdout.New(v, cfg.Pretty), nil
	case "file":
		opts := []file.Option{file.WithKeep(cfg.FileKeep)}
		if cfg.FileMaxSize > 0 {
			opts = append(opts, file.WithMaxSize(cfg.FileMaxSize))
		}
		if cfg.FilePartition {
			opts = append(opts, file.WithPartitionBySource())
		}
		return file.New(cfg.FilePath, v, opts...)
	case "store":
		return store.Open(store.Config{Path: cfg.StorePath, Verbosity: v, SyncWrites: true})
	case "webhook":
		return webhook.New(cfg.WebhookURL, webhook.WithVerbosity(v)), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

// buildPipeline assembles a pipeline from configuration. out may be nil.
func buildPipeline(cfg config.Config, out output.Output) (*pipeline.Pipeline, error) {
	eng, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}
	enr, err := buildEnricher(cfg)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithEngine(eng),
		pipeline.WithWindow(cfg.Correlator.Window),
		pipeline.WithWorkers(cfg.Parser.Workers),
		pipeline.WithRecursive(cfg.Parser.Recursive),
		pipeline.WithPattern(cfg.Parser.Pattern),
	}
	if enr != nil {
		opts = append(opts, pipeline.WithEnricher(enr))
	}
	if out != nil {
		opts = append(opts, pipeline.WithOutput(out))
	}
	return pipeline.New(opts...), nil
}
