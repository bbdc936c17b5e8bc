package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/avrca/internal/config"
	"github.com/crimson-sun/avrca/internal/logging"
)

// app carries state shared by subcommands once the root pre-run has loaded
// configuration.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string
	cfg       config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "avrca",
		Short: "Root cause analysis for AV/IT incidents",
		Long: `avrca normalizes Zoom Rooms, Q-SYS, network syslog, ticket and change
exports into one event model, correlates them in time and ranks the most
likely root causes of an incident.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newAnalyzeCmd(a),
		newIngestCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

// load builds the configuration and installs the default logger.
func (a *app) load() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	a.cfg = cfg
	logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "avrca %s\n", config.Version)
		},
	}
}
