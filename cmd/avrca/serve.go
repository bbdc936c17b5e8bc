package main

import (
	"github.com/spf13/cobra"

	"github.com/crimson-sun/avrca/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parse and analyze HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			p, err := buildPipeline(cfg, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			srv := server.New(p, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
			return srv.Run(cmd.Context(), cfg.Server.Addr, cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	return cmd
}
