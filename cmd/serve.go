package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ma5311943-dotcom/testing-tool/internal/observability"
	"github.com/ma5311943-dotcom/testing-tool/internal/orchestrator"
	"github.com/ma5311943-dotcom/testing-tool/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			o, err := orchestrator.New(cfg, logger, orchestrator.WithChildArgs(childArgs(cmd)...))
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, logger, o)
			if err != nil {
				return err
			}
			// Serves until the signal context from main is cancelled.
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().Int("max-concurrent", 0, "Maximum concurrent browser sessions. (Overrides config/env)")
	return cmd
}
