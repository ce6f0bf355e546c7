package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/browser"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/engine"
	"github.com/ma5311943-dotcom/testing-tool/internal/observability"
	"github.com/ma5311943-dotcom/testing-tool/internal/scenario"
	"github.com/ma5311943-dotcom/testing-tool/internal/steps"
)

const browserShutdownTimeout = 15 * time.Second

// newExecCmd is the child runtime the orchestrator starts for every run. It
// executes one feature file in its own browser and prints the transcript.
func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "exec FILE",
		Short:  "Internal command that executes a feature file in a fresh browser.",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			manager := browser.NewManager(cfg, logger)
			defer func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), browserShutdownTimeout)
				defer cancel()
				if err := manager.Shutdown(ctx); err != nil {
					logger.Warn("Browser sessions did not close cleanly.", zap.Error(err))
				}
			}()
			return execFeature(cmd.Context(), cmd.OutOrStdout(), cfg, logger, args[0], engine.BrowserSessions(manager))
		},
	}
}

// execFeature loads and runs a feature file. The process fails unless every
// scenario passed.
func execFeature(ctx context.Context, out io.Writer, cfg config.Interface, logger *zap.Logger, path string, sessions engine.SessionFactory) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read feature file: %w", err)
	}
	doc, err := scenario.Load(string(source))
	if err != nil {
		return err
	}

	runner, err := engine.New(cfg, logger, steps.DefaultRegistry(), sessions, out)
	if err != nil {
		return err
	}
	sum, err := runner.Run(ctx, doc)
	if err != nil {
		return err
	}
	if !sum.Success() {
		return errNotPassed
	}
	return nil
}
