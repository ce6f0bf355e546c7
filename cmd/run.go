package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
	"github.com/ma5311943-dotcom/testing-tool/internal/observability"
	"github.com/ma5311943-dotcom/testing-tool/internal/orchestrator"
)

type runOptions struct {
	url              string
	given, when      string
	then             string
	steps            []string
	instructionsFile string
	featureFile      string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scenario against a target URL and print its report",
		Example: `  verdict run --url https://shop.test --given "I am on '{URL}'" --then "I should see 'Welcome'"
  verdict run --url https://shop.test --step "When I click on 'Login'" --step "Then I should be redirected to '/login'"
  verdict run --url https://shop.test --instructions steps.txt
  verdict run --feature checkout.feature`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			req, err := opts.request(cmd)
			if err != nil {
				return err
			}
			o, err := orchestrator.New(cfg, observability.GetLogger(), orchestrator.WithChildArgs(childArgs(cmd)...))
			if err != nil {
				return err
			}
			return runScenario(cmd.Context(), cmd.OutOrStdout(), o, req, observability.GetLogger())
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Target URL the scenario starts on.")
	cmd.Flags().StringVar(&opts.given, "given", "", "Given step.")
	cmd.Flags().StringVar(&opts.when, "when", "", "When step.")
	cmd.Flags().StringVar(&opts.then, "then", "", "Then step.")
	cmd.Flags().StringArrayVarP(&opts.steps, "step", "s", nil, "Structured step; repeat for more.")
	cmd.Flags().StringVarP(&opts.instructionsFile, "instructions", "i", "", "File of free-text instructions, one per line ('-' for stdin).")
	cmd.Flags().StringVarP(&opts.featureFile, "feature", "f", "", "Feature document to run as is ('-' for stdin).")
	cmd.MarkFlagsMutuallyExclusive("instructions", "feature", "step")
	cmd.MarkFlagsMutuallyExclusive("instructions", "feature", "given")
	cmd.MarkFlagsMutuallyExclusive("instructions", "feature", "when")
	cmd.MarkFlagsMutuallyExclusive("instructions", "feature", "then")
	return cmd
}

func (o runOptions) request(cmd *cobra.Command) (schemas.RunRequest, error) {
	req := schemas.RunRequest{
		TargetURL: o.url,
		Steps:     o.steps,
		Given:     expandURL(o.given, o.url),
		When:      expandURL(o.when, o.url),
		Then:      expandURL(o.then, o.url),
	}
	var err error
	if o.instructionsFile != "" {
		if req.Instructions, err = readInput(cmd, o.instructionsFile); err != nil {
			return req, err
		}
	}
	if o.featureFile != "" {
		if req.Document, err = readInput(cmd, o.featureFile); err != nil {
			return req, err
		}
	}
	for i, s := range req.Steps {
		req.Steps[i] = expandURL(s, o.url)
	}
	return req, nil
}

// runner is the part of the orchestrator the run command needs.
type runner interface {
	Prepare(req schemas.RunRequest) (*orchestrator.Prepared, error)
	Execute(ctx context.Context, p *orchestrator.Prepared) orchestrator.Result
}

// runScenario executes req and prints the report. A rejected scenario is an
// error; a run that does not pass exits with status 1 after its report.
func runScenario(ctx context.Context, out io.Writer, r runner, req schemas.RunRequest, logger *zap.Logger) error {
	p, err := r.Prepare(req)
	if err != nil {
		return fmt.Errorf("scenario rejected: %w", err)
	}
	logger.Info("Running scenario.", zap.String("run_id", p.ID), zap.String("target", p.TargetURL), zap.Duration("timeout", p.Timeout))

	res := r.Execute(ctx, p)
	fmt.Fprint(out, res.Log)
	if !res.Success {
		return errNotPassed
	}
	return nil
}
