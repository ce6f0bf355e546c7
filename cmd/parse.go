package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ma5311943-dotcom/testing-tool/internal/instruction"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [FILE|-]",
		Short: "Translate free-text instructions into structured steps",
		Long: `Reads one instruction per line and prints the structured step for each.
Unrecognized lines are reported on stderr and make the command fail.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			text, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			return printSteps(cmd.OutOrStdout(), cmd.ErrOrStderr(), text)
		},
	}
}

// printSteps writes recognized steps to out and diagnostics for the rest to errOut.
func printSteps(out, errOut io.Writer, text string) error {
	parsed := instruction.ParseText(text)
	for i, in := range parsed {
		if in.Recognized {
			fmt.Fprintln(out, in.StructuredStep)
			continue
		}
		fmt.Fprintf(errOut, "line %d: %s\n", i+1, in.Diagnostic)
	}
	if err := instruction.Check(parsed); err != nil {
		return errNotPassed
	}
	return nil
}
