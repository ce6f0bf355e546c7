package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
	"github.com/ma5311943-dotcom/testing-tool/internal/observability"
	"github.com/ma5311943-dotcom/testing-tool/internal/orchestrator"
)

// urlPlaceholder in a library step is replaced by the batch target URL.
const urlPlaceholder = "{URL}"

func newBatchCmd() *cobra.Command {
	var (
		url         string
		libraryFile string
		only        []string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run scenarios from a library file one after another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			library, err := loadLibrary(libraryFile)
			if err != nil {
				return err
			}
			entries, err := batchEntries(library, url, only)
			if err != nil {
				return err
			}

			logger := observability.GetLogger()
			o, err := orchestrator.New(cfg, logger, orchestrator.WithChildArgs(childArgs(cmd)...))
			if err != nil {
				return err
			}
			b := orchestrator.NewBatch(o, logTransitions(logger))
			return runBatch(cmd.Context(), cmd.OutOrStdout(), b, entries, verbose)
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "Target URL substituted for {URL} in the library.")
	cmd.Flags().StringVarP(&libraryFile, "library", "l", "", "YAML scenario library.")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only these scenario IDs (comma separated).")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every run's full report after the table.")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}

// loadLibrary reads a YAML list of scenario entries.
func loadLibrary(path string) ([]schemas.LibraryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read library: %w", err)
	}
	var library []schemas.LibraryEntry
	if err := yaml.Unmarshal(data, &library); err != nil {
		return nil, fmt.Errorf("failed to parse library %s: %w", path, err)
	}
	seen := make(map[string]bool, len(library))
	for i, e := range library {
		if e.ID == "" {
			return nil, fmt.Errorf("library entry %d has no id", i+1)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("library entry id %q is duplicated", e.ID)
		}
		seen[e.ID] = true
	}
	return library, nil
}

// batchEntries binds library entries to url, keeping library order. An id in
// only that the library does not define is an error.
func batchEntries(library []schemas.LibraryEntry, url string, only []string) ([]orchestrator.Entry, error) {
	want := make(map[string]bool, len(only))
	for _, id := range only {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = true
		}
	}

	var entries []orchestrator.Entry
	for _, e := range library {
		if len(want) > 0 && !want[e.ID] {
			continue
		}
		delete(want, e.ID)

		steps := make([]string, len(e.Steps))
		for i, s := range e.Steps {
			steps[i] = expandURL(s, url)
		}
		entries = append(entries, orchestrator.Entry{
			ID:    e.ID,
			Title: e.Title,
			Request: schemas.RunRequest{
				TargetURL: url,
				Steps:     steps,
				Given:     expandURL(e.Given, url),
				When:      expandURL(e.When, url),
				Then:      expandURL(e.Then, url),
			},
		})
	}
	if len(want) > 0 {
		missing := slices.Sorted(maps.Keys(want))
		return nil, fmt.Errorf("not in the library: %s", strings.Join(missing, ", "))
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("library has no scenarios to run")
	}
	return entries, nil
}

func expandURL(s, url string) string {
	return strings.ReplaceAll(s, urlPlaceholder, url)
}

func logTransitions(logger *zap.Logger) orchestrator.Observer {
	return func(rec schemas.RunRecord) {
		logger.Info("Scenario status changed.", zap.String("id", rec.ID), zap.String("status", string(rec.Status)))
	}
}

type batchRunner interface {
	Run(ctx context.Context, entries []orchestrator.Entry) []schemas.RunRecord
}

// runBatch runs the entries and prints a status table. It fails unless every
// scenario passed.
func runBatch(ctx context.Context, out io.Writer, b batchRunner, entries []orchestrator.Entry, verbose bool) error {
	records := b.Run(ctx, entries)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tTIME")
	passed := 0
	for _, rec := range records {
		if rec.Status == schemas.StatusPassed {
			passed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, rec.Title, strings.ToUpper(string(rec.Status)), elapsed(rec))
	}
	tw.Flush()
	fmt.Fprintf(out, "\n%d of %d scenarios passed\n", passed, len(records))

	if verbose {
		for _, rec := range records {
			fmt.Fprintf(out, "\n== %s ==\n%s", rec.ID, rec.Log)
		}
	}
	if passed != len(records) {
		return errNotPassed
	}
	return nil
}

func elapsed(rec schemas.RunRecord) string {
	if rec.StartedAt == nil || rec.FinishedAt == nil {
		return "-"
	}
	return rec.FinishedAt.Sub(*rec.StartedAt).Round(time.Millisecond).String()
}
