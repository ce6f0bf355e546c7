// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// Root flags. They are package level so the child runtime can be started with
// the same settings as its parent.
var (
	cfgFile       string
	headed        bool
	screenshotDir string
)

// exitError ends the process with a status code after the command has already
// reported why, so Execute prints nothing more.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// errNotPassed is returned when a scenario or batch finished without passing.
var errNotPassed = &exitError{code: 1}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "verdict",
		Short:         "Verdict runs plain-language behavior scenarios against live web pages.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "verdict"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "verdict"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			applyFlagOverrides(cmd, cfg)

			// The child runtime's log lines belong to the run transcript.
			if cmd.Name() == "exec" {
				observability.InitializeTranscriptLogger(cfg.Logger())
			} else {
				observability.InitializeLogger(cfg.Logger())
			}
			observability.GetLogger().Debug("Starting verdict", zap.String("version", Version), zap.String("command", cmd.Name()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./verdict.yaml or ~/.verdict/verdict.yaml)")
	cmd.PersistentFlags().BoolVar(&headed, "headed", false, "Show the browser window instead of running headless. (Overrides config/env)")
	cmd.PersistentFlags().StringVar(&screenshotDir, "screenshot-dir", "", "Directory for step screenshots. (Overrides config/env)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExecCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with the signal-aware ctx from main.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	defer observability.Sync()

	var ee *exitError
	if err != nil && !errors.As(err, &ee) {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

// initializeConfig reads the config file and VERDICT_ environment variables into v.
func initializeConfig(v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".verdict"))
		}
		v.SetConfigName("verdict")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("VERDICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("headed") {
		cfg.SetBrowserHeadless(!headed)
	}
	if cmd.Flags().Changed("screenshot-dir") {
		cfg.SetRunnerScreenshotDir(screenshotDir)
	}
	if f := cmd.Flags().Lookup("max-concurrent"); f != nil && f.Changed {
		if n, err := cmd.Flags().GetInt("max-concurrent"); err == nil && n > 0 {
			cfg.SetRunnerMaxConcurrent(n)
		}
	}
}

// childArgs repeats the root flags for the child runtime so it resolves the
// same configuration as its parent.
func childArgs(cmd *cobra.Command) []string {
	var args []string
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			args = append(args, "--config", abs)
		} else {
			args = append(args, "--config", cfgFile)
		}
	}
	if cmd.Flags().Changed("headed") {
		args = append(args, fmt.Sprintf("--headed=%t", headed))
	}
	if cmd.Flags().Changed("screenshot-dir") {
		args = append(args, "--screenshot-dir", screenshotDir)
	}
	return args
}

// getConfigFromContext returns the configuration loaded by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}
