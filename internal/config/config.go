// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Timings() Timings
	Runner() RunnerConfig
	Server() ServerConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	TimingsCfg Timings       `mapstructure:"timings" yaml:"timings"`
	RunnerCfg  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	ServerCfg  ServerConfig  `mapstructure:"server" yaml:"server"`
}

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Timings() Timings       { return c.TimingsCfg }
func (c *Config) Runner() RunnerConfig   { return c.RunnerCfg }
func (c *Config) Server() ServerConfig   { return c.ServerCfg }

// -- Setters used by command-line flag overrides --

func (c *Config) SetBrowserHeadless(b bool)         { c.BrowserCfg.Headless = b }
func (c *Config) SetRunnerScreenshotDir(dir string) { c.RunnerCfg.ScreenshotDir = dir }
func (c *Config) SetRunnerMaxConcurrent(n int)      { c.RunnerCfg.MaxConcurrent = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color of each level. Levels above error use
// the error color. An empty or unknown name leaves the level uncolored.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig holds settings for the Chrome instance launched per scenario.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NoSandbox       bool           `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	BinaryPath      string         `mapstructure:"binary_path" yaml:"binary_path"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Locale          string         `mapstructure:"locale" yaml:"locale"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
}

// ViewportConfig is the initial window size of a session.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// RunnerConfig controls how the orchestrator isolates and bounds scenario runs.
type RunnerConfig struct {
	WorkDir       string        `mapstructure:"work_dir" yaml:"work_dir"`
	ScreenshotDir string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	StepTimeout   time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	Overhead      time.Duration `mapstructure:"overhead" yaml:"overhead"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	// Executable is the binary launched for the child runtime. Empty means the
	// running binary.
	Executable string        `mapstructure:"executable" yaml:"executable"`
	KillGrace  time.Duration `mapstructure:"kill_grace" yaml:"kill_grace"`
}

// ServerConfig configures the HTTP run endpoint.
type ServerConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	RateLimit   float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst       int           `mapstructure:"burst" yaml:"burst"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a reverse proxy that sets those headers.
	TrustProxy bool `mapstructure:"trust_proxy" yaml:"trust_proxy"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "verdict")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.no_sandbox", runtime.GOOS == "linux")
	v.SetDefault("browser.binary_path", "")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1366)
	v.SetDefault("browser.viewport.height", 768)

	// -- Timings --
	setTimingDefaults(v)

	// -- Runner --
	v.SetDefault("runner.work_dir", filepath.Join(os.TempDir(), "verdict-runs"))
	v.SetDefault("runner.screenshot_dir", "screenshots")
	v.SetDefault("runner.step_timeout", "120s")
	v.SetDefault("runner.overhead", "60s")
	v.SetDefault("runner.max_concurrent", 2)
	v.SetDefault("runner.executable", "")
	v.SetDefault("runner.kill_grace", "10s")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.burst", 4)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.trust_proxy", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Paths commonly come from the environment rather than the config file.
	v.BindEnv("runner.work_dir", "VERDICT_WORK_DIR")
	v.BindEnv("browser.binary_path", "VERDICT_CHROME_PATH", "CHROME_PATH")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every filesystem path setting.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.RunnerCfg.WorkDir,
		&c.RunnerCfg.ScreenshotDir,
		&c.LoggerCfg.LogFile,
		&c.BrowserCfg.BinaryPath,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.Viewport.Width <= 0 || c.BrowserCfg.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport width and height must be positive integers")
	}
	if c.RunnerCfg.MaxConcurrent <= 0 {
		return fmt.Errorf("runner.max_concurrent must be a positive integer")
	}
	if c.RunnerCfg.StepTimeout <= 0 {
		return fmt.Errorf("runner.step_timeout must be a positive duration")
	}
	if c.RunnerCfg.Overhead < 0 {
		return fmt.Errorf("runner.overhead must not be negative")
	}
	if c.RunnerCfg.WorkDir == "" {
		return fmt.Errorf("runner.work_dir is a required configuration field")
	}
	if c.ServerCfg.RateLimit <= 0 || c.ServerCfg.Burst <= 0 {
		return fmt.Errorf("server.rate_limit and server.burst must be positive")
	}
	if err := c.TimingsCfg.Validate(); err != nil {
		return fmt.Errorf("timings configuration invalid: %w", err)
	}
	return nil
}
