// File: internal/observability/logger.go
package observability

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
)

var (
	current atomic.Pointer[zap.Logger]
	once    sync.Once
)

// ansiColors are the color names accepted in logger.colors.
var ansiColors = map[string]string{
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
}

const ansiReset = "\x1b[0m"

// output describes the console side of a logger.
type output struct {
	w zapcore.WriteSyncer
	// transcript output is read back by the parent process: no colors, no
	// timestamps, and every line names the run it belongs to.
	transcript bool
}

// InitializeLogger sets up the CLI logger. Console output goes to stderr so
// reports printed on stdout stay clean.
func InitializeLogger(cfg config.LoggerConfig) {
	initialize(cfg, output{w: zapcore.Lock(os.Stderr)})
}

// InitializeTranscriptLogger sets up the logger of the child scenario runtime.
// Its lines are part of the run transcript, so they go to stdout between the
// step results.
func InitializeTranscriptLogger(cfg config.LoggerConfig) {
	initialize(cfg, output{w: zapcore.Lock(os.Stdout), transcript: true})
}

func initialize(cfg config.LoggerConfig, out output) {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}

		cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(cfg, out.transcript), out.w, level)}
		if cfg.LogFile != "" {
			rotating := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
			cores = append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(rotating), level))
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}
		logger := zap.New(zapcore.NewTee(cores...), opts...).Named(cfg.ServiceName)
		if out.transcript {
			if id := os.Getenv(RunIDEnv); id != "" {
				logger = logger.With(zap.String(FieldRunID, id))
			}
		}

		current.Store(logger)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// ResetForTest clears the global logger so the next initialization takes effect.
func ResetForTest() {
	current.Store(nil)
	once = sync.Once{}
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return ec
}

// jsonEncoder is used for the json format and always for the log file.
func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(baseEncoderConfig())
}

// consoleEncoder renders "time LEVEL verdict.orchestrator. message {fields}".
// Transcript lines drop the timestamp and colors.
func consoleEncoder(cfg config.LoggerConfig, transcript bool) zapcore.Encoder {
	if cfg.Format == "json" {
		return jsonEncoder()
	}
	ec := baseEncoderConfig()
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	if transcript {
		ec.TimeKey = zapcore.OmitKey
	} else {
		ec.EncodeLevel = levelColors(cfg.Colors)
	}
	return zapcore.NewConsoleEncoder(ec)
}

func levelColors(colors config.ColorConfig) zapcore.LevelEncoder {
	byLevel := map[zapcore.Level]string{
		zapcore.DebugLevel: ansiColors[colors.Debug],
		zapcore.InfoLevel:  ansiColors[colors.Info],
		zapcore.WarnLevel:  ansiColors[colors.Warn],
		zapcore.ErrorLevel: ansiColors[colors.Error],
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		color := byLevel[min(level, zapcore.ErrorLevel)]
		if color == "" {
			enc.AppendString(level.CapitalString())
			return
		}
		enc.AppendString(color + level.CapitalString() + ansiReset)
	}
}

// fallback serves GetLogger before initialization: warnings and up on stderr.
var fallback = sync.OnceValue(func() *zap.Logger {
	core := zapcore.NewCore(consoleEncoder(config.LoggerConfig{}, false), zapcore.Lock(os.Stderr), zap.WarnLevel)
	return zap.New(core).Named("verdict")
})

// GetLogger returns the global logger.
func GetLogger() *zap.Logger {
	if logger := current.Load(); logger != nil {
		return logger
	}
	return fallback()
}

// Sync flushes buffered entries. Terminals and pipes reject fsync; those
// errors are expected and dropped.
func Sync() {
	logger := current.Load()
	if logger == nil {
		return
	}
	err := logger.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.ENOTSUP) {
		return
	}
	fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
}
