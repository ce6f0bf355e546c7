package observability

import (
	"time"

	"go.uber.org/zap"
)

// Field keys shared by the orchestrator and the child runtime, so parent and
// child lines about one run can be joined.
const (
	FieldRunID    = "run_id"
	FieldTarget   = "target"
	FieldPID      = "pid"
	FieldExitCode = "exit_code"
)

// RunIDEnv carries the run ID into the child runtime's environment.
const RunIDEnv = "VERDICT_RUN_ID"

// ForRun scopes l to one scenario run.
func ForRun(l *zap.Logger, runID, target string) *zap.Logger {
	return l.With(zap.String(FieldRunID, runID), zap.String(FieldTarget, target))
}

// ChildExit describes how a child runtime ended. pid is 0 when the process
// never started.
func ChildExit(pid, exitCode int, elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.Int(FieldPID, pid),
		zap.Int(FieldExitCode, exitCode),
		zap.Duration("elapsed", elapsed),
	}
}
