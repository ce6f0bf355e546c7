// File: cmd/verdict/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/ma5311943-dotcom/testing-tool/cmd"
	"github.com/ma5311943-dotcom/testing-tool/internal/observability"
)

const panicLogName = "verdict-panic.log"

// Injected for testing.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	panicLogDir = os.TempDir
)

func main() {
	defer handlePanic()

	// SIGINT also reaches the child runtime, which closes its browser on the cancelled context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	stop()
	if code := cmd.ExitCode(err); code != 0 {
		osExit(code)
	}
}

// handlePanic records a crash to a log file so the transcript of a child
// runtime stays readable, and exits with status 2.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	message := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	path := filepath.Join(panicLogDir(), fmt.Sprintf("%d-%s", time.Now().Unix(), panicLogName))
	if err := osWriteFile(path, []byte(message), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", message)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "panic: %v\nDetails logged to %s\n", r, path)
	osExit(2)
}
