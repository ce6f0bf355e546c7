// File: internal/orchestrator/orchestrator.go
// Description: Runs one compiled scenario in an isolated child process with its
// own browser session, bounds it in time and in concurrent sessions, and turns
// the child's exit status and transcript into a terminal verdict.

package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/observability"
	"github.com/ma5311943-dotcom/testing-tool/internal/scenario"
	"github.com/ma5311943-dotcom/testing-tool/internal/steps"
)

// Injected for testing.
var (
	execCommandContext = exec.CommandContext
	osExecutable       = os.Executable
)

// ErrNoTarget rejects a request without a target URL or a document to take it from.
var ErrNoTarget = errors.New("target_url is required")

// Prepared is a validated run ready to execute.
type Prepared struct {
	ID        string
	TargetURL string
	Document  *scenario.Document
	Timeout   time.Duration
}

// Result is the terminal outcome of a run.
type Result struct {
	ID       string
	Status   schemas.RunStatus
	Success  bool
	Log      string
	Duration time.Duration
}

// Response converts the result to the outbound contract.
func (r Result) Response() schemas.RunResponse {
	return schemas.RunResponse{Success: r.Success, Output: r.Log, ID: r.ID, Status: r.Status}
}

// Orchestrator executes scenarios. It is safe for concurrent use; at most
// runner.max_concurrent runs hold a browser session at a time.
type Orchestrator struct {
	cfg       config.Interface
	logger    *zap.Logger
	registry  *steps.Registry
	sessions  *semaphore.Weighted
	childArgs []string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithChildArgs appends arguments to every child invocation, e.g. the
// configuration file the parent was started with.
func WithChildArgs(args ...string) Option {
	return func(o *Orchestrator) { o.childArgs = append(o.childArgs, args...) }
}

// WithRegistry sets the step library used to size run timeouts.
func WithRegistry(r *steps.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// New creates an Orchestrator.
func New(cfg config.Interface, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	limit := cfg.Runner().MaxConcurrent
	if limit <= 0 {
		return nil, fmt.Errorf("runner.max_concurrent must be a positive integer, got %d", limit)
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
		registry: steps.DefaultRegistry(),
		sessions: semaphore.NewWeighted(int64(limit)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Prepare compiles and validates a request. Nothing is written and no process
// is started; a rejected request returns the reason.
func (o *Orchestrator) Prepare(req schemas.RunRequest) (*Prepared, error) {
	target := strings.TrimSpace(req.TargetURL)
	if target == "" && strings.TrimSpace(req.Document) == "" {
		return nil, ErrNoTarget
	}

	doc, err := scenario.Compile(scenario.Request{
		TargetURL:    target,
		Document:     req.Document,
		Instructions: req.Instructions,
		Steps:        req.Steps,
		Given:        req.Given,
		When:         req.When,
		Then:         req.Then,
	})
	if err != nil {
		return nil, err
	}
	if target == "" {
		// Load guarantees every case opens with a navigation step.
		target, _ = scenario.NavigationTarget(doc.Cases[0].Steps[0].Text)
	}

	return &Prepared{
		ID:        uuid.NewString(),
		TargetURL: target,
		Document:  doc,
		Timeout:   o.Timeout(doc),
	}, nil
}

// Timeout is the hard bound for a document: the fixed overhead plus every
// step's budget, each capped at the per-step timeout.
func (o *Orchestrator) Timeout(doc *scenario.Document) time.Duration {
	runner := o.cfg.Runner()
	timings := o.cfg.Timings()
	total := runner.Overhead
	for _, c := range doc.Cases {
		for _, st := range c.Steps {
			step, err := o.registry.Match(st.Text)
			if err != nil {
				// Undefined steps never run.
				continue
			}
			total += min(step.Budget(timings), runner.StepTimeout)
		}
	}
	return total
}

// Run prepares and executes a request. It always returns a terminal result; a
// rejected request is reported as an error without starting anything.
func (o *Orchestrator) Run(ctx context.Context, req schemas.RunRequest) Result {
	p, err := o.Prepare(req)
	if err != nil {
		id := uuid.NewString()
		v := Verdict{Status: schemas.StatusError, Reason: "scenario rejected: " + err.Error()}
		observability.RecordRun(string(v.Status), 0)
		return Result{ID: id, Status: v.Status, Log: Report(id, req.TargetURL, v, 0, err.Error())}
	}
	return o.Execute(ctx, p)
}

// Execute runs a prepared scenario in a child process. The scenario file is
// removed on every path.
func (o *Orchestrator) Execute(ctx context.Context, p *Prepared) Result {
	start := time.Now()
	logger := observability.ForRun(o.logger, p.ID, p.TargetURL)

	finish := func(v Verdict, transcript string) Result {
		elapsed := time.Since(start)
		observability.RecordRun(string(v.Status), elapsed)
		logger.Info("Run finished.", zap.String("status", string(v.Status)), zap.Duration("elapsed", elapsed), zap.String("reason", v.Reason))
		return Result{
			ID:       p.ID,
			Status:   v.Status,
			Success:  v.Status == schemas.StatusPassed,
			Log:      Report(p.ID, p.TargetURL, v, elapsed, transcript),
			Duration: elapsed,
		}
	}

	if err := o.sessions.Acquire(ctx, 1); err != nil {
		return finish(Verdict{Status: schemas.StatusError, Reason: "cancelled while waiting for a browser session slot"}, "")
	}
	observability.SessionAcquired()
	defer func() {
		o.sessions.Release(1)
		observability.SessionReleased()
	}()

	path, err := o.writeArtifact(p)
	if err != nil {
		return finish(Verdict{Status: schemas.StatusError, Reason: err.Error()}, "")
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove scenario file.", zap.String("path", path), zap.Error(err))
		}
	}()

	exitCode, transcript, err := o.spawn(ctx, p, path, logger)
	switch {
	case err != nil:
		return finish(Verdict{Status: schemas.StatusError, Reason: err.Error()}, transcript)
	case ctx.Err() != nil:
		return finish(Verdict{Status: schemas.StatusError, Reason: "run cancelled"}, transcript)
	}
	return finish(Classify(exitCode, transcript), transcript)
}

func (o *Orchestrator) writeArtifact(p *Prepared) (string, error) {
	dir := o.cfg.Runner().WorkDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	path := filepath.Join(dir, "run_"+p.ID+".feature")
	if err := os.WriteFile(path, []byte(p.Document.Source), 0o644); err != nil {
		return "", fmt.Errorf("failed to write scenario file: %w", err)
	}
	return path, nil
}

// spawn runs the child runtime on path and returns its exit code and cleaned
// combined output. err is set when the child could not run to completion:
// it failed to start or was stopped by the run timeout.
func (o *Orchestrator) spawn(ctx context.Context, p *Prepared, path string, logger *zap.Logger) (int, string, error) {
	executable := o.cfg.Runner().Executable
	if executable == "" {
		self, err := osExecutable()
		if err != nil {
			return -1, "", fmt.Errorf("failed to find executable path: %w", err)
		}
		executable = self
	}

	runCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := append([]string{"exec", path}, o.childArgs...)
	cmd := execCommandContext(runCtx, executable, args...)
	cmd.Env = append(cmd.Environ(), observability.RunIDEnv+"="+p.ID)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Ask the child to close its browser first; kill it if it does not exit in time.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = o.cfg.Runner().KillGrace

	logger.Info("Starting scenario runtime.", zap.String("executable", executable), zap.Duration("timeout", p.Timeout))
	started := time.Now()
	runErr := cmd.Run()
	transcript := ansi.Strip(out.String())

	pid, exitCode := 0, -1
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	logger.Debug("Scenario runtime exited.", observability.ChildExit(pid, exitCode, time.Since(started))...)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return -1, transcript, fmt.Errorf("run exceeded its time limit of %s", p.Timeout)
	}
	if runErr == nil {
		return 0, transcript, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), transcript, nil
	}
	return -1, transcript, fmt.Errorf("scenario runtime failed: %w", runErr)
}
