// Package engine is the scenario runtime executed in the child process: it
// binds every step of a feature document against the step registry, drives one
// fresh browser session per scenario and prints a transcript with a
// machine-readable summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/browser"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/scenario"
	"github.com/ma5311943-dotcom/testing-tool/internal/steps"
)

// -- Interfaces for Dependency Inversion --

// Session is one isolated browser session.
type Session interface {
	steps.Page
	Close(ctx context.Context) error
}

// SessionFactory opens a new session for every scenario.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

var _ Session = (*browser.Session)(nil)

// managerSessions adapts a browser.Manager to SessionFactory.
type managerSessions struct {
	m *browser.Manager
}

// BrowserSessions opens sessions through a chromedp manager.
func BrowserSessions(m *browser.Manager) SessionFactory {
	return managerSessions{m: m}
}

func (f managerSessions) NewSession(ctx context.Context) (Session, error) {
	s, err := f.m.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Outcome is the result of a step or scenario.
type Outcome string

const (
	Passed    Outcome = "passed"
	Failed    Outcome = "failed"
	Skipped   Outcome = "skipped"
	Undefined Outcome = "undefined"
)

var marks = map[Outcome]string{
	Passed:    "✔",
	Failed:    "✖",
	Skipped:   "-",
	Undefined: "?",
}

// UndefinedHint follows every undefined step in the transcript.
const UndefinedHint = "Undefined. Implement with a registered phrasing."

// closeTimeout bounds session teardown, which runs even after cancellation.
const closeTimeout = 10 * time.Second

// StepResult is the outcome of one step.
type StepResult struct {
	Step     scenario.Step
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name     string
	Outcome  Outcome
	Err      error
	Steps    []StepResult
	Duration time.Duration
}

// Runner executes feature documents.
type Runner struct {
	cfg      config.Interface
	logger   *zap.Logger
	registry *steps.Registry
	sessions SessionFactory
	out      io.Writer
}

// New creates a Runner that writes its transcript to out.
func New(cfg config.Interface, logger *zap.Logger, registry *steps.Registry, sessions SessionFactory, out io.Writer) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("step registry cannot be nil")
	}
	if sessions == nil {
		return nil, errors.New("session factory cannot be nil")
	}
	if out == nil {
		return nil, errors.New("transcript writer cannot be nil")
	}
	return &Runner{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "engine")),
		registry: registry,
		sessions: sessions,
		out:      out,
	}, nil
}

// Run executes every scenario of doc in order and prints the summary. The
// returned Summary decides the process exit status.
func (r *Runner) Run(ctx context.Context, doc *scenario.Document) (Summary, error) {
	start := time.Now()
	var sum Summary

	if _, err := fmt.Fprintf(r.out, "Feature: %s\n", doc.Feature); err != nil {
		return sum, err
	}
	for _, c := range doc.Cases {
		res := r.runCase(ctx, c)
		sum.add(res)
		if err := r.print(res); err != nil {
			return sum, err
		}
	}

	sum.DurationMS = time.Since(start).Milliseconds()
	if _, err := fmt.Fprintln(r.out); err != nil {
		return sum, err
	}
	return sum, sum.Write(r.out)
}

// runCase binds all steps before touching a browser: a scenario with an
// undefined step is reported as undefined and never executed.
func (r *Runner) runCase(ctx context.Context, c scenario.Case) ScenarioResult {
	start := time.Now()
	logger := r.logger.With(zap.String("scenario", c.Name))
	res := ScenarioResult{Name: c.Name, Steps: make([]StepResult, len(c.Steps))}
	for i, st := range c.Steps {
		res.Steps[i] = StepResult{Step: st, Outcome: Skipped}
	}
	defer func() { res.Duration = time.Since(start) }()

	bound := make([]steps.Step, len(c.Steps))
	var bindErr error
	bindAt := -1
	for i, st := range c.Steps {
		step, err := r.registry.Match(st.Text)
		var undefined *steps.UndefinedError
		switch {
		case errors.As(err, &undefined):
			res.Steps[i].Outcome = Undefined
			res.Outcome = Undefined
		case err != nil && bindErr == nil:
			bindErr, bindAt = err, i
		}
		bound[i] = step
	}
	if res.Outcome == Undefined {
		logger.Warn("Scenario has undefined steps; not executed.")
		return res
	}
	if bindErr != nil {
		res.Steps[bindAt].Outcome = Failed
		res.Steps[bindAt].Err = bindErr
		res.Outcome = Failed
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Outcome, res.Err = Failed, fmt.Errorf("run cancelled before scenario started: %w", err)
		return res
	}

	logger.Info("Opening browser session for scenario.")
	session, err := r.sessions.NewSession(ctx)
	if err != nil {
		logger.Error("Could not open browser session.", zap.Error(err))
		res.Outcome, res.Err = Failed, fmt.Errorf("browser session could not start: %w", err)
		return res
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
		}
	}()

	env := steps.NewEnv(session, r.cfg, logger)
	stepTimeout := r.cfg.Runner().StepTimeout

	res.Outcome = Passed
	for i, step := range bound {
		stepStart := time.Now()
		err := r.runStep(ctx, env, step, stepTimeout)
		res.Steps[i].Duration = time.Since(stepStart)
		if err != nil {
			logger.Error("Step failed.", zap.String("step", c.Steps[i].String()), zap.Error(err))
			res.Steps[i].Outcome, res.Steps[i].Err = Failed, err
			res.Outcome = Failed
			break
		}
		res.Steps[i].Outcome = Passed
	}
	return res
}

// runStep runs one step under the per-step timeout.
func (r *Runner) runStep(ctx context.Context, env *steps.Env, step steps.Step, timeout time.Duration) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := step.Run(stepCtx, env)
	if err == nil {
		return nil
	}
	// Distinguish the step running out of time from the whole run being stopped.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("step timed out after %s: %w", timeout, err)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}
	return err
}

func (r *Runner) print(res ScenarioResult) error {
	if _, err := fmt.Fprintf(r.out, "\n  Scenario: %s\n", res.Name); err != nil {
		return err
	}
	if res.Err != nil {
		if _, err := fmt.Fprintf(r.out, "    %s %s\n", marks[Failed], res.Err); err != nil {
			return err
		}
	}
	for _, st := range res.Steps {
		if _, err := fmt.Fprintf(r.out, "    %s %s\n", marks[st.Outcome], st.Step); err != nil {
			return err
		}
		var detail string
		switch {
		case st.Outcome == Undefined:
			detail = UndefinedHint
		case st.Err != nil:
			detail = st.Err.Error()
		}
		if detail != "" {
			if _, err := fmt.Fprintf(r.out, "      %s\n", detail); err != nil {
				return err
			}
		}
	}
	return nil
}
