// Package steps holds the behavior step library: one typed variant per step
// kind, the ordered registry that binds step text to variants, and the
// handlers that drive a browser session.
package steps

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/resolver"
)

// Kind identifies a step variant.
type Kind string

const (
	KindNavigate       Kind = "navigate"
	KindClick          Kind = "click"
	KindFill           Kind = "fill"
	KindChoose         Kind = "choose"
	KindPressKey       Kind = "press-key"
	KindPause          Kind = "pause"
	KindWaitVisible    Kind = "wait-visible"
	KindScroll         Kind = "scroll"
	KindViewport       Kind = "viewport"
	KindScreenshot     Kind = "screenshot"
	KindExpectLocation Kind = "expect-location"
	KindExpectTitle    Kind = "expect-title"
	KindExpectText     Kind = "expect-text"
	KindExpectElement  Kind = "expect-element"
	KindPageCheck      Kind = "page-check"
	KindAuditA11y      Kind = "audit-accessibility"
	KindAuditLoadTime  Kind = "audit-load-time"
)

// Step is a bound, validated step ready to run against a session.
type Step interface {
	Kind() Kind
	// Budget is the longest the step can legitimately take under t.
	Budget(t config.Timings) time.Duration
	Run(ctx context.Context, env *Env) error
}

// Page is the browser surface the handlers need.
type Page interface {
	resolver.Evaluator
	Navigate(ctx context.Context, url string) error
	WaitBody(ctx context.Context) error
	WaitReady(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string) error
	Title(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	ClickAt(ctx context.Context, x, y float64) error
	ClickSelector(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, value string) error
	SetValue(ctx context.Context, selector, value string) error
	PressKey(ctx context.Context, key string) error
	Screenshot(ctx context.Context) ([]byte, error)
	SetViewport(ctx context.Context, width, height int64) error
	Evaluate(ctx context.Context, expr string, out interface{}) error
}

// Env is everything a running step may touch. One Env serves one scenario.
type Env struct {
	Page          Page
	Resolver      *resolver.Resolver
	Timings       config.Timings
	ScreenshotDir string
	Logger        *zap.Logger

	// Sleep waits for d or until ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewEnv builds the environment for one scenario session.
func NewEnv(page Page, cfg config.Interface, logger *zap.Logger) *Env {
	return &Env{
		Page:          page,
		Resolver:      resolver.New(page, logger),
		Timings:       cfg.Timings(),
		ScreenshotDir: cfg.Runner().ScreenshotDir,
		Logger:        logger.Named("steps"),
		Sleep:         sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// within runs fn with a deadline of d on top of ctx.
func within(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(c)
}

// poll calls check every interval until it reports true, fails, or timeout
// passes. It reports whether check ever succeeded.
func (e *Env) poll(ctx context.Context, timeout time.Duration, check func(ctx context.Context) (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// Evaluation can fail transiently while a document is being replaced.
			e.Logger.Debug("Poll check failed.", zap.Error(err))
		} else if ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := e.Sleep(ctx, e.Timings.PollInterval); err != nil {
			return false, err
		}
	}
}
