package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/resolver"
)

// Click activates the element described by Target.
type Click struct {
	Target string
}

func (Click) Kind() Kind { return KindClick }

func (Click) Budget(t config.Timings) time.Duration {
	return t.ElementTimeout + t.ClickSettle + t.LiteralTimeout + t.PostClickWait
}

func (s Click) Run(ctx context.Context, env *Env) error {
	env.Logger.Info("Clicking.", zap.String("target", s.Target))

	m, err := env.resolve(ctx, s.Target, resolver.IntentClick)
	switch {
	case err == nil:
		if err := clickMatch(ctx, env, m); err != nil {
			return fmt.Errorf("click on %q failed: %w", s.Target, err)
		}
	case errors.Is(err, resolver.ErrNotFound):
		// Last resort: the target may be a selector the resolver could not
		// evaluate directly, e.g. one that needs to wait for rendering.
		err := within(ctx, env.Timings.LiteralTimeout, func(ctx context.Context) error {
			return env.Page.ClickSelector(ctx, s.Target)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ElementNotFoundError{Query: s.Target, Intent: resolver.IntentClick}
		}
	default:
		return fmt.Errorf("resolving %q: %w", s.Target, err)
	}

	return env.Sleep(ctx, env.Timings.PostClickWait)
}

// resolve bounds element resolution by the element timeout. Running out of
// time counts as not found so the literal fallback still gets its turn.
func (e *Env) resolve(ctx context.Context, query string, intent resolver.Intent) (*resolver.Match, error) {
	var m *resolver.Match
	err := within(ctx, e.Timings.ElementTimeout, func(ctx context.Context) error {
		var err error
		m, err = e.Resolver.Resolve(ctx, query, intent)
		return err
	})
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: resolution timed out", resolver.ErrNotFound)
	}
	return m, err
}

// clickMatch scrolls the element into view and clicks its center. Elements in
// child frames, and elements without a box, get a DOM click instead because
// frame coordinates are not page coordinates.
func clickMatch(ctx context.Context, env *Env, m *resolver.Match) error {
	if err := env.Resolver.ScrollIntoView(ctx, m); err != nil {
		return err
	}
	if err := env.Sleep(ctx, env.Timings.ClickSettle); err != nil {
		return err
	}
	if m.Frame.Main {
		rect, err := env.Resolver.Rect(ctx, m)
		if err != nil {
			return err
		}
		if rect != nil && rect.Width > 0 && rect.Height > 0 {
			x, y := rect.Center()
			env.Logger.Debug("Clicking at element center.", zap.Float64("x", x), zap.Float64("y", y), zap.String("stage", string(m.Stage)))
			return env.Page.ClickAt(ctx, x, y)
		}
	}
	return env.Resolver.Click(ctx, m)
}

// Fill types Value into the field described by Target.
type Fill struct {
	Target string
	Value  string
}

func (Fill) Kind() Kind { return KindFill }

func (Fill) Budget(t config.Timings) time.Duration {
	return t.ElementTimeout + t.LiteralTimeout + t.PostInputWait
}

func (s Fill) Run(ctx context.Context, env *Env) error {
	env.Logger.Info("Entering value.", zap.String("target", s.Target), zap.String("value", s.Value))

	m, err := env.resolve(ctx, s.Target, resolver.IntentInput)
	switch {
	case err == nil:
		if err := env.Resolver.Fill(ctx, m, s.Value); err != nil {
			return fmt.Errorf("filling %q failed: %w", s.Target, err)
		}
	case errors.Is(err, resolver.ErrNotFound):
		err := within(ctx, env.Timings.LiteralTimeout, func(ctx context.Context) error {
			return env.Page.SendKeys(ctx, s.Target, s.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ElementNotFoundError{Query: s.Target, Intent: resolver.IntentInput}
		}
	default:
		return fmt.Errorf("resolving %q: %w", s.Target, err)
	}
	return env.Sleep(ctx, env.Timings.PostInputWait)
}

// Choose selects the option matching Value in the dropdown Target.
type Choose struct {
	Target string
	Value  string
}

func (Choose) Kind() Kind { return KindChoose }

func (Choose) Budget(t config.Timings) time.Duration {
	return t.ElementTimeout + t.LiteralTimeout + t.PostInputWait
}

func (s Choose) Run(ctx context.Context, env *Env) error {
	env.Logger.Info("Selecting option.", zap.String("target", s.Target), zap.String("value", s.Value))

	m, err := env.resolve(ctx, s.Target, resolver.IntentSelect)
	switch {
	case err == nil:
		ok, err := env.Resolver.Choose(ctx, m, s.Value)
		if err != nil {
			return fmt.Errorf("selecting in %q failed: %w", s.Target, err)
		}
		if !ok {
			return verificationf("CRITICAL: Option %q not available in dropdown %q.", s.Value, s.Target)
		}
	case errors.Is(err, resolver.ErrNotFound):
		err := within(ctx, env.Timings.LiteralTimeout, func(ctx context.Context) error {
			return env.Page.SetValue(ctx, s.Target, s.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ElementNotFoundError{Query: s.Target, Intent: resolver.IntentSelect}
		}
	default:
		return fmt.Errorf("resolving %q: %w", s.Target, err)
	}
	return env.Sleep(ctx, env.Timings.PostInputWait)
}

// PressKey sends one key to the focused element.
type PressKey struct {
	Key string
}

func (PressKey) Kind() Kind { return KindPressKey }

func (PressKey) Budget(t config.Timings) time.Duration { return t.LiteralTimeout }

func (s PressKey) Run(ctx context.Context, env *Env) error {
	env.Logger.Info("Pressing key.", zap.String("key", s.Key))
	return within(ctx, env.Timings.LiteralTimeout, func(ctx context.Context) error {
		return env.Page.PressKey(ctx, s.Key)
	})
}

// Pause waits a fixed duration.
type Pause struct {
	Duration time.Duration
}

func (Pause) Kind() Kind { return KindPause }

func (s Pause) Budget(config.Timings) time.Duration { return s.Duration }

func (s Pause) Run(ctx context.Context, env *Env) error {
	return env.Sleep(ctx, s.Duration)
}

// WaitVisible waits for a selector to match a visible element.
type WaitVisible struct {
	Selector string
}

func (WaitVisible) Kind() Kind { return KindWaitVisible }

func (WaitVisible) Budget(t config.Timings) time.Duration { return t.VisibleTimeout }

func (s WaitVisible) Run(ctx context.Context, env *Env) error {
	err := within(ctx, env.Timings.VisibleTimeout, func(ctx context.Context) error {
		return env.Page.WaitVisible(ctx, s.Selector)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return verificationf("Element %q did not become visible within %s.", s.Selector, env.Timings.VisibleTimeout)
	}
	return nil
}

// Scroll moves to the bottom of the page, or to the first element whose text
// contains Target.
type Scroll struct {
	Target string
}

func (Scroll) Kind() Kind { return KindScroll }

func (Scroll) Budget(t config.Timings) time.Duration { return t.LiteralTimeout + t.ScrollSettle }

func (s Scroll) Run(ctx context.Context, env *Env) error {
	if s.Target == "" {
		var ok bool
		if err := env.probe(ctx, &ok, "scrollBottom"); err != nil {
			return err
		}
	} else {
		var found bool
		if err := env.probe(ctx, &found, "scrollToText", s.Target); err != nil {
			return err
		}
		if !found {
			return verificationf("Target %q not found for scrolling.", s.Target)
		}
	}
	return env.Sleep(ctx, env.Timings.ScrollSettle)
}

// Viewport resizes the emulated screen.
type Viewport struct {
	Width  int64
	Height int64
}

func (Viewport) Kind() Kind { return KindViewport }

func (Viewport) Budget(t config.Timings) time.Duration { return t.LiteralTimeout + t.ClickSettle }

func (s Viewport) Run(ctx context.Context, env *Env) error {
	env.Logger.Info("Setting viewport.", zap.Int64("width", s.Width), zap.Int64("height", s.Height))
	if err := env.Page.SetViewport(ctx, s.Width, s.Height); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}
	// Let layout settle after the resize.
	return env.Sleep(ctx, env.Timings.ClickSettle)
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ScreenshotFile turns a user supplied name into a safe PNG file name.
func ScreenshotFile(name string) string {
	base := strings.TrimSuffix(strings.TrimSpace(name), ".png")
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "screenshot"
	}
	return base + ".png"
}

// Screenshot saves a full-page PNG under the screenshot directory.
type Screenshot struct {
	Name string
}

func (Screenshot) Kind() Kind { return KindScreenshot }

func (Screenshot) Budget(t config.Timings) time.Duration { return t.ElementTimeout }

func (s Screenshot) Run(ctx context.Context, env *Env) error {
	png, err := env.Page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(env.ScreenshotDir, 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(env.ScreenshotDir, ScreenshotFile(s.Name))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	env.Logger.Info("Screenshot captured.", zap.String("path", path))
	return nil
}
