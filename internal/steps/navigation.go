package steps

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
)

// NormalizeURL prepends https:// to targets given without a scheme.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	lower := strings.ToLower(u)
	if strings.Contains(lower, "://") ||
		strings.HasPrefix(lower, "about:") ||
		strings.HasPrefix(lower, "data:") {
		return u
	}
	return "https://" + u
}

// Navigate opens a URL and waits for document content.
type Navigate struct {
	URL string
}

func (Navigate) Kind() Kind { return KindNavigate }

func (Navigate) Budget(t config.Timings) time.Duration {
	return t.NavigationTimeout + t.HydrationWait + t.BodyTimeout
}

// Run tolerates navigation errors (slow third-party resources, aborted
// redirects) and only fails when no body appears afterwards.
func (s Navigate) Run(ctx context.Context, env *Env) error {
	target := NormalizeURL(s.URL)
	env.Logger.Info("Navigating.", zap.String("url", target))

	err := within(ctx, env.Timings.NavigationTimeout, func(ctx context.Context) error {
		return env.Page.Navigate(ctx, target)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		env.Logger.Warn("Navigation reported an error; continuing.", zap.String("url", target), zap.Error(err))
	}

	if err := env.Sleep(ctx, env.Timings.HydrationWait); err != nil {
		return err
	}

	err = within(ctx, env.Timings.BodyTimeout, func(ctx context.Context) error {
		return env.Page.WaitBody(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NavigationError{URL: target, Err: err}
	}
	env.Logger.Debug("Document body present.", zap.String("url", target))
	return nil
}

// ExpectLocation waits for a redirect to land somewhere whose URL or text
// contains Target.
type ExpectLocation struct {
	Target string
}

func (ExpectLocation) Kind() Kind { return KindExpectLocation }

func (ExpectLocation) Budget(t config.Timings) time.Duration {
	return t.RedirectSettle + t.RedirectTimeout
}

func (s ExpectLocation) Run(ctx context.Context, env *Env) error {
	if err := env.Sleep(ctx, env.Timings.RedirectSettle); err != nil {
		return err
	}
	found, err := env.poll(ctx, env.Timings.RedirectTimeout, func(ctx context.Context) (bool, error) {
		var ok bool
		err := env.probe(ctx, &ok, "locationOrText", s.Target)
		return ok, err
	})
	if err != nil {
		return err
	}
	if !found {
		loc, _ := env.Page.Location(ctx)
		return verificationf("FAIL: Verification for %q failed. current location is %s", s.Target, loc)
	}
	return nil
}
