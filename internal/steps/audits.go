package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
)

// Soft checks: findings are logged and never fail the step. Only a broken
// session (the audit could not run at all) is an error.

// AuditAccessibility runs the embedded rule set, or only Rules when set.
type AuditAccessibility struct {
	Rules []string
}

func (AuditAccessibility) Kind() Kind { return KindAuditA11y }

func (AuditAccessibility) Budget(t config.Timings) time.Duration { return t.ElementTimeout }

func (s AuditAccessibility) Run(ctx context.Context, env *Env) error {
	violations, err := env.audit(ctx, s.Rules)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		env.Logger.Warn("Accessibility audit could not run (soft pass).", zap.Error(err))
		return nil
	}
	if len(violations) == 0 {
		env.Logger.Info("Accessibility audit: no violations found.")
		return nil
	}

	var report strings.Builder
	for _, v := range violations {
		fmt.Fprintf(&report, "\n  • [%s] %s (Impact: %s, %d nodes)", v.ID, v.Help, v.Impact, v.Nodes)
	}
	env.Logger.Warn(fmt.Sprintf("Accessibility audit found %d violations (soft pass).%s", len(violations), report.String()))
	return nil
}

// AuditLoadTime reports navigation timing and warns above Threshold. A zero
// Threshold uses the configured slow-load threshold.
type AuditLoadTime struct {
	Threshold time.Duration
}

func (AuditLoadTime) Kind() Kind { return KindAuditLoadTime }

func (AuditLoadTime) Budget(t config.Timings) time.Duration { return t.LiteralTimeout }

func (s AuditLoadTime) Run(ctx context.Context, env *Env) error {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = env.Timings.SlowLoadThreshold
	}

	var timing struct {
		Interactive int64 `json:"interactive"`
		Complete    int64 `json:"complete"`
	}
	if err := env.probe(ctx, &timing, "loadTiming"); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		env.Logger.Warn("Load timing unavailable (soft pass).", zap.Error(err))
		return nil
	}

	interactive := time.Duration(timing.Interactive) * time.Millisecond
	complete := time.Duration(timing.Complete) * time.Millisecond
	env.Logger.Info("Performance metrics.",
		zap.Duration("dom_interactive", interactive),
		zap.Duration("full_load", complete),
	)
	if complete > threshold {
		env.Logger.Warn("Load time exceeded threshold (soft pass).",
			zap.Duration("full_load", complete), zap.Duration("threshold", threshold))
	}
	return nil
}
