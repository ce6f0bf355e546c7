package steps

import (
	"fmt"

	"github.com/ma5311943-dotcom/testing-tool/internal/resolver"
)

// NavigationError means the target produced no document content in time.
// It aborts the scenario.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("CRITICAL: Page failed to load content for %s", e.URL)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError means every resolver stage and the literal selector
// fallback failed for Query.
type ElementNotFoundError struct {
	Query  string
	Intent resolver.Intent
}

func (e *ElementNotFoundError) Error() string {
	switch e.Intent {
	case resolver.IntentInput:
		return fmt.Sprintf("CRITICAL: Field %q not found after deep scan.", e.Query)
	case resolver.IntentSelect:
		return fmt.Sprintf("CRITICAL: Dropdown %q not found after deep scan.", e.Query)
	default:
		return fmt.Sprintf("CRITICAL: Found no interactable element matching %q", e.Query)
	}
}

// VerificationError is a failed assertion. The message carries the target and
// whatever page context helps diagnose it.
type VerificationError struct {
	Msg string
}

func (e *VerificationError) Error() string { return e.Msg }

func verificationf(format string, args ...interface{}) error {
	return &VerificationError{Msg: fmt.Sprintf(format, args...)}
}

// UndefinedError is returned by the registry for text no phrasing accepts.
type UndefinedError struct {
	Text string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined step %q", e.Text)
}
