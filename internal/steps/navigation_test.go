package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.test", "https://example.test"},
		{"  example.test/login ", "https://example.test/login"},
		{"http://localhost:8080", "http://localhost:8080"},
		{"HTTPS://Example.test", "HTTPS://Example.test"},
		{"about:blank", "about:blank"},
		{"data:text/html,<p>hi</p>", "data:text/html,<p>hi</p>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func TestNavigate(t *testing.T) {
	t.Run("navigation error is tolerated when a body appears", func(t *testing.T) {
		page := newFakePage()
		page.navigateErr = errors.New("net::ERR_ABORTED")
		env, logs := newTestEnv(t, page)

		require.NoError(t, Navigate{URL: "example.test"}.Run(context.Background(), env))
		assert.Equal(t, []string{"navigate:https://example.test", "waitBody"}, page.actions)
		assert.Equal(t, 1, logs.FilterMessage("Navigation reported an error; continuing.").Len())
	})

	t.Run("missing body is a navigation error", func(t *testing.T) {
		page := newFakePage()
		page.waitBodyErr = context.DeadlineExceeded
		env, _ := newTestEnv(t, page)

		err := Navigate{URL: "https://broken.test"}.Run(context.Background(), env)
		var navErr *NavigationError
		require.ErrorAs(t, err, &navErr)
		assert.Equal(t, "CRITICAL: Page failed to load content for https://broken.test", err.Error())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cancelled context wins over navigation error", func(t *testing.T) {
		page := newFakePage()
		page.waitBodyErr = errors.New("boom")
		env, _ := newTestEnv(t, page)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Navigate{URL: "example.test"}.Run(ctx, env)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExpectLocation(t *testing.T) {
	t.Run("matches once the redirect lands", func(t *testing.T) {
		page := newFakePage()
		calls := 0
		page.probes["locationOrText"] = func(args []interface{}) interface{} {
			calls++
			return calls >= 3 && args[0] == "dashboard"
		}
		env, _ := newTestEnv(t, page)

		require.NoError(t, ExpectLocation{Target: "dashboard"}.Run(context.Background(), env))
		assert.Equal(t, 3, calls)
	})

	t.Run("reports the current location on failure", func(t *testing.T) {
		page := newFakePage()
		page.location = "https://example.test/login"
		page.probes["locationOrText"] = func([]interface{}) interface{} { return false }
		env, _ := newTestEnv(t, page)

		err := ExpectLocation{Target: "dashboard"}.Run(context.Background(), env)
		var verr *VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, `FAIL: Verification for "dashboard" failed. current location is https://example.test/login`, err.Error())
	})
}
