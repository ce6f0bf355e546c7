package resolver_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ma5311943-dotcom/testing-tool/internal/browser"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/resolver"
)

const fixture = `<!doctype html>
<html><body>
  <button id="pay">Complete purchase</button>
  <div>pay</div>
  <div aria-label="Checkout" style="width:80px;height:30px"></div>
  <div id="host"></div>
  <select id="color"><option value="r">Red</option><option value="b">Blue</option></select>
  <iframe src="/form"></iframe>
  <script>
    const root = document.getElementById('host').attachShadow({mode: 'open'});
    root.innerHTML = '<button class="shadow-btn">Inside shadow</button>';
  </script>
</body></html>`

const formFrame = `<!doctype html><html><body>
  <label for="reg">Registration Number</label><input id="reg">
</body></html>`

func setup(t *testing.T) (*browser.Session, *resolver.Resolver) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if !chromeAvailable() {
		t.Skip("no Chrome binary found")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, fixture) })
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, formFrame) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	s, err := browser.NewManager(config.NewDefaultConfig(), logger).NewSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, s.Navigate(ctx, srv.URL))
	require.NoError(t, s.WaitVisible(ctx, "iframe"))
	require.Eventually(t, func() bool {
		frames, err := s.Frames(ctx)
		return err == nil && len(frames) == 2 && frames[1].URL != "about:blank"
	}, 10*time.Second, 100*time.Millisecond)

	return s, resolver.New(s, logger)
}

func TestResolveAgainstFixture(t *testing.T) {
	_, r := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("id selector beats fuzzy text", func(t *testing.T) {
		m, err := r.Resolve(ctx, "#pay", resolver.IntentClick)
		require.NoError(t, err)
		assert.Equal(t, resolver.StageStructural, m.Stage)
		assert.Equal(t, "button", m.Tag)
	})

	t.Run("aria-label only target", func(t *testing.T) {
		m, err := r.Resolve(ctx, "Checkout", resolver.IntentClick)
		require.NoError(t, err)
		assert.Equal(t, resolver.StageFuzzy, m.Stage)
		assert.Equal(t, "div", m.Tag)
	})

	t.Run("shadow root selector", func(t *testing.T) {
		m, err := r.Resolve(ctx, ".shadow-btn", resolver.IntentClick)
		require.NoError(t, err)
		assert.Equal(t, resolver.StageStructural, m.Stage)
		assert.Equal(t, "Inside shadow", m.Text)
	})

	t.Run("partial words across frames", func(t *testing.T) {
		m, err := r.Resolve(ctx, "reg number", resolver.IntentInput)
		require.NoError(t, err)
		assert.Equal(t, resolver.StagePartial, m.Stage)
		assert.False(t, m.Frame.Main)

		require.NoError(t, r.Fill(ctx, m, "AB-123"))
	})

	t.Run("select option by text", func(t *testing.T) {
		m, err := r.Resolve(ctx, "color", resolver.IntentSelect)
		require.NoError(t, err)
		ok, err := r.Choose(ctx, m, "blue")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.Choose(ctx, m, "green")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nothing matches", func(t *testing.T) {
		_, err := r.Resolve(ctx, "nonexistent widget", resolver.IntentClick)
		assert.ErrorIs(t, err, resolver.ErrNotFound)
	})
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
