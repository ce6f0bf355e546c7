// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/browser/stealth"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
)

const launchTimeout = 30 * time.Second

// Manager launches one isolated browser per scenario. No browser process or
// cookie jar is shared between sessions.
type Manager struct {
	cfg    config.Interface
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewManager creates a browser manager bound to the given configuration.
func NewManager(cfg config.Interface, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("browser_manager"),
	}
}

// NewSession starts a fresh browser process and tab. The caller must Close it.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	bcfg := m.cfg.Browser()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(bcfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)

	s := newSession(tabCtx, m.logger, func() {
		tabCancel()
		allocCancel()
	})

	// The first Run launches the browser process and ties it to the context it
	// runs on, so it must run on the tab itself. The launch deadline cancels
	// the tab instead of bounding a derived context.
	expired := time.AfterFunc(launchTimeout, tabCancel)
	err := chromedp.Run(tabCtx,
		stealth.Apply(stealth.PersonaFromConfig(bcfg), m.logger),
		chromedp.EmulateViewport(int64(bcfg.Viewport.Width), int64(bcfg.Viewport.Height)),
	)
	if !expired.Stop() && err == nil {
		err = fmt.Errorf("no response within %s", launchTimeout)
	}
	if err != nil {
		s.release()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}
	s.listen()

	m.wg.Add(1)
	s.onClose = m.wg.Done
	m.logger.Debug("Browser session started.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown waits for open sessions to close, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded with sessions still open.", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
