// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// worldName labels the isolated JavaScript world the engine evaluates in.
const worldName = "__verdict"

// Frame identifies one document in the page's frame tree.
type Frame struct {
	ID   string
	URL  string
	Main bool
}

// Session is a single browser tab owned by one scenario run.
type Session struct {
	id     string
	ctx    context.Context
	logger *zap.Logger
	cancel func()

	mu      sync.Mutex
	worlds  map[cdp.FrameID]runtime.ExecutionContextID
	closed  bool
	onClose func()
}

func newSession(ctx context.Context, logger *zap.Logger, cancel func()) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		ctx:    ctx,
		logger: logger.With(zap.String("session_id", id)),
		cancel: cancel,
		worlds: make(map[cdp.FrameID]runtime.ExecutionContextID),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// run executes actions on the tab, bounded by both the tab and ctx.
// Cancelling ctx aborts the actions without closing the tab. The browser must
// already be running: a first Run on a derived context would tie the process
// to that context and kill it on return.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// listen drops cached worlds when their frame navigates away.
func (s *Session) listen() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			s.forget(e.Frame.ID)
		case *page.EventFrameDetached:
			s.forget(e.FrameID)
		case *runtime.EventExecutionContextsCleared:
			s.mu.Lock()
			s.worlds = make(map[cdp.FrameID]runtime.ExecutionContextID)
			s.mu.Unlock()
		}
	})
}

func (s *Session) forget(id cdp.FrameID) {
	s.mu.Lock()
	delete(s.worlds, id)
	s.mu.Unlock()
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// WaitBody blocks until the document has a body element.
func (s *Session) WaitBody(ctx context.Context) error {
	return s.WaitReady(ctx, "body")
}

// WaitReady blocks until the selector matches an element, visible or not.
func (s *Session) WaitReady(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// WaitVisible blocks until the selector matches a visible element.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

// Location returns the current document URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

// ClickAt dispatches a left click at viewport coordinates.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	return s.run(ctx, chromedp.MouseClickXY(x, y))
}

// ClickSelector clicks the first element matching a CSS selector.
func (s *Session) ClickSelector(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// SendKeys types value into the element matching selector.
func (s *Session) SendKeys(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SendKeys(selector, value, chromedp.ByQuery))
}

// SetValue assigns the value property of the element matching selector.
func (s *Session) SetValue(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// PressKey sends a named key (Enter, Tab, ArrowDown, ...) or a single character.
func (s *Session) PressKey(ctx context.Context, name string) error {
	key, err := KeyFor(name)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.KeyEvent(key))
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects PNG encoding.
	err := s.run(ctx, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

// SetViewport resizes the emulated viewport.
func (s *Session) SetViewport(ctx context.Context, width, height int64) error {
	return s.run(ctx, chromedp.EmulateViewport(width, height))
}

// Evaluate runs expr in the main world of the top document and decodes the
// result into out.
func (s *Session) Evaluate(ctx context.Context, expr string, out interface{}) error {
	return s.run(ctx, chromedp.Evaluate(expr, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

// Frames lists the documents of the page, main frame first, then children in
// depth-first tree order.
func (s *Session) Frames(ctx context.Context) ([]Frame, error) {
	var tree *page.FrameTree
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame tree: %w", err)
	}
	return flattenFrames(tree), nil
}

func flattenFrames(tree *page.FrameTree) []Frame {
	var out []Frame
	var walk func(t *page.FrameTree, main bool)
	walk = func(t *page.FrameTree, main bool) {
		if t == nil || t.Frame == nil {
			return
		}
		out = append(out, Frame{ID: string(t.Frame.ID), URL: t.Frame.URL, Main: main})
		for _, child := range t.ChildFrames {
			walk(child, false)
		}
	}
	walk(tree, true)
	return out
}

// EvaluateIn runs expr inside the engine's isolated world of the given frame.
// The world shares the DOM with the page but not its globals.
func (s *Session) EvaluateIn(ctx context.Context, frameID, expr string, out interface{}) error {
	id := cdp.FrameID(frameID)
	var result []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		for attempt := 0; attempt < 2; attempt++ {
			var world runtime.ExecutionContextID
			world, err = s.world(ctx, id)
			if err != nil {
				return err
			}
			result, err = evaluate(ctx, world, expr)
			if err == nil || !isStaleContext(err) {
				return err
			}
			// The frame navigated between lookup and evaluation.
			s.forget(id)
		}
		return err
	}))
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

func (s *Session) world(ctx context.Context, id cdp.FrameID) (runtime.ExecutionContextID, error) {
	s.mu.Lock()
	world, ok := s.worlds[id]
	s.mu.Unlock()
	if ok {
		return world, nil
	}

	world, err := page.CreateIsolatedWorld(id).WithWorldName(worldName).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create isolated world for frame %s: %w", id, err)
	}
	s.mu.Lock()
	s.worlds[id] = world
	s.mu.Unlock()
	return world, nil
}

func evaluate(ctx context.Context, world runtime.ExecutionContextID, expr string) ([]byte, error) {
	res, exc, err := runtime.Evaluate(expr).
		WithContextID(world).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		msg := exc.Text
		if exc.Exception != nil && exc.Exception.Description != "" {
			msg = exc.Exception.Description
		}
		return nil, fmt.Errorf("script exception: %s", msg)
	}
	if res == nil {
		return nil, nil
	}
	return res.Value, nil
}

func isStaleContext(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Cannot find context") ||
		strings.Contains(msg, "Execution context was destroyed")
}

// Close shuts the tab and its browser process. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.release()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Browser did not close cleanly.", zap.Error(err))
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// release frees the allocator regardless of how the tab ended.
func (s *Session) release() {
	if s.cancel != nil {
		s.cancel()
	}
}
