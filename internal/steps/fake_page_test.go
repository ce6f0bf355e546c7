package steps

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ma5311943-dotcom/testing-tool/internal/browser"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/resolver"
)

// fakePage records every browser interaction. Resolver calls are answered
// from resolve (keyed "frame/fn" or "frame/fn/firstArg"), probes from probes
// (keyed by check name). Unanswered calls return null.
type fakePage struct {
	frames  []browser.Frame
	resolve map[string]string
	probes  map[string]func(args []interface{}) interface{}
	audit   func(rules []interface{}) (interface{}, error)

	title       string
	location    string
	navigateErr error
	waitBodyErr error
	waitErr     error
	literalErr  error

	actions []string
}

func newFakePage() *fakePage {
	return &fakePage{
		frames:   []browser.Frame{{ID: "main", URL: "https://example.test/", Main: true}},
		resolve:  map[string]string{},
		probes:   map[string]func([]interface{}) interface{}{},
		location: "https://example.test/",
	}
}

func (p *fakePage) record(format string, args ...interface{}) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func (p *fakePage) Frames(ctx context.Context) ([]browser.Frame, error) { return p.frames, nil }

func (p *fakePage) EvaluateIn(ctx context.Context, frameID, expr string, out interface{}) error {
	last := expr[strings.LastIndex(expr, "\n")+1:]
	inner := strings.TrimSuffix(strings.TrimPrefix(last, "__verdict.call("), ")")
	var decoded []interface{}
	if err := json.Unmarshal([]byte("["+inner+"]"), &decoded); err != nil {
		return err
	}
	fn := decoded[0].(string)
	args := decoded[1].([]interface{})
	if fn != "structural" && fn != "fuzzy" && fn != "partial" {
		p.record("%s:%s%v", fn, frameID, args[1:])
	}

	key := frameID + "/" + fn
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			if _, exact := p.resolve[key+"/"+s]; exact {
				key += "/" + s
			}
		}
	}
	answer, ok := p.resolve[key]
	if !ok {
		answer = "null"
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(answer), out)
}

func (p *fakePage) Evaluate(ctx context.Context, expr string, out interface{}) error {
	var result interface{}
	switch {
	case strings.HasPrefix(expr, "("+checksScript+")("):
		inner := strings.TrimSuffix(strings.TrimPrefix(expr, "("+checksScript+")("), ")")
		var decoded []interface{}
		if err := json.Unmarshal([]byte("["+inner+"]"), &decoded); err != nil {
			return err
		}
		name := decoded[0].(string)
		if probe, ok := p.probes[name]; ok {
			result = probe(decoded[1].([]interface{}))
		}
	case strings.HasPrefix(expr, "("+a11yScript+")("):
		inner := strings.TrimSuffix(strings.TrimPrefix(expr, "("+a11yScript+")("), ")")
		var rules []interface{}
		if err := json.Unmarshal([]byte(inner), &rules); err != nil {
			return err
		}
		if p.audit == nil {
			result = []interface{}{}
			break
		}
		var err error
		if result, err = p.audit(rules); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected expression")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.record("navigate:%s", url)
	return p.navigateErr
}

func (p *fakePage) WaitBody(ctx context.Context) error {
	p.record("waitBody")
	return p.waitBodyErr
}

func (p *fakePage) WaitReady(ctx context.Context, selector string) error {
	p.record("waitReady:%s", selector)
	return p.waitErr
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	p.record("waitVisible:%s", selector)
	return p.waitErr
}

func (p *fakePage) Title(ctx context.Context) (string, error)    { return p.title, nil }
func (p *fakePage) Location(ctx context.Context) (string, error) { return p.location, nil }

func (p *fakePage) ClickAt(ctx context.Context, x, y float64) error {
	p.record("clickAt:%.0f,%.0f", x, y)
	return nil
}

func (p *fakePage) ClickSelector(ctx context.Context, selector string) error {
	p.record("clickSelector:%s", selector)
	return p.literalErr
}

func (p *fakePage) SendKeys(ctx context.Context, selector, value string) error {
	p.record("sendKeys:%s=%s", selector, value)
	return p.literalErr
}

func (p *fakePage) SetValue(ctx context.Context, selector, value string) error {
	p.record("setValue:%s=%s", selector, value)
	return p.literalErr
}

func (p *fakePage) PressKey(ctx context.Context, key string) error {
	p.record("press:%s", key)
	return nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.record("screenshot")
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) SetViewport(ctx context.Context, width, height int64) error {
	p.record("viewport:%dx%d", width, height)
	return nil
}

// fastTimings keeps every wait in the millisecond range.
func fastTimings() config.Timings {
	return config.Timings{
		NavigationTimeout: 50 * time.Millisecond,
		BodyTimeout:       50 * time.Millisecond,
		LiteralTimeout:    50 * time.Millisecond,
		TextTimeout:       30 * time.Millisecond,
		RedirectTimeout:   30 * time.Millisecond,
		ElementTimeout:    50 * time.Millisecond,
		VisibleTimeout:    50 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		SlowLoadThreshold: 20 * time.Second,
	}
}

// newTestEnv wires a fake page into an Env whose logs can be inspected.
func newTestEnv(t *testing.T, page *fakePage) (*Env, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	return &Env{
		Page:          page,
		Resolver:      resolver.New(page, logger),
		Timings:       fastTimings(),
		ScreenshotDir: t.TempDir(),
		Logger:        logger,
		Sleep:         sleep,
	}, logs
}
