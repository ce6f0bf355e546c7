// Package resolver locates page elements from natural-language or selector
// queries and performs the low-level interactions on them.
package resolver

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/browser"
)

//go:embed dom.js
var domScript string

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when every stage fails to locate the query.
var ErrNotFound = errors.New("element not found")

// Evaluator runs JavaScript in a frame's isolated world.
type Evaluator interface {
	Frames(ctx context.Context) ([]browser.Frame, error)
	EvaluateIn(ctx context.Context, frameID, expr string, out interface{}) error
}

// Intent selects the candidate set and the attributes compared.
type Intent string

const (
	IntentClick  Intent = "click"
	IntentInput  Intent = "input"
	IntentSelect Intent = "select"
)

// Stage names the strategy that produced a match.
type Stage string

const (
	StageStructural Stage = "structural"
	StageFuzzy      Stage = "fuzzy"
	StageCleaned    Stage = "fuzzy-cleaned"
	StageFrame      Stage = "cross-frame"
	StagePartial    Stage = "partial"
)

// Match is a resolved element, addressed by a ref in its frame's world.
type Match struct {
	Frame browser.Frame
	Ref   int
	Tag   string
	Text  string
	Stage Stage
}

// Rect is an element's bounding box in its frame's viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

type found struct {
	Ref  int    `json:"ref"`
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

var fillerWords = map[string]bool{
	"the": true, "button": true, "link": true, "icon": true, "at": true, "on": true,
	"field": true, "dropdown": true, "input": true, "text": true, "box": true,
}

// Clean lowercases q, strips quote marks around words and removes filler words.
func Clean(q string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(q)) {
		w = strings.Trim(w, `'"`)
		if w != "" && !fillerWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Resolver finds elements in one browser session.
type Resolver struct {
	ev     Evaluator
	logger *zap.Logger
}

// New binds a resolver to a session.
func New(ev Evaluator, logger *zap.Logger) *Resolver {
	return &Resolver{ev: ev, logger: logger.Named("resolver")}
}

// Resolve runs the stages in order and returns the first hit:
//  1. the query as a CSS selector, shadow roots included
//  2. fuzzy attribute match on the raw query, then on the cleaned query
//  3. for input and select, stage 2 in every child frame, then word-level
//     partial matching across all frames
func (r *Resolver) Resolve(ctx context.Context, query string, intent Intent) (*Match, error) {
	frames, err := r.ev.Frames(ctx)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}
	main := frames[0]
	raw := strings.ToLower(strings.TrimSpace(query))
	cleaned := Clean(query)

	if m, err := r.try(ctx, main, StageStructural, "structural", query); m != nil || err != nil {
		return m, err
	}
	if m, err := r.fuzzy(ctx, main, raw, cleaned, intent, StageFuzzy, StageCleaned); m != nil || err != nil {
		return m, err
	}
	if intent == IntentClick {
		return nil, ErrNotFound
	}

	for _, f := range frames[1:] {
		m, err := r.fuzzy(ctx, f, raw, cleaned, intent, StageFrame, StageFrame)
		if err != nil {
			// Cross-origin or detached frames are skipped.
			r.logger.Debug("Frame search failed.", zap.String("frame_url", f.URL), zap.Error(err))
			continue
		}
		if m != nil {
			return m, nil
		}
	}

	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return nil, ErrNotFound
	}
	for _, f := range frames {
		m, err := r.try(ctx, f, StagePartial, "partial", words, string(intent))
		if err != nil {
			r.logger.Debug("Partial search failed.", zap.String("frame_url", f.URL), zap.Error(err))
			continue
		}
		if m != nil {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

func (r *Resolver) fuzzy(ctx context.Context, f browser.Frame, raw, cleaned string, intent Intent, rawStage, cleanStage Stage) (*Match, error) {
	if raw != "" {
		if m, err := r.try(ctx, f, rawStage, "fuzzy", raw, string(intent)); m != nil || err != nil {
			return m, err
		}
	}
	if cleaned != "" && cleaned != raw {
		return r.try(ctx, f, cleanStage, "fuzzy", cleaned, string(intent))
	}
	return nil, nil
}

func (r *Resolver) try(ctx context.Context, f browser.Frame, stage Stage, fn string, args ...interface{}) (*Match, error) {
	var res *found
	if err := r.call(ctx, f.ID, fn, &res, args...); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	r.logger.Debug("Element resolved.", zap.String("stage", string(stage)), zap.String("tag", res.Tag), zap.String("frame_url", f.URL))
	return &Match{Frame: f, Ref: res.Ref, Tag: res.Tag, Text: res.Text, Stage: stage}, nil
}

// call invokes a dom.js entry point in the frame's isolated world.
func (r *Resolver) call(ctx context.Context, frameID, fn string, out interface{}, args ...interface{}) error {
	expr, err := Expression(fn, args...)
	if err != nil {
		return err
	}
	return r.ev.EvaluateIn(ctx, frameID, expr, out)
}

// Expression renders a resolver call as a self-installing script.
func Expression(fn string, args ...interface{}) (string, error) {
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode resolver arguments: %w", err)
	}
	return fmt.Sprintf("%s\n__verdict.call(%q, %s)", domScript, fn, encoded), nil
}

// ScrollIntoView centers the element in its viewport.
func (r *Resolver) ScrollIntoView(ctx context.Context, m *Match) error {
	return r.call(ctx, m.Frame.ID, "scrollIntoView", nil, m.Ref)
}

// Rect returns the element's box, or nil when it has no layout.
func (r *Resolver) Rect(ctx context.Context, m *Match) (*Rect, error) {
	var rect *Rect
	if err := r.call(ctx, m.Frame.ID, "rect", &rect, m.Ref); err != nil {
		return nil, err
	}
	return rect, nil
}

// Click activates the element through the DOM.
func (r *Resolver) Click(ctx context.Context, m *Match) error {
	return r.call(ctx, m.Frame.ID, "click", nil, m.Ref)
}

// Fill assigns value and dispatches input and change events.
func (r *Resolver) Fill(ctx context.Context, m *Match, value string) error {
	return r.call(ctx, m.Frame.ID, "fill", nil, m.Ref, value)
}

// Choose picks the first option whose text or value contains value,
// case-insensitively. It reports false when no option matched.
func (r *Resolver) Choose(ctx context.Context, m *Match, value string) (bool, error) {
	var ok bool
	err := r.call(ctx, m.Frame.ID, "choose", &ok, m.Ref, value)
	return ok, err
}

// Visible reports whether the element is rendered and not hidden by style.
func (r *Resolver) Visible(ctx context.Context, m *Match) (bool, error) {
	var ok bool
	err := r.call(ctx, m.Frame.ID, "visible", &ok, m.Ref)
	return ok, err
}
