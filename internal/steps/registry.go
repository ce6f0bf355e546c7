package steps

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ma5311943-dotcom/testing-tool/internal/phrase"
)

// Definition pairs a phrasing with the binder that turns its captured
// arguments into a typed step.
type Definition struct {
	Pattern *phrase.Pattern
	Bind    func(args phrase.Args) (Step, error)
}

func def(source string, bind func(args phrase.Args) (Step, error)) Definition {
	return Definition{Pattern: phrase.MustCompile(source), Bind: bind}
}

// fixed binds a phrasing that takes no arguments.
func fixed(source string, step Step) Definition {
	return def(source, func(phrase.Args) (Step, error) { return step, nil })
}

// Registry matches step text against its definitions in order; the first
// matching definition wins.
type Registry struct {
	defs []Definition
}

// NewRegistry builds a registry over defs, in the given order.
func NewRegistry(defs []Definition) *Registry {
	return &Registry{defs: defs}
}

// DefaultRegistry returns the built-in step library.
func DefaultRegistry() *Registry {
	return NewRegistry(Definitions())
}

// Match binds step text (without its keyword) to a step. Text that no
// definition accepts yields an *UndefinedError.
func (r *Registry) Match(text string) (Step, error) {
	for _, d := range r.defs {
		args, ok := d.Pattern.Match(text)
		if !ok {
			continue
		}
		step, err := d.Bind(args)
		if err != nil {
			return nil, fmt.Errorf("invalid arguments in %q: %w", text, err)
		}
		return step, nil
	}
	return nil, &UndefinedError{Text: text}
}

// Phrasings lists the registered pattern sources in match order.
func (r *Registry) Phrasings() []string {
	out := make([]string, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.Pattern.String()
	}
	return out
}

// Definitions returns the step library in match order. More specific
// phrasings precede generic ones that share a prefix ("I scroll to the
// bottom" before "I scroll to X", "the title should not be empty" before
// "the title should be X").
func Definitions() []Definition {
	return []Definition{
		def(`I am on {url}`, func(a phrase.Args) (Step, error) {
			return Navigate{URL: a.Get("url")}, nil
		}),
		def(`I click(?: on)? {target}`, func(a phrase.Args) (Step, error) {
			return Click{Target: a.Get("target")}, nil
		}),
		def(`I (?:enter|type|add|input) (?:the )?{first} (?P<prep>as|into|in) {second}`, func(a phrase.Args) (Step, error) {
			target, value := orient(a)
			return Fill{Target: target, Value: value}, nil
		}),
		def(`I select (?:the )?{first} (?P<prep>as|from|in) {second}`, func(a phrase.Args) (Step, error) {
			target, value := orient(a)
			return Choose{Target: target, Value: value}, nil
		}),
		def(`I should be (?:redirected|navigated) to (?:the )?{target}`, func(a phrase.Args) (Step, error) {
			return ExpectLocation{Target: a.Get("target")}, nil
		}),
		def(`I press (?:the )?{key}(?: key)?`, func(a phrase.Args) (Step, error) {
			return PressKey{Key: a.Get("key")}, nil
		}),
		def(`I wait for (?P<seconds>\d+) seconds?`, func(a phrase.Args) (Step, error) {
			d, err := seconds(a.Get("seconds"))
			if err != nil {
				return nil, err
			}
			return Pause{Duration: d}, nil
		}),
		def(`I wait for element {selector} to be visible`, func(a phrase.Args) (Step, error) {
			return WaitVisible{Selector: a.Get("selector")}, nil
		}),
		fixed(`I scroll to the bottom`, Scroll{}),
		def(`I scroll to {target}`, func(a phrase.Args) (Step, error) {
			return Scroll{Target: a.Get("target")}, nil
		}),
		def(`I set viewport to {size}`, func(a phrase.Args) (Step, error) {
			return parseViewport(a.Get("size"))
		}),
		def(`I (?:take|save) (?:a )?screenshot (?:as |named )?{name}`, func(a phrase.Args) (Step, error) {
			return Screenshot{Name: a.Get("name")}, nil
		}),
		fixed(`I (?:take|save) (?:a )?screenshot`, Screenshot{Name: "screenshot"}),
		fixed(`the title should not be empty`, ExpectTitlePresent{}),
		def(`the title should be {title}`, func(a phrase.Args) (Step, error) {
			return ExpectTitle{Title: a.Get("title")}, nil
		}),
		def(`I (?:should see|see) {text}`, func(a phrase.Args) (Step, error) {
			return ExpectText{Text: a.Get("text")}, nil
		}),
		def(`(?:the )?element {query} should (?:be )?(?P<state>visible|exist)`, func(a phrase.Args) (Step, error) {
			return ExpectElement{Query: a.Get("query"), Visible: strings.EqualFold(a.Get("state"), "visible")}, nil
		}),
		fixed(`all '?(?:img|image)s?'? (?:elements )?should have '?alt'? (?:attributes?|text)`, ExpectImageAlt{}),
		fixed(`there should be exactly one '?h1'? (?:element|tag|heading)`, ExpectSingleH1{}),
		def(`all '?(?P<tag>input|button|a)'? elements should have (?P<check>text content|associated labels)`, func(a phrase.Args) (Step, error) {
			return ExpectLabelCoverage{Tag: strings.ToLower(a.Get("tag")), Check: strings.ToLower(a.Get("check"))}, nil
		}),
		def(`the (?:meta|link)\[(?P<attr>name|property|rel)=['"](?P<value>[^'"]*)['"]\] element should exist`, func(a phrase.Args) (Step, error) {
			return ExpectMetaTag{Attr: strings.ToLower(a.Get("attr")), Value: a.Get("value")}, nil
		}),
		def(`the (?:meta|link) tag with (?P<attr>name|property|rel) {value} should exist`, func(a phrase.Args) (Step, error) {
			return ExpectMetaTag{Attr: strings.ToLower(a.Get("attr")), Value: a.Get("value")}, nil
		}),
		fixed(`(?:all images|the largest image) should be loaded`, ExpectImagesLoaded{}),
		def(`the (?P<landmark>header|footer) should (?:remain|be) visible`, func(a phrase.Args) (Step, error) {
			return ExpectLandmarkVisible{Landmark: strings.ToLower(a.Get("landmark"))}, nil
		}),
		def(`(?:the )?location protocol should be {protocol}`, func(a phrase.Args) (Step, error) {
			return ExpectProtocol{Protocol: a.Get("protocol")}, nil
		}),
		fixed(`external scripts should have '?defer'? or '?async'?`, ExpectScriptsDeferred{}),
		fixed(`images should have loading=['"]?lazy['"]?`, ExpectLazyImages{}),
		fixed(`(?:the )?connection should use compression`, ExpectCompression{}),
		fixed(`page width should fit (?:the )?viewport`, ExpectPageFits{}),
		def(`buttons should be at least (?P<px>\d+) ?px`, func(a phrase.Args) (Step, error) {
			n, err := strconv.Atoi(a.Get("px"))
			if err != nil {
				return nil, err
			}
			return ExpectTouchTargets{MinPx: n}, nil
		}),
		fixed(`the page should be accessible`, AuditAccessibility{}),
		fixed(`text should contrast with (?:the )?background`, AuditAccessibility{Rules: []string{"color-contrast"}}),
		fixed(`site loading speed should be acceptable`, AuditLoadTime{}),
		def(`the page should load within (?P<seconds>\d+) seconds?`, func(a phrase.Args) (Step, error) {
			d, err := seconds(a.Get("seconds"))
			if err != nil {
				return nil, err
			}
			return AuditLoadTime{Threshold: d}, nil
		}),
	}
}

// maxSeconds bounds every duration written in seconds. Longer waits are
// always cut short by the step timeout.
const maxSeconds = 24 * 60 * 60

func seconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n > maxSeconds {
		return 0, fmt.Errorf("%s seconds is out of range (at most %d)", s, maxSeconds)
	}
	return time.Duration(n) * time.Second, nil
}

// orient resolves the two argument orders of fill and select phrasings:
// "X as V" names the target first, "V into|from|in X" names the value first.
func orient(a phrase.Args) (target, value string) {
	if strings.EqualFold(a.Get("prep"), "as") {
		return a.Get("first"), a.Get("second")
	}
	return a.Get("second"), a.Get("first")
}

func parseViewport(size string) (Step, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	if !ok {
		return nil, fmt.Errorf("viewport %q is not WIDTHxHEIGHT", size)
	}
	width, err := strconv.ParseInt(strings.TrimSpace(w), 10, 64)
	if err != nil || width <= 0 {
		return nil, fmt.Errorf("viewport width %q is not a positive integer", w)
	}
	height, err := strconv.ParseInt(strings.TrimSpace(h), 10, 64)
	if err != nil || height <= 0 {
		return nil, fmt.Errorf("viewport height %q is not a positive integer", h)
	}
	return Viewport{Width: width, Height: height}, nil
}
