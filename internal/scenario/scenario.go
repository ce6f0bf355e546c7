// Package scenario assembles structured steps into the canonical feature document
// executed by the runner, and loads such documents back for execution.
package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ma5311943-dotcom/testing-tool/internal/instruction"
	"github.com/ma5311943-dotcom/testing-tool/internal/phrase"
)

const (
	FeatureTitle  = "Quality Analysis"
	ScenarioTitle = "Automated Verification"
)

var (
	// ErrNoNavigation rejects a scenario that does not start on a page.
	ErrNoNavigation = errors.New("scenario has no leading navigation step ('Given I am on ...')")
	// ErrEmpty rejects a document without any scenario.
	ErrEmpty = errors.New("document contains no scenarios")
)

var (
	keywordPrefix = regexp.MustCompile(`(?i)^(given|when|then|and|but|\*)\s+`)
	navigation    = phrase.MustCompile(`I am on {url}`)
)

// Scenario is an ordered sequence of structured steps bound to a target URL.
// Steps[0] is always the single navigation step.
type Scenario struct {
	TargetURL string
	Steps     []string
}

// SplitKeyword separates a structured step into its keyword and sentence. The
// keyword is "" when the step has none.
func SplitKeyword(step string) (keyword, text string) {
	step = strings.TrimSpace(step)
	loc := keywordPrefix.FindStringIndex(step)
	if loc == nil {
		return "", step
	}
	return strings.TrimSpace(step[:loc[1]]), strings.TrimSpace(step[loc[1]:])
}

// NavigationTarget reports the URL of a navigation sentence ("I am on X").
func NavigationTarget(text string) (string, bool) {
	args, ok := navigation.Match(text)
	if !ok {
		return "", false
	}
	return args.Get("url"), true
}

// FromSteps builds a scenario from structured steps. A navigation step to
// targetURL is placed first and every navigation step in steps is dropped. When
// targetURL is empty the first navigation step in steps supplies it.
func FromSteps(targetURL string, steps []string) (*Scenario, error) {
	targetURL = strings.TrimSpace(targetURL)
	body := make([]string, 0, len(steps))
	for _, raw := range steps {
		kw, text := SplitKeyword(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if url, ok := NavigationTarget(text); ok {
			if targetURL == "" {
				targetURL = url
			}
			continue
		}
		if kw == "" || kw == "*" {
			kw = "And"
		}
		body = append(body, kw+" "+text)
	}
	if targetURL == "" {
		return nil, ErrNoNavigation
	}

	return &Scenario{
		TargetURL: targetURL,
		Steps:     append([]string{"Given I am on " + phrase.Quote(targetURL)}, body...),
	}, nil
}

// FromInstructions builds a scenario from parsed free-text instructions. Any
// unrecognized instruction rejects the whole scenario.
func FromInstructions(targetURL string, ins []instruction.Instruction) (*Scenario, error) {
	if err := instruction.Check(ins); err != nil {
		return nil, err
	}
	return FromSteps(targetURL, instruction.Steps(ins))
}

// FromTriple builds a scenario from a single Given/When/Then. A Given that is a
// navigation step becomes the leading step; any other Given follows it as an And.
func FromTriple(targetURL, given, when, then string) (*Scenario, error) {
	var steps []string
	if given = strings.TrimSpace(given); given != "" {
		_, text := SplitKeyword(given)
		if url, ok := NavigationTarget(text); ok {
			if strings.TrimSpace(targetURL) == "" {
				targetURL = url
			}
		} else {
			steps = append(steps, withKeyword("And", given))
		}
	}
	if when = strings.TrimSpace(when); when != "" {
		steps = append(steps, withKeyword("When", when))
	}
	if then = strings.TrimSpace(then); then != "" {
		steps = append(steps, withKeyword("Then", then))
	}
	return FromSteps(targetURL, steps)
}

func withKeyword(kw, step string) string {
	if k, _ := SplitKeyword(step); k != "" {
		return step
	}
	return kw + " " + step
}

// Render returns the canonical feature document.
func (s *Scenario) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Feature: %s\n\n", FeatureTitle)
	fmt.Fprintf(&b, "  Scenario: %s\n", ScenarioTitle)
	for _, step := range s.Steps {
		b.WriteString("    ")
		b.WriteString(step)
		b.WriteByte('\n')
	}
	return b.String()
}
