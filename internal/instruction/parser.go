// Package instruction turns free-form imperative sentences ("Click 'Login'",
// "Type admin in #user") into structured behavior steps.
package instruction

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/ma5311943-dotcom/testing-tool/internal/phrase"
)

// Intent names what a recognized instruction asks for.
type Intent string

const (
	IntentStructured  Intent = "structured"
	IntentNavigate    Intent = "navigate"
	IntentClick       Intent = "click"
	IntentFill        Intent = "fill"
	IntentSelect      Intent = "select"
	IntentPressKey    Intent = "press-key"
	IntentWait        Intent = "wait"
	IntentWaitVisible Intent = "wait-visible"
	IntentTitle       Intent = "assert-title"
	IntentSeeText     Intent = "assert-text"
	IntentScroll      Intent = "scroll"
	IntentScreenshot  Intent = "screenshot"
	IntentUnknown     Intent = "unrecognized"
)

// Instruction is the immutable result of parsing one input line.
type Instruction struct {
	OriginalText   string `json:"originalText"`
	Recognized     bool   `json:"recognized"`
	Intent         Intent `json:"intent"`
	StructuredStep string `json:"structuredStep,omitempty"`
	// Diagnostic replaces StructuredStep for unrecognized lines.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// template is one entry of the phrasing catalogue.
type template struct {
	intent  Intent
	pattern *phrase.Pattern
	step    string
}

var canonicalKeyword = regexp.MustCompile(`(?i)^(given|when|then|and|but)\s`)

// keyNames are the keys that "press X" treats as a keyboard key rather than a button.
const keyNames = `enter|return|tab|escape|esc|space|spacebar|backspace|delete|del|home|end|` +
	`page ?up|page ?down|arrow ?up|arrow ?down|arrow ?left|arrow ?right|up|down|left|right|f[1-9]|f1[0-2]`

// catalogue is evaluated top-down and the first match wins. Entries that share a
// leading verb with a more generic entry must come first ("select X as Y" before
// "select X", "press Enter" before "press Submit", "check the title" before
// "check X").
var catalogue = []template{
	{IntentSelect, phrase.MustCompile(`(?:select|choose|pick) {target} as {value}`), "When I select {target} as {value}"},
	{IntentSelect, phrase.MustCompile(`(?:select|choose|pick) {value} (?:from|in) (?:the )?{target}`), "When I select {value} from {target}"},
	{IntentFill, phrase.MustCompile(`(?:add|put|input|type|enter) {target} as {value}`), "When I enter {target} as {value}"},
	{IntentFill, phrase.MustCompile(`(?:type|enter|input|write) {value} (?:in|into|at|inside) (?:the )?{target}`), "When I enter {value} into {target}"},
	{IntentFill, phrase.MustCompile(`fill (?:in )?(?:the )?{target} with {value}`), "When I enter {value} into {target}"},
	{IntentTitle, phrase.MustCompile(`(?:verify|check|ensure|expect|assert) (?:that )?(?:the )?(?:page )?title (?:is|to be|should be|equals) {title}`), "Then the title should be {title}"},
	{IntentWaitVisible, phrase.MustCompile(`(?:wait for|wait until|ensure|expect) (?:the )?(?:element |selector )?{target} (?:is |to be )?(?:visible|present|loaded)`), "When I wait for element {target} to be visible"},
	{IntentWait, phrase.MustCompile(`(?:wait|sleep|pause) (?:for )?(?P<seconds>\d+) ?(?:s|sec|secs|second|seconds)?`), "When I wait for <seconds> seconds"},
	{IntentSeeText, phrase.MustCompile(`(?:should see|i should be navigated to|should be navigated to|see|verify|check|expect|assert|find|is now|contains) (?:that )?(?:text |to |at |on |the )?{text}`), "Then I should see {text}"},
	{IntentScroll, phrase.MustCompile(`(?:scroll|move|go) (?:down )?(?:to )?(?:the )?(?:bottom|end)(?: of the page)?`), "When I scroll to the bottom"},
	{IntentNavigate, phrase.MustCompile(`(?:open|go|navigate|visit|browse|load) (?:to )?(?:the website |the page |the url )?{url}`), "Given I am on {url}"},
	{IntentPressKey, phrase.MustCompile(`(?:press|hit) (?:the )?['"]?(?P<key>` + keyNames + `)['"]?(?: key)?`), "When I press {key}"},
	{IntentPressKey, phrase.MustCompile(`(?:press|hit) (?:the )?{key} key`), "When I press {key}"},
	{IntentClick, phrase.MustCompile(`(?:click|press|hit|tap|select) (?:on |at )?(?:the )?{target}`), "When I click on {target}"},
	{IntentScroll, phrase.MustCompile(`(?:scroll|move|go) (?:down )?to {target}`), "When I scroll to {target}"},
	{IntentScreenshot, phrase.MustCompile(`(?:take a screenshot|take screenshot|screenshot|snap|capture|take a photo) (?:as |named |of )?{name}`), "Then I take a screenshot {name}"},
	{IntentScreenshot, phrase.MustCompile(`(?:take a |take )?(?:screenshot|snapshot)`), "Then I take a screenshot 'screenshot'"},
}

// Parse converts one trimmed, non-empty line into an Instruction. It is pure and
// deterministic.
func Parse(line string) Instruction {
	line = strings.TrimSpace(line)

	if canonicalKeyword.MatchString(line) {
		return Instruction{
			OriginalText:   line,
			Recognized:     true,
			Intent:         IntentStructured,
			StructuredStep: line,
		}
	}

	// A leading first-person "I" is optional: "I click Login" reads as "click Login".
	candidates := []string{line}
	if len(line) > 2 && strings.EqualFold(line[:2], "i ") {
		candidates = append(candidates, strings.TrimSpace(line[2:]))
	}
	for _, text := range candidates {
		for _, tpl := range catalogue {
			if args, ok := tpl.pattern.Match(text); ok {
				return Instruction{
					OriginalText:   line,
					Recognized:     true,
					Intent:         tpl.intent,
					StructuredStep: phrase.Expand(tpl.step, args),
				}
			}
		}
	}

	return Instruction{
		OriginalText: line,
		Recognized:   false,
		Intent:       IntentUnknown,
		Diagnostic:   "# Unrecognized step: " + line,
	}
}

// ParseText parses every non-blank line of text, in order.
func ParseText(text string) []Instruction {
	var out []Instruction
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, Parse(line))
	}
	return out
}

// ParseError reports every instruction that could not be mapped to a step.
type ParseError struct {
	Lines []UnrecognizedLine
}

// UnrecognizedLine identifies one rejected instruction by its 1-based position.
type UnrecognizedLine struct {
	Number int
	Text   string
}

func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("line %d: %q", l.Number, l.Text))
	}
	return fmt.Sprintf("%d unrecognized instruction(s): %s", len(e.Lines), strings.Join(parts, "; "))
}

// Check returns a *ParseError when any instruction is unrecognized.
func Check(instructions []Instruction) error {
	var bad []UnrecognizedLine
	for i, in := range instructions {
		if !in.Recognized {
			bad = append(bad, UnrecognizedLine{Number: i + 1, Text: in.OriginalText})
		}
	}
	if len(bad) > 0 {
		return &ParseError{Lines: bad}
	}
	return nil
}

// Steps returns the structured steps of recognized instructions, in order.
func Steps(instructions []Instruction) []string {
	steps := make([]string, 0, len(instructions))
	for _, in := range instructions {
		if in.Recognized {
			steps = append(steps, in.StructuredStep)
		}
	}
	return steps
}
