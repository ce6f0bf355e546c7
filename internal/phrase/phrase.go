// Package phrase compiles the sentence patterns shared by the instruction parser
// and the step registry.
//
// A pattern is written as plain text with two kinds of placeholders:
//
//	{name}            an argument that may be 'single quoted', "double quoted" or bare
//	(?P<name>...)     an ordinary named regular expression group
//
// Patterns are anchored at both ends and matched case-insensitively. Quoted
// arguments keep their inner text verbatim; bare arguments are trimmed, and a
// bare argument that embeds a quoted label ("the 'Login' button") is reduced
// to that label.
package phrase

import (
	"fmt"
	"regexp"
	"strings"
)

var argToken = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z0-9]*)\}`)

// variants of a quoted-or-bare argument, in match priority order.
var variants = []string{"sq", "dq", "raw"}

// quotedLabel finds the first quoted span that starts and ends on a word
// boundary, so apostrophes inside words ("Don't") do not close it.
var quotedLabel = regexp.MustCompile(`(?:^|\s)'(.+?)'(?:\s|$)|(?:^|\s)"(.+?)"(?:\s|$)`)

// unquote reduces a bare capture to the quoted label it carries, if any.
func unquote(val string) string {
	val = strings.TrimSpace(val)
	m := quotedLabel.FindStringSubmatch(val)
	switch {
	case m == nil:
		return val
	case m[1] != "":
		return m[1]
	default:
		return m[2]
	}
}

// Pattern is a compiled phrasing.
type Pattern struct {
	source string
	re     *regexp.Regexp
	args   []string
	groups []string
}

// Compile builds a Pattern from its source text.
func Compile(source string) (*Pattern, error) {
	var args []string
	expanded := argToken.ReplaceAllStringFunc(source, func(tok string) string {
		name := argToken.FindStringSubmatch(tok)[1]
		args = append(args, name)
		return fmt.Sprintf(`(?:'(?P<%[1]s__sq>[^']*)'|"(?P<%[1]s__dq>[^"]*)"|(?P<%[1]s__raw>.+?))`, name)
	})

	re, err := regexp.Compile(`(?i)^` + expanded + `$`)
	if err != nil {
		return nil, fmt.Errorf("phrase: invalid pattern %q: %w", source, err)
	}

	p := &Pattern{source: source, re: re, args: args}
	for _, name := range re.SubexpNames() {
		if name != "" && !strings.Contains(name, "__") {
			p.groups = append(p.groups, name)
		}
	}
	return p, nil
}

// MustCompile is like Compile but panics on an invalid pattern. Catalogues are
// package-level literals, so a bad pattern is a programming error.
func MustCompile(source string) *Pattern {
	p, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern source.
func (p *Pattern) String() string { return p.source }

// Args holds the captured values of a successful match, keyed by placeholder or
// group name. Groups that did not participate are absent.
type Args map[string]string

// Get returns the named capture, or "" when absent.
func (a Args) Get(name string) string { return a[name] }

// Has reports whether the named capture participated in the match.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Match tests text against the pattern. Runs of whitespace in text are treated
// as a single space.
func (p *Pattern) Match(text string) (Args, bool) {
	text = strings.Join(strings.Fields(text), " ")
	idx := p.re.FindStringSubmatchIndex(text)
	if idx == nil {
		return nil, false
	}
	group := func(name string) (string, bool) {
		i := p.re.SubexpIndex(name)
		if i < 0 || idx[2*i] < 0 {
			return "", false
		}
		return text[idx[2*i]:idx[2*i+1]], true
	}

	args := make(Args, len(p.args)+len(p.groups))
	for _, name := range p.args {
		for _, v := range variants {
			if val, ok := group(name + "__" + v); ok {
				if v == "raw" {
					val = unquote(val)
				}
				args[name] = val
				break
			}
		}
	}
	for _, name := range p.groups {
		if val, ok := group(name); ok {
			args[name] = val
		}
	}
	return args, true
}

// Quote renders a value as a step argument: single quotes unless the value
// itself contains a single quote and no double quote.
func Quote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}

var templateToken = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z0-9]*)\}|<([a-zA-Z][a-zA-Z0-9]*)>`)

// Expand fills a template: {name} is replaced by the quoted argument and <name>
// by the raw argument.
func Expand(template string, args Args) string {
	return templateToken.ReplaceAllStringFunc(template, func(tok string) string {
		m := templateToken.FindStringSubmatch(tok)
		if m[1] != "" {
			return Quote(args.Get(m[1]))
		}
		return args.Get(m[2])
	})
}
