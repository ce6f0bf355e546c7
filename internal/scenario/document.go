package scenario

import (
	"errors"
	"fmt"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/ma5311943-dotcom/testing-tool/internal/instruction"
)

// documentURI names in-memory documents in pickle metadata.
const documentURI = "scenario.feature"

// Step is one executable step of a loaded document.
type Step struct {
	Keyword string
	Text    string
	Line    int64
}

// String renders the step the way it appears in the document.
func (s Step) String() string {
	if s.Keyword == "" {
		return s.Text
	}
	return s.Keyword + " " + s.Text
}

// Case is one executable scenario: background steps merged and outline rows expanded.
type Case struct {
	Name  string
	Steps []Step
}

// Document is a validated feature document ready for execution.
type Document struct {
	Source  string
	Feature string
	Cases   []Case
}

// StepCount is the number of steps across all cases.
func (d *Document) StepCount() int {
	n := 0
	for _, c := range d.Cases {
		n += len(c.Steps)
	}
	return n
}

// Load parses a feature document and checks that every case begins with a
// navigation step.
func Load(source string) (*Document, error) {
	newID := (&messages.Incrementing{}).NewId
	gd, err := gherkin.ParseGherkinDocument(strings.NewReader(source), newID)
	if err != nil {
		return nil, fmt.Errorf("invalid feature document: %w", err)
	}
	if gd.Feature == nil {
		return nil, ErrEmpty
	}

	astSteps := make(map[string]*messages.Step)
	collect := func(steps []*messages.Step) {
		for _, s := range steps {
			astSteps[s.Id] = s
		}
	}
	for _, child := range gd.Feature.Children {
		switch {
		case child.Background != nil:
			collect(child.Background.Steps)
		case child.Scenario != nil:
			collect(child.Scenario.Steps)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Background != nil {
					collect(rc.Background.Steps)
				}
				if rc.Scenario != nil {
					collect(rc.Scenario.Steps)
				}
			}
		}
	}

	doc := &Document{Source: source, Feature: gd.Feature.Name}
	for _, p := range gherkin.Pickles(*gd, documentURI, newID) {
		c := Case{Name: p.Name}
		for _, ps := range p.Steps {
			step := Step{Text: ps.Text}
			if len(ps.AstNodeIds) > 0 {
				if ast, ok := astSteps[ps.AstNodeIds[0]]; ok {
					step.Keyword = strings.TrimSpace(ast.Keyword)
					if ast.Location != nil {
						step.Line = ast.Location.Line
					}
				}
			}
			c.Steps = append(c.Steps, step)
		}
		doc.Cases = append(doc.Cases, c)
	}

	if len(doc.Cases) == 0 {
		return nil, ErrEmpty
	}
	for _, c := range doc.Cases {
		if len(c.Steps) == 0 {
			return nil, fmt.Errorf("scenario %q: %w", c.Name, ErrNoNavigation)
		}
		if _, ok := NavigationTarget(c.Steps[0].Text); !ok {
			return nil, fmt.Errorf("scenario %q: %w", c.Name, ErrNoNavigation)
		}
	}
	return doc, nil
}

// Request describes a scenario in any of the accepted forms. Exactly one form is
// used, in this precedence: Document, Instructions, Steps, Given/When/Then.
type Request struct {
	TargetURL    string
	Document     string
	Instructions string
	Steps        []string
	Given        string
	When         string
	Then         string
}

// ErrNoSteps rejects a request that carries nothing to execute.
var ErrNoSteps = errors.New("request has no steps, instructions, document or given/when/then")

// Compile turns a request into a validated document. Compiled scenarios are
// rendered and loaded again, so every form passes the same validation.
func Compile(req Request) (*Document, error) {
	if strings.TrimSpace(req.Document) != "" {
		return Load(req.Document)
	}

	var (
		s   *Scenario
		err error
	)
	switch {
	case strings.TrimSpace(req.Instructions) != "":
		s, err = FromInstructions(req.TargetURL, instruction.ParseText(req.Instructions))
	case len(req.Steps) > 0:
		s, err = FromSteps(req.TargetURL, req.Steps)
	case req.Given != "" || req.When != "" || req.Then != "":
		s, err = FromTriple(req.TargetURL, req.Given, req.When, req.Then)
	default:
		return nil, ErrNoSteps
	}
	if err != nil {
		return nil, err
	}
	return Load(s.Render())
}
