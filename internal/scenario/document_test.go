package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRenderedScenario(t *testing.T) {
	s, err := FromSteps("https://example.test", []string{"When I click on 'Go'", "Then I should see 'Done'"})
	require.NoError(t, err)

	doc, err := Load(s.Render())
	require.NoError(t, err)
	assert.Equal(t, FeatureTitle, doc.Feature)
	require.Len(t, doc.Cases, 1)

	c := doc.Cases[0]
	assert.Equal(t, ScenarioTitle, c.Name)
	require.Len(t, c.Steps, 3)
	assert.Equal(t, Step{Keyword: "Given", Text: "I am on 'https://example.test'", Line: 4}, c.Steps[0])
	assert.Equal(t, "When I click on 'Go'", c.Steps[1].String())
	assert.Equal(t, 3, doc.StepCount())
}

func TestLoadMergesBackgroundAndExpandsOutlines(t *testing.T) {
	src := `Feature: Shop

  Background:
    Given I am on 'https://shop.test'

  Scenario: Cart
    When I click on 'Cart'
    Then I should see 'Empty'

  Scenario Outline: Search
    When I enter '<term>' into 'search'
    Then I should see '<term>'

    Examples:
      | term  |
      | shoes |
      | hats  |
`
	doc, err := Load(src)
	require.NoError(t, err)
	require.Len(t, doc.Cases, 3)

	for _, c := range doc.Cases {
		assert.Equal(t, "I am on 'https://shop.test'", c.Steps[0].Text)
	}
	assert.Equal(t, "I enter 'shoes' into 'search'", doc.Cases[1].Steps[1].Text)
	assert.Equal(t, "I should see 'hats'", doc.Cases[2].Steps[2].Text)
	assert.Equal(t, 9, doc.StepCount())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "no navigation",
			src:  "Feature: F\n  Scenario: S\n    When I click on 'x'\n",
			want: ErrNoNavigation,
		},
		{
			name: "navigation not first",
			src:  "Feature: F\n  Scenario: S\n    When I click on 'x'\n    Given I am on 'https://a.test'\n",
			want: ErrNoNavigation,
		},
		{
			name: "no scenarios",
			src:  "Feature: F\n",
			want: ErrEmpty,
		},
		{
			name: "no feature",
			src:  "# just a comment\n",
			want: ErrEmpty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.src)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Load("this is not gherkin\n  at all:")
	assert.Error(t, err)

	// A scenario without steps never reaches execution, whichever check catches it.
	_, err = Load("Feature: F\n  Scenario: S\n")
	assert.Error(t, err)
}

func TestCompile(t *testing.T) {
	t.Run("instructions", func(t *testing.T) {
		doc, err := Compile(Request{TargetURL: "https://a.test", Instructions: "Click 'Login'\nVerify 'Hi'"})
		require.NoError(t, err)
		assert.Equal(t, 3, doc.StepCount())
	})

	t.Run("document takes precedence", func(t *testing.T) {
		doc, err := Compile(Request{
			TargetURL: "https://ignored.test",
			Document:  "Feature: F\n  Scenario: S\n    Given I am on 'https://a.test'\n",
			Steps:     []string{"When I click on 'x'"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, doc.StepCount())
	})

	t.Run("triple", func(t *testing.T) {
		doc, err := Compile(Request{TargetURL: "https://a.test", When: "I wait for 1 seconds"})
		require.NoError(t, err)
		assert.Equal(t, "I wait for 1 seconds", doc.Cases[0].Steps[1].Text)
	})

	t.Run("nothing to run", func(t *testing.T) {
		_, err := Compile(Request{TargetURL: "https://a.test"})
		assert.ErrorIs(t, err, ErrNoSteps)
	})

	t.Run("precomposed document without navigation", func(t *testing.T) {
		_, err := Compile(Request{Document: "Feature: F\n  Scenario: S\n    Then I should see 'x'\n"})
		assert.ErrorIs(t, err, ErrNoNavigation)
	})
}
