package scenario

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ma5311943-dotcom/testing-tool/internal/instruction"
)

func TestSplitKeyword(t *testing.T) {
	tests := []struct {
		in, kw, text string
	}{
		{"Given I am on 'x'", "Given", "I am on 'x'"},
		{"  and   I click on 'a'", "and", "I click on 'a'"},
		{"* I wait for 2 seconds", "*", "I wait for 2 seconds"},
		{"I click on 'Thenable'", "", "I click on 'Thenable'"},
		{"Thenable", "", "Thenable"},
	}
	for _, tt := range tests {
		kw, text := SplitKeyword(tt.in)
		assert.Equal(t, tt.kw, kw, tt.in)
		assert.Equal(t, tt.text, text, tt.in)
	}
}

func TestFromStepsNavigationInvariant(t *testing.T) {
	s, err := FromSteps("https://example.test/login", []string{
		"Given I am on 'https://example.test/login'",
		"When I enter 'alice' into 'username'",
		"And I am on 'https://example.test/elsewhere'",
		"I click on 'Sign In'",
		"",
		"Then I should see 'Welcome'",
	})
	require.NoError(t, err)

	want := []string{
		"Given I am on 'https://example.test/login'",
		"When I enter 'alice' into 'username'",
		"And I click on 'Sign In'",
		"Then I should see 'Welcome'",
	}
	if diff := cmp.Diff(want, s.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestFromStepsTakesURLFromSteps(t *testing.T) {
	s, err := FromSteps("", []string{"Then I should see 'x'", `Given I am on "https://a.test"`})
	require.NoError(t, err)
	assert.Equal(t, "https://a.test", s.TargetURL)
	assert.Equal(t, "Given I am on 'https://a.test'", s.Steps[0])
	assert.Equal(t, "Then I should see 'x'", s.Steps[1])
}

func TestFromStepsRequiresNavigation(t *testing.T) {
	_, err := FromSteps("", []string{"When I click on 'Login'"})
	assert.ErrorIs(t, err, ErrNoNavigation)
}

func TestFromInstructionsPreservesOrder(t *testing.T) {
	ins := instruction.ParseText("Go to https://example.test\nClick 'A'\nGo to https://example.test\nClick 'B'\nVerify 'C'")
	s, err := FromInstructions("https://example.test", ins)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Given I am on 'https://example.test'",
		"When I click on 'A'",
		"When I click on 'B'",
		"Then I should see 'C'",
	}, s.Steps)
}

func TestFromInstructionsRejectsUnrecognized(t *testing.T) {
	ins := instruction.ParseText("Click 'A'\nfrobnicate the widget")
	_, err := FromInstructions("https://example.test", ins)
	var perr *instruction.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Lines[0].Number)
}

func TestFromTriple(t *testing.T) {
	t.Run("navigation given", func(t *testing.T) {
		s, err := FromTriple("", "I am on 'https://shop.test'", "I wait for 10 seconds", "the title should not be empty")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Given I am on 'https://shop.test'",
			"When I wait for 10 seconds",
			"Then the title should not be empty",
		}, s.Steps)
	})

	t.Run("non navigation given follows the navigation", func(t *testing.T) {
		s, err := FromTriple("https://shop.test", "I set viewport to '375x812'", "I click on 'Menu'", "")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Given I am on 'https://shop.test'",
			"And I set viewport to '375x812'",
			"When I click on 'Menu'",
		}, s.Steps)
	})

	t.Run("request url wins over given url", func(t *testing.T) {
		s, err := FromTriple("https://a.test", "I am on 'https://b.test'", "", "I should see 'x'")
		require.NoError(t, err)
		assert.Equal(t, "Given I am on 'https://a.test'", s.Steps[0])
		assert.Len(t, s.Steps, 2)
	})
}

func TestRender(t *testing.T) {
	s := &Scenario{TargetURL: "https://x.test", Steps: []string{"Given I am on 'https://x.test'", "Then I should see 'Hi'"}}
	want := "Feature: Quality Analysis\n\n" +
		"  Scenario: Automated Verification\n" +
		"    Given I am on 'https://x.test'\n" +
		"    Then I should see 'Hi'\n"
	assert.Equal(t, want, s.Render())
}
