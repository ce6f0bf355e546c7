package engine_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/engine"
	"github.com/ma5311943-dotcom/testing-tool/internal/mocks"
	"github.com/ma5311943-dotcom/testing-tool/internal/phrase"
	"github.com/ma5311943-dotcom/testing-tool/internal/scenario"
	"github.com/ma5311943-dotcom/testing-tool/internal/steps"
)

// -- Test Steps --

// scriptedStep is a step whose outcome the test decides.
type scriptedStep struct {
	err   error
	block bool
	ran   *[]string
	name  string
}

func (scriptedStep) Kind() steps.Kind                    { return "scripted" }
func (scriptedStep) Budget(config.Timings) time.Duration { return time.Second }
func (s scriptedStep) Run(ctx context.Context, _ *steps.Env) error {
	*s.ran = append(*s.ran, s.name)
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

// testRegistry puts a few scripted phrasings in front of the real library.
func testRegistry(ran *[]string) *steps.Registry {
	scripted := func(source string, step scriptedStep) steps.Definition {
		step.ran, step.name = ran, source
		return steps.Definition{
			Pattern: phrase.MustCompile(source),
			Bind:    func(phrase.Args) (steps.Step, error) { return step, nil },
		}
	}
	defs := []steps.Definition{
		scripted("I do something", scriptedStep{}),
		scripted("I break something", scriptedStep{err: errors.New("VERIFICATION FAILED: it broke")}),
		scripted("I hang", scriptedStep{block: true}),
	}
	return steps.NewRegistry(append(defs, steps.Definitions()...))
}

func testConfig(stepTimeout time.Duration) *mocks.MockConfig {
	cfg := new(mocks.MockConfig)
	cfg.On("Timings").Return(config.Timings{
		NavigationTimeout: time.Second,
		BodyTimeout:       time.Second,
		PollInterval:      time.Millisecond,
	})
	cfg.On("Runner").Return(config.RunnerConfig{StepTimeout: stepTimeout, ScreenshotDir: "unused"})
	return cfg
}

func navigableSession() *mocks.MockSession {
	s := new(mocks.MockSession)
	s.On("Navigate", mock.Anything, "https://shop.test").Return(nil)
	s.On("WaitBody", mock.Anything).Return(nil)
	s.On("Close", mock.Anything).Return(nil)
	return s
}

func load(t *testing.T, source string) *scenario.Document {
	t.Helper()
	doc, err := scenario.Load(source)
	require.NoError(t, err)
	return doc
}

type fixture struct {
	runner   *engine.Runner
	sessions *mocks.MockSessionFactory
	out      *bytes.Buffer
	ran      []string
}

func newFixture(t *testing.T, stepTimeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{sessions: new(mocks.MockSessionFactory), out: &bytes.Buffer{}}
	runner, err := engine.New(testConfig(stepTimeout), zap.NewNop(), testRegistry(&f.ran), f.sessions, f.out)
	require.NoError(t, err)
	f.runner = runner
	return f
}

// -- Test Suite --

func TestNew_ValidatesDependencies(t *testing.T) {
	cfg := testConfig(time.Second)
	reg := steps.DefaultRegistry()
	sessions := new(mocks.MockSessionFactory)
	out := &bytes.Buffer{}

	_, err := engine.New(nil, zap.NewNop(), reg, sessions, out)
	assert.EqualError(t, err, "config cannot be nil")
	_, err = engine.New(cfg, nil, reg, sessions, out)
	assert.EqualError(t, err, "logger cannot be nil")
	_, err = engine.New(cfg, zap.NewNop(), nil, sessions, out)
	assert.EqualError(t, err, "step registry cannot be nil")
	_, err = engine.New(cfg, zap.NewNop(), reg, nil, out)
	assert.EqualError(t, err, "session factory cannot be nil")
	_, err = engine.New(cfg, zap.NewNop(), reg, sessions, nil)
	assert.EqualError(t, err, "transcript writer cannot be nil")
}

func TestRun_AllScenariosPass(t *testing.T) {
	f := newFixture(t, time.Second)
	first, second := navigableSession(), navigableSession()
	f.sessions.On("NewSession", mock.Anything).Return(first, nil).Once()
	f.sessions.On("NewSession", mock.Anything).Return(second, nil).Once()

	doc := load(t, `Feature: Shop

  Scenario Outline: Browse <n>
    Given I am on 'https://shop.test'
    When I do something

    Examples:
      | n |
      | 1 |
      | 2 |
`)

	sum, err := f.runner.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.True(t, sum.Success())
	assert.Equal(t, 2, sum.Scenarios)
	assert.Equal(t, 4, sum.StepsPassed)
	assert.Equal(t, []string{"I do something", "I do something"}, f.ran)
	first.AssertCalled(t, "Close", mock.Anything)
	second.AssertCalled(t, "Close", mock.Anything)

	transcript := f.out.String()
	assert.Contains(t, transcript, "Feature: Shop")
	assert.Contains(t, transcript, "  Scenario: Browse 1")
	assert.Contains(t, transcript, "✔ Given I am on 'https://shop.test'")
	assert.Contains(t, transcript, "✔ When I do something")
	assert.Contains(t, transcript, "2 scenarios (2 passed)")
	assert.Contains(t, transcript, "4 steps (4 passed)")

	parsed, ok := engine.ParseSummary(transcript)
	require.True(t, ok)
	assert.Equal(t, sum, parsed)
}

func TestRun_FailureSkipsRemainingSteps(t *testing.T) {
	f := newFixture(t, time.Second)
	session := navigableSession()
	f.sessions.On("NewSession", mock.Anything).Return(session, nil).Once()

	doc := load(t, `Feature: Shop
  Scenario: Broken
    Given I am on 'https://shop.test'
    When I break something
    Then I do something
`)

	sum, err := f.runner.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.False(t, sum.Success())
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.StepsSkipped)
	assert.Equal(t, []string{"I break something"}, f.ran)
	session.AssertCalled(t, "Close", mock.Anything)

	transcript := f.out.String()
	assert.Contains(t, transcript, "✖ When I break something\n      VERIFICATION FAILED: it broke")
	assert.Contains(t, transcript, "- Then I do something")
	assert.Contains(t, transcript, "1 scenario (1 failed)")
	assert.Contains(t, transcript, "3 steps (1 failed, 1 skipped, 1 passed)")
}

func TestRun_UndefinedScenarioIsNotExecuted(t *testing.T) {
	f := newFixture(t, time.Second)

	doc := load(t, `Feature: Shop
  Scenario: Vague
    Given I am on 'https://shop.test'
    When I dance wildly
    Then I do something
`)

	sum, err := f.runner.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.False(t, sum.Success())
	assert.Equal(t, 1, sum.Undefined)
	assert.Equal(t, 1, sum.StepsUndefined)
	assert.Empty(t, f.ran)
	f.sessions.AssertNotCalled(t, "NewSession", mock.Anything)

	transcript := f.out.String()
	assert.Contains(t, transcript, "? When I dance wildly\n      "+engine.UndefinedHint)
	assert.Contains(t, transcript, "- Given I am on 'https://shop.test'")
	assert.Contains(t, transcript, "1 scenario (1 undefined)")
}

func TestRun_InvalidArgumentsFailTheScenario(t *testing.T) {
	f := newFixture(t, time.Second)

	doc := load(t, `Feature: Shop
  Scenario: Odd viewport
    Given I am on 'https://shop.test'
    When I set viewport to 'wide'
`)

	sum, err := f.runner.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Failed)
	f.sessions.AssertNotCalled(t, "NewSession", mock.Anything)
	assert.Contains(t, f.out.String(), `✖ When I set viewport to 'wide'`)
	assert.Contains(t, f.out.String(), `is not WIDTHxHEIGHT`)
}

func TestRun_StepTimeout(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.sessions.On("NewSession", mock.Anything).Return(navigableSession(), nil).Once()

	doc := load(t, `Feature: Shop
  Scenario: Slow
    Given I am on 'https://shop.test'
    When I hang
`)

	sum, err := f.runner.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Failed)
	assert.Contains(t, f.out.String(), "step timed out after 20ms")
}

func TestRun_SessionStartFailure(t *testing.T) {
	f := newFixture(t, time.Second)
	f.sessions.On("NewSession", mock.Anything).Return(nil, errors.New("chrome not found")).Once()

	doc := load(t, `Feature: Shop
  Scenario: No browser
    Given I am on 'https://shop.test'
`)

	sum, err := f.runner.Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.StepsSkipped)
	assert.Contains(t, f.out.String(), "✖ browser session could not start: chrome not found")
}

func TestRun_CancelledRunDoesNotStartScenarios(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := load(t, `Feature: Shop
  Scenario: Never
    Given I am on 'https://shop.test'
`)

	sum, err := f.runner.Run(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	f.sessions.AssertNotCalled(t, "NewSession", mock.Anything)
	assert.True(t, strings.Contains(f.out.String(), "run cancelled before scenario started"))
}
