package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/engine"
	"github.com/ma5311943-dotcom/testing-tool/internal/mocks"
	"github.com/ma5311943-dotcom/testing-tool/internal/scenario"
)

func TestExecFeature(t *testing.T) {
	cfg := config.NewDefaultConfig()

	t.Run("session failure fails the run with a summary", func(t *testing.T) {
		sessions := new(mocks.MockSessionFactory)
		sessions.On("NewSession", mock.Anything).Return(nil, errors.New("no chrome"))
		path := writeFile(t, "run.feature", "Feature: Shop\n  Scenario: Home\n    Given I am on 'https://shop.test'\n")

		var out bytes.Buffer
		err := execFeature(context.Background(), &out, cfg, zap.NewNop(), path, sessions)

		assert.Equal(t, 1, ExitCode(err))
		assert.Contains(t, out.String(), "browser session could not start: no chrome")
		sum, ok := engine.ParseSummary(out.String())
		require.True(t, ok)
		assert.Equal(t, 1, sum.Failed)
	})

	t.Run("missing file", func(t *testing.T) {
		err := execFeature(context.Background(), &bytes.Buffer{}, cfg, zap.NewNop(), filepath.Join(t.TempDir(), "x.feature"), new(mocks.MockSessionFactory))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read feature file")
	})

	t.Run("document without navigation", func(t *testing.T) {
		path := writeFile(t, "run.feature", "Feature: Shop\n  Scenario: Home\n    Then I should see 'Shop'\n")
		err := execFeature(context.Background(), &bytes.Buffer{}, cfg, zap.NewNop(), path, new(mocks.MockSessionFactory))
		assert.ErrorIs(t, err, scenario.ErrNoNavigation)
	})
}
