// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
	"github.com/ma5311943-dotcom/testing-tool/internal/browser"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/engine"
	"github.com/ma5311943-dotcom/testing-tool/internal/orchestrator"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Timings() config.Timings {
	args := m.Called()
	return args.Get(0).(config.Timings)
}

func (m *MockConfig) Runner() config.RunnerConfig {
	args := m.Called()
	return args.Get(0).(config.RunnerConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

// -- Browser Session Mocks --

// MockSessionFactory implements engine.SessionFactory.
type MockSessionFactory struct {
	mock.Mock
}

var _ engine.SessionFactory = (*MockSessionFactory)(nil)

func (m *MockSessionFactory) NewSession(ctx context.Context) (engine.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(engine.Session), args.Error(1)
}

// MockSession implements engine.Session. Tests only need to set expectations
// for the methods their steps actually touch.
type MockSession struct {
	mock.Mock
}

var _ engine.Session = (*MockSession)(nil)

func (m *MockSession) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSession) Frames(ctx context.Context) ([]browser.Frame, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]browser.Frame), args.Error(1)
}

func (m *MockSession) EvaluateIn(ctx context.Context, frameID, expr string, out interface{}) error {
	return m.Called(ctx, frameID, expr, out).Error(0)
}

func (m *MockSession) Evaluate(ctx context.Context, expr string, out interface{}) error {
	return m.Called(ctx, expr, out).Error(0)
}

func (m *MockSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockSession) WaitBody(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSession) WaitReady(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockSession) WaitVisible(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockSession) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) ClickAt(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockSession) ClickSelector(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockSession) SendKeys(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *MockSession) SetValue(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *MockSession) PressKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockSession) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSession) SetViewport(ctx context.Context, width, height int64) error {
	return m.Called(ctx, width, height).Error(0)
}

// -- Orchestrator Mock --

// MockRunner mocks the orchestrator as seen by the HTTP server.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Prepare(req schemas.RunRequest) (*orchestrator.Prepared, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.Prepared), args.Error(1)
}

func (m *MockRunner) Execute(ctx context.Context, p *orchestrator.Prepared) orchestrator.Result {
	args := m.Called(ctx, p)
	return args.Get(0).(orchestrator.Result)
}
