package mocks

import (
	"mediarelay/shared/observability/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of types.Provider.
type MockProvider struct {
	mock.Mock
}

// NewNopProvider returns a MockProvider handing out nop loggers and
// recorders for any component.
func NewNopProvider() *MockProvider {
	m := &MockProvider{}
	m.On("Logger", mock.Anything).Return(NewNopLogger()).Maybe()
	m.On("Metrics", mock.Anything).Return(NewNopMetrics()).Maybe()
	m.On("Gatherer").Return(prometheus.NewRegistry()).Maybe()
	m.On("Close").Return(nil).Maybe()
	return m
}

// Logger mocks the Logger method
func (m *MockProvider) Logger(component string) types.Logger {
	args := m.Called(component)
	if logger, ok := args.Get(0).(types.Logger); ok {
		return logger
	}
	return nil
}

// Metrics mocks the Metrics method
func (m *MockProvider) Metrics(component string) types.Metrics {
	args := m.Called(component)
	if metrics, ok := args.Get(0).(types.Metrics); ok {
		return metrics
	}
	return nil
}

// Gatherer mocks the Gatherer method
func (m *MockProvider) Gatherer() prometheus.Gatherer {
	args := m.Called()
	if g, ok := args.Get(0).(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.NewRegistry()
}

// Close mocks the Close method
func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}
