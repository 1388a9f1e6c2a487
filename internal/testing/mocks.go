package testing

import (
	"github.com/stretchr/testify/mock"

	"github.com/aristath/allocator/internal/host"
)

// MockHostObject is a testify mock of host.Object
type MockHostObject struct {
	mock.Mock
}

// GetAttr records the call and returns the configured value and error
func (m *MockHostObject) GetAttr(name string) (any, error) {
	args := m.Called(name)
	return args.Get(0), args.Error(1)
}

// SetAttr records the call and returns the configured error
func (m *MockHostObject) SetAttr(name string, value any) error {
	args := m.Called(name, value)
	return args.Error(0)
}

// CallMethod records the call. Positional args are passed to the mock as one slice.
func (m *MockHostObject) CallMethod(name string, callArgs ...any) (any, error) {
	args := m.Called(name, callArgs)
	return args.Get(0), args.Error(1)
}

// MockHostClass is a testify mock of host.Class
type MockHostClass struct {
	mock.Mock
	ClassName string
}

// Name returns ClassName
func (m *MockHostClass) Name() string {
	return m.ClassName
}

// New records the call and returns the configured object and error
func (m *MockHostClass) New(kwargs map[string]any) (host.Object, error) {
	args := m.Called(kwargs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(host.Object), args.Error(1)
}

// MockHostProvider is a testify mock of host.Provider
type MockHostProvider struct {
	mock.Mock
}

// Class records the call and returns the configured class and error
func (m *MockHostProvider) Class(name string) (host.Class, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(host.Class), args.Error(1)
}

// Classes records the call and returns the configured names and error
func (m *MockHostProvider) Classes() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
