// Package host models strategies that live in a separate, dynamically-typed host
// environment (an embedded Lua state, a remote process) and adapts them to the native
// strategy contract.
//
// Host objects are reached only by name: attributes are read and written by name and
// methods are invoked by name with host values as arguments.
package host

import (
	"errors"
	"fmt"
)

// Attribute and method names every host strategy is looked up by.
const (
	MinObservationsAttr = "min_observations"
	PredictMethod       = "predict"
)

var (
	// ErrNoSuchAttribute is returned by GetAttr when the object has no such attribute.
	ErrNoSuchAttribute = errors.New("no such attribute")
	// ErrNoSuchMethod is returned by CallMethod when the object has no callable of that name.
	ErrNoSuchMethod = errors.New("no such method")
	// ErrKeywordArgsUnsupported is returned by Class.New when the constructor cannot take
	// configuration; callers retry without it and assign attributes instead.
	ErrKeywordArgsUnsupported = errors.New("constructor does not accept keyword arguments")
	// ErrUnknownClass is returned by a Provider for a name it does not define.
	ErrUnknownClass = errors.New("unknown host class")
)

// Object is an opaque handle to a host-side object. The host owns its memory.
type Object interface {
	GetAttr(name string) (any, error)
	SetAttr(name string, value any) error
	CallMethod(name string, args ...any) (any, error)
}

// Class constructs host objects.
type Class interface {
	Name() string
	New(kwargs map[string]any) (Object, error)
}

// Provider resolves host classes by name.
type Provider interface {
	Class(name string) (Class, error)
	Classes() ([]string, error)
}

// CallError reports a failed call into a host object: the method is missing,
// it raised, or its result could not be converted back.
type CallError struct {
	Method string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("host call %s failed: %v", e.Method, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
