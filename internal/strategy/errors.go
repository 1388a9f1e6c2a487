package strategy

import (
	"errors"
	"fmt"
)

// ErrDuplicateStrategy is returned when a strategy name is registered twice.
var ErrDuplicateStrategy = errors.New("strategy already registered")

// ErrUnknownStrategy is returned when a registry lookup misses.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ShapeError reports an input array a strategy cannot produce weights for,
// or an output whose shape differs from its input.
type ShapeError struct {
	Shape   []int
	Message string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape error for %v: %s", e.Shape, e.Message)
}

// ConfigError reports a configuration key that is unknown or carries an invalid value.
type ConfigError struct {
	Strategy string
	Key      string
	Message  string
	Err      error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Strategy != "" {
		msg += fmt.Sprintf(" for %s", e.Strategy)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (%s)", e.Key)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
