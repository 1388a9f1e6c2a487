// Package allocators manages named, persisted allocators: each record names a strategy
// reference and its configuration, and is rebuilt into a live dispatcher at startup.
package allocators

import (
	"errors"
	"time"

	"github.com/aristath/allocator/internal/allocator"
	"github.com/aristath/allocator/internal/strategy"
)

var (
	// ErrNotFound is returned for an unknown allocator id.
	ErrNotFound = errors.New("allocator not found")
	// ErrInvalidRequest is returned for a malformed create request.
	ErrInvalidRequest = errors.New("invalid request")
)

// Record is a persisted allocator definition.
type Record struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Strategy  string          `json:"strategy"`
	Config    strategy.Config `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
}

// Info is a record together with the state of its live allocator.
type Info struct {
	Record
	Kind            allocator.Kind `json:"kind"`
	MinObservations int            `json:"min_observations"`
}

// Source tells where a strategy reference resolves.
type Source string

const (
	SourceNative Source = "native"
	SourceLua    Source = "lua"
	SourceRemote Source = "remote"
)

// StrategyEntry describes one strategy reference accepted by Create.
type StrategyEntry struct {
	Ref         string           `json:"ref"`
	Source      Source           `json:"source"`
	Description string           `json:"description,omitempty"`
	InputShape  string           `json:"input_shape,omitempty"`
	OutputShape string           `json:"output_shape,omitempty"`
	Params      []strategy.Param `json:"params,omitempty"`
}

// CreateRequest is the body of POST /api/allocators.
type CreateRequest struct {
	Name     string          `json:"name"`
	Strategy string          `json:"strategy"`
	Config   strategy.Config `json:"config"`
}

// PredictRequest is the body of POST /api/allocators/{id}/predict.
type PredictRequest struct {
	Input any `json:"input" msgpack:"input"`
}

// PredictResponse carries the weights and their shape.
type PredictResponse struct {
	Weights any   `json:"weights" msgpack:"weights"`
	Shape   []int `json:"shape" msgpack:"shape"`
}
