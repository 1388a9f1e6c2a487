package host

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/bridge"
	"github.com/aristath/allocator/internal/strategy"
	"github.com/aristath/allocator/pkg/ndarray"
)

// Strategy adapts a host object to strategy.Strategy. It borrows the object for each
// call; calls through one adapter are serialised.
type Strategy struct {
	obj Object
	mu  sync.Mutex
	log zerolog.Logger
}

var _ strategy.Strategy = (*Strategy)(nil)

// NewStrategy wraps obj.
func NewStrategy(obj Object, log zerolog.Logger) *Strategy {
	return &Strategy{
		obj: obj,
		log: log.With().Str("component", "host_strategy").Logger(),
	}
}

// Object returns the wrapped host object.
func (s *Strategy) Object() Object {
	return s.obj
}

// MinObservations reads the host attribute. Any failure yields the default of 1:
// the value is advisory, so it never fails the caller.
func (s *Strategy) MinObservations() int {
	v, err := s.getAttr(MinObservationsAttr)
	if err != nil {
		s.log.Debug().Err(err).Msg("min_observations unavailable, using default")
		return strategy.DefaultMinObservations
	}

	n, err := strategy.ToInt(v)
	if err != nil || n < 0 {
		s.log.Debug().
			Interface("value", v).
			Msg("min_observations is not a non-negative integer, using default")
		return strategy.DefaultMinObservations
	}
	return n
}

// Predict encodes input, calls the host predict method and decodes its result.
// Every failure is returned as a *CallError.
func (s *Strategy) Predict(input *ndarray.Array) (*ndarray.Array, error) {
	arg := bridge.Encode(input)

	result, err := s.callMethod(PredictMethod, arg)
	if err != nil {
		return nil, &CallError{Method: PredictMethod, Err: err}
	}

	out, err := bridge.Decode(result)
	if err != nil {
		return nil, &CallError{Method: PredictMethod, Err: err}
	}
	return out, nil
}

func (s *Strategy) getAttr(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obj.GetAttr(name)
}

func (s *Strategy) callMethod(name string, args ...any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obj.CallMethod(name, args...)
}
