package strategy

import (
	"fmt"

	"github.com/aristath/allocator/pkg/ndarray"
)

// EqualWeightName is the registry name of EqualWeight.
const EqualWeightName = "equal_weight"

// EqualWeight assigns 1/n_assets to every position. It is deterministic and stateless
// apart from the advisory minimum observation count.
type EqualWeight struct {
	minObservations int
}

// NewEqualWeight creates an EqualWeight strategy with the default minimum observations.
func NewEqualWeight() *EqualWeight {
	return &EqualWeight{minObservations: DefaultMinObservations}
}

// MinObservations returns the advisory minimum batch length.
func (s *EqualWeight) MinObservations() int {
	return s.minObservations
}

// SetMinObservations sets the advisory minimum batch length.
func (s *EqualWeight) SetMinObservations(n int) error {
	if n < 0 {
		return fmt.Errorf("min_observations must be non-negative, got %d", n)
	}
	s.minObservations = n
	return nil
}

// SetParam implements Configurable.
func (s *EqualWeight) SetParam(name string, value any) error {
	switch name {
	case ParamMinObservations:
		n, err := ToInt(value)
		if err != nil {
			return &ConfigError{Strategy: EqualWeightName, Key: name, Message: "invalid value", Err: err}
		}
		if err := s.SetMinObservations(n); err != nil {
			return &ConfigError{Strategy: EqualWeightName, Key: name, Message: "invalid value", Err: err}
		}
		return nil
	}
	return &ConfigError{Strategy: EqualWeightName, Key: name, Message: "unknown parameter"}
}

// Predict fills an array of the input's shape with 1/n_assets.
func (s *EqualWeight) Predict(input *ndarray.Array) (*ndarray.Array, error) {
	if err := CheckInput(input); err != nil {
		return nil, err
	}
	return ndarray.Full(1.0/float64(input.Assets()), input.Shape()...), nil
}

// EqualWeightDefinition describes EqualWeight for registration.
func EqualWeightDefinition() *Definition {
	return &Definition{
		Name:        EqualWeightName,
		Description: "Equal weight across all assets",
		InputShape:  "[n_assets] or [n_observations, n_assets, ...]",
		OutputShape: "same as input",
		Params: []Param{
			{
				Name:        ParamMinObservations,
				Kind:        ParamKindUint,
				Default:     DefaultMinObservations,
				Description: "Advisory minimum number of observations",
			},
		},
		New: func(cfg Config) (Strategy, error) {
			s := NewEqualWeight()
			n, err := cfg.Int(ParamMinObservations, DefaultMinObservations)
			if err != nil {
				return nil, err
			}
			if err := s.SetMinObservations(n); err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}
