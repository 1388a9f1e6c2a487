// Package strategy defines the allocation strategy contract and the reference strategies.
//
// A strategy maps an input array to weights of the same shape. The asset axis is
// dimension 0 for a lone observation (rank 1) and dimension 1 for a batch (rank >= 2);
// along it, every lane of the output sums to 1.
package strategy

import (
	"github.com/aristath/allocator/pkg/ndarray"
)

// Parameter names shared by the reference strategies.
const (
	ParamMinObservations = "min_observations"
	ParamSeed            = "seed"
)

// DefaultMinObservations is the advisory minimum batch length when nothing else is declared.
const DefaultMinObservations = 1

// Strategy is the contract every allocation strategy satisfies.
type Strategy interface {
	// MinObservations is the advisory minimum batch-axis length. Predict does not enforce it.
	MinObservations() int
	// Predict returns weights with the input's shape.
	Predict(input *ndarray.Array) (*ndarray.Array, error)
}

// Configurable strategies accept attribute-style parameter writes after construction.
type Configurable interface {
	SetParam(name string, value any) error
}

// CheckInput rejects inputs no strategy can weight: scalars and an empty asset axis.
func CheckInput(input *ndarray.Array) error {
	if input.Rank() < 1 {
		return &ShapeError{Shape: input.Shape(), Message: "rank must be at least 1"}
	}
	if input.Assets() == 0 {
		return &ShapeError{Shape: input.Shape(), Message: "asset axis is empty"}
	}
	return nil
}

func equalWeights(lane []float64) {
	w := 1.0 / float64(len(lane))
	for i := range lane {
		lane[i] = w
	}
}
