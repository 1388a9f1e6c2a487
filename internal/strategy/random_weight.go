package strategy

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/aristath/allocator/pkg/ndarray"
)

// RandomWeightName is the registry name of RandomWeight.
const RandomWeightName = "random_weight"

// pcgStream is the fixed second PCG word; the seed selects the state.
const pcgStream = 0x9e3779b97f4a7c15

// RandomWeight draws uniform weights in [0, 1) and normalises each lane along the asset axis.
//
// With a seed, each Predict restarts the stream from the seed, so repeated calls on the same
// input are bit-identical. Without a seed the stream is keyed by OS entropy on first use and
// keeps advancing across calls. RandomWeight is not safe for concurrent use.
type RandomWeight struct {
	minObservations int
	seed            *uint64

	src       rand.Source
	newSource func(seed *uint64) (rand.Source, error)
}

// NewRandomWeight creates a RandomWeight strategy. A nil seed selects an entropy-keyed stream.
func NewRandomWeight(seed *uint64) *RandomWeight {
	s := &RandomWeight{
		minObservations: DefaultMinObservations,
		newSource:       newPCGSource,
	}
	s.SetSeed(seed)
	return s
}

func newPCGSource(seed *uint64) (rand.Source, error) {
	if seed != nil {
		return rand.NewPCG(*seed, pcgStream), nil
	}

	var buf [16]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("failed to read entropy: %w", err)
	}
	return rand.NewPCG(binary.LittleEndian.Uint64(buf[:8]), binary.LittleEndian.Uint64(buf[8:])), nil
}

// MinObservations returns the advisory minimum batch length.
func (s *RandomWeight) MinObservations() int {
	return s.minObservations
}

// SetMinObservations sets the advisory minimum batch length.
func (s *RandomWeight) SetMinObservations(n int) error {
	if n < 0 {
		return fmt.Errorf("min_observations must be non-negative, got %d", n)
	}
	s.minObservations = n
	return nil
}

// Seed returns the configured seed, or nil for an entropy-keyed stream.
func (s *RandomWeight) Seed() *uint64 {
	if s.seed == nil {
		return nil
	}
	v := *s.seed
	return &v
}

// SetSeed replaces the seed and discards the current stream.
func (s *RandomWeight) SetSeed(seed *uint64) {
	if seed == nil {
		s.seed = nil
	} else {
		v := *seed
		s.seed = &v
	}
	s.src = nil
}

// SetParam implements Configurable.
func (s *RandomWeight) SetParam(name string, value any) error {
	switch name {
	case ParamMinObservations:
		n, err := ToInt(value)
		if err == nil {
			err = s.SetMinObservations(n)
		}
		if err != nil {
			return &ConfigError{Strategy: RandomWeightName, Key: name, Message: "invalid value", Err: err}
		}
		return nil
	case ParamSeed:
		seed, err := Config{name: value}.OptionalUint64(name)
		if err != nil {
			return &ConfigError{Strategy: RandomWeightName, Key: name, Message: "invalid value", Err: err}
		}
		s.SetSeed(seed)
		return nil
	}
	return &ConfigError{Strategy: RandomWeightName, Key: name, Message: "unknown parameter"}
}

// stream returns the source for one Predict call.
func (s *RandomWeight) stream() (rand.Source, error) {
	if s.seed != nil || s.src == nil {
		src, err := s.newSource(s.seed)
		if err != nil {
			return nil, err
		}
		s.src = src
	}
	return s.src, nil
}

// Predict draws and normalises one weight vector per lane along the asset axis, batch
// index first, from a single shared stream.
func (s *RandomWeight) Predict(input *ndarray.Array) (*ndarray.Array, error) {
	if err := CheckInput(input); err != nil {
		return nil, err
	}

	src, err := s.stream()
	if err != nil {
		return nil, err
	}
	rng := rand.New(src)

	out := ndarray.Zeros(input.Shape()...)
	out.Lanes(out.AssetAxis(), func(lane []float64) {
		for i := range lane {
			lane[i] = rng.Float64()
		}
		sum := floats.Sum(lane)
		if sum > 0 {
			floats.Scale(1/sum, lane)
			return
		}
		equalWeights(lane)
	})
	return out, nil
}

// RandomWeightDefinition describes RandomWeight for registration.
func RandomWeightDefinition() *Definition {
	return &Definition{
		Name:        RandomWeightName,
		Description: "Uniform random weights normalised to sum to 1",
		InputShape:  "[n_assets] or [n_observations, n_assets, ...]",
		OutputShape: "same as input",
		Params: []Param{
			{
				Name:        ParamMinObservations,
				Kind:        ParamKindUint,
				Default:     DefaultMinObservations,
				Description: "Advisory minimum number of observations",
			},
			{
				Name:        ParamSeed,
				Kind:        ParamKindUint,
				Optional:    true,
				Description: "Seed for a reproducible stream; omitted means OS entropy",
			},
		},
		New: func(cfg Config) (Strategy, error) {
			seed, err := cfg.OptionalUint64(ParamSeed)
			if err != nil {
				return nil, err
			}
			s := NewRandomWeight(seed)
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
