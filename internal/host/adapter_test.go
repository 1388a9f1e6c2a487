package host_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/bridge"
	"github.com/aristath/allocator/internal/host"
	testingpkg "github.com/aristath/allocator/internal/testing"
	"github.com/aristath/allocator/pkg/ndarray"
)

func TestStrategy_MinObservations(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		err   error
		want  int
	}{
		{"integer float", 2.0, nil, 2},
		{"int", 7, nil, 7},
		{"zero", 0, nil, 0},
		{"missing attribute", nil, host.ErrNoSuchAttribute, 1},
		{"host error", nil, errors.New("boom"), 1},
		{"string", "3", nil, 1},
		{"fractional", 2.5, nil, 1},
		{"negative", -4, nil, 1},
		{"nil", nil, nil, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obj := new(testingpkg.MockHostObject)
			obj.On("GetAttr", host.MinObservationsAttr).Return(tc.value, tc.err)

			s := host.NewStrategy(obj, zerolog.Nop())
			assert.Equal(t, tc.want, s.MinObservations())
			obj.AssertExpectations(t)
		})
	}
}

func TestStrategy_PredictPassesEncodedArray(t *testing.T) {
	input, err := ndarray.New([]int{2, 2}, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	obj := new(testingpkg.MockHostObject)
	obj.On("CallMethod", host.PredictMethod, mock.MatchedBy(func(args []any) bool {
		return len(args) == 1 && assert.ObjectsAreEqual(bridge.Encode(input), args[0])
	})).Return([]any{[]any{0.5, 0.5}, []any{0.25, 0.75}}, nil)

	s := host.NewStrategy(obj, zerolog.Nop())
	out, err := s.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out.Shape())
	assert.Equal(t, []float64{0.5, 0.5, 0.25, 0.75}, out.Data())
	obj.AssertExpectations(t)
}

func TestStrategy_PredictHostFailure(t *testing.T) {
	obj := new(testingpkg.MockHostObject)
	obj.On("CallMethod", host.PredictMethod, mock.Anything).Return(nil, errors.New("ZeroDivisionError"))

	_, err := host.NewStrategy(obj, zerolog.Nop()).Predict(ndarray.Zeros(3))

	var callErr *host.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, host.PredictMethod, callErr.Method)
	assert.Contains(t, err.Error(), "ZeroDivisionError")
}

func TestStrategy_PredictMissingMethod(t *testing.T) {
	obj := new(testingpkg.MockHostObject)
	obj.On("CallMethod", host.PredictMethod, mock.Anything).Return(nil, host.ErrNoSuchMethod)

	_, err := host.NewStrategy(obj, zerolog.Nop()).Predict(ndarray.Zeros(3))

	var callErr *host.CallError
	assert.ErrorAs(t, err, &callErr)
	assert.ErrorIs(t, err, host.ErrNoSuchMethod)
}

func TestStrategy_PredictUnconvertibleResult(t *testing.T) {
	obj := new(testingpkg.MockHostObject)
	obj.On("CallMethod", host.PredictMethod, mock.Anything).Return([]any{"a", "b"}, nil)

	_, err := host.NewStrategy(obj, zerolog.Nop()).Predict(ndarray.Zeros(2))

	var callErr *host.CallError
	var convErr *bridge.ConversionError
	assert.ErrorAs(t, err, &callErr)
	assert.ErrorAs(t, err, &convErr)
}

func TestStrategy_Object(t *testing.T) {
	obj := new(testingpkg.MockHostObject)
	assert.Same(t, obj, host.NewStrategy(obj, zerolog.Nop()).Object())
}

func TestStrategy_PanickingHostReleasesLock(t *testing.T) {
	obj := new(testingpkg.MockHostObject)
	obj.On("GetAttr", host.MinObservationsAttr).Run(func(mock.Arguments) { panic("attribute lookup") }).Once()
	obj.On("GetAttr", host.MinObservationsAttr).Return(3, nil).Once()
	obj.On("CallMethod", host.PredictMethod, mock.Anything).Run(func(mock.Arguments) { panic("predict") }).Once()
	obj.On("CallMethod", host.PredictMethod, mock.Anything).Return([]any{0.5, 0.5}, nil).Once()

	s := host.NewStrategy(obj, zerolog.Nop())

	assert.Panics(t, func() { s.MinObservations() })
	assert.Equal(t, 3, s.MinObservations())

	assert.Panics(t, func() { _, _ = s.Predict(ndarray.Zeros(2)) })
	out, err := s.Predict(ndarray.Zeros(2))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, out.Data())
	obj.AssertExpectations(t)
}
