package ndarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidatesBufferLength(t *testing.T) {
	a, err := New([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, a.Shape())
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 2, a.Rank())

	_, err = New([]int{2, 3}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = New([]int{-1}, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNew_CopiesInputs(t *testing.T) {
	shape := []int{2}
	data := []float64{1, 2}
	a, err := New(shape, data)
	require.NoError(t, err)

	shape[0] = 5
	data[0] = 99
	assert.Equal(t, []int{2}, a.Shape())
	assert.Equal(t, []float64{1, 2}, a.Data())
}

func TestScalar(t *testing.T) {
	a, err := New(nil, []float64{3.5})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Rank())
	assert.Equal(t, -1, a.AssetAxis())
	assert.Equal(t, 0, a.Assets())
	assert.Equal(t, 0, a.Observations())
}

func TestAxes(t *testing.T) {
	testCases := []struct {
		name         string
		shape        []int
		assetAxis    int
		assets       int
		observations int
	}{
		{"single observation", []int{4}, 0, 4, 1},
		{"batch", []int{3, 4}, 1, 4, 3},
		{"batch with features", []int{5, 2, 7}, 1, 2, 5},
		{"empty batch", []int{0, 3}, 1, 3, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := Zeros(tc.shape...)
			assert.Equal(t, tc.assetAxis, a.AssetAxis())
			assert.Equal(t, tc.assets, a.Assets())
			assert.Equal(t, tc.observations, a.Observations())
		})
	}
}

func TestLanes_Rank2VisitsRows(t *testing.T) {
	a, err := New([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	var seen [][]float64
	a.Lanes(1, func(lane []float64) {
		seen = append(seen, append([]float64(nil), lane...))
		for i := range lane {
			lane[i] *= 10
		}
	})

	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, seen)
	assert.Equal(t, []float64{10, 20, 30, 40, 50, 60}, a.Data())
}

func TestLanes_Rank3AlongMiddleAxis(t *testing.T) {
	// shape [1, 2, 2]: lanes along axis 1 are (0,2) and (1,3) in flat indices
	a, err := New([]int{1, 2, 2}, []float64{0, 1, 2, 3})
	require.NoError(t, err)

	var seen [][]float64
	a.Lanes(1, func(lane []float64) {
		seen = append(seen, append([]float64(nil), lane...))
	})

	assert.Equal(t, [][]float64{{0, 2}, {1, 3}}, seen)
}

func TestLanes_PanicsOnBadAxis(t *testing.T) {
	a := Zeros(3)
	assert.Panics(t, func() { a.Lanes(1, func([]float64) {}) })
}

func TestFullCloneAndSameShape(t *testing.T) {
	a := Full(0.25, 3, 4)
	for _, v := range a.Data() {
		assert.Equal(t, 0.25, v)
	}

	c := a.Clone()
	c.Data()[0] = 1
	assert.Equal(t, 0.25, a.Data()[0])
	assert.True(t, a.SameShape(c))
	assert.False(t, a.SameShape(Zeros(4, 3)))
	assert.False(t, a.SameShape(Zeros(12)))
}

func TestString(t *testing.T) {
	a := Full(1, 10)
	s := a.String()
	assert.Contains(t, s, "Array[10]")
	assert.Contains(t, s, "(2 more)")
}

func TestNew_RejectsOverflowingShape(t *testing.T) {
	_, err := New([]int{1 << 62, 4}, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = New([]int{1 << 32, 1 << 32}, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	assert.Panics(t, func() { Zeros(1<<62, 4) })
}

func TestLanes_EmptyArrayVisitsNothing(t *testing.T) {
	a, err := New([]int{1, 1 << 62, 0}, nil)
	require.NoError(t, err)

	calls := 0
	a.Lanes(1, func([]float64) { calls++ })
	assert.Zero(t, calls)
}
