// Package ndarray provides a contiguous, row-major float64 array with an explicit shape.
package ndarray

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrShapeMismatch is returned when a buffer length does not match the product of a shape.
var ErrShapeMismatch = errors.New("buffer length does not match shape")

// Array is an N-dimensional float64 array stored in one row-major buffer.
// The invariant len(data) == product(shape) always holds; an empty shape is a scalar.
type Array struct {
	data  []float64
	shape []int
}

// New creates an array from a shape and a flat row-major buffer.
// Both slices are copied.
func New(shape []int, data []float64) (*Array, error) {
	size, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	if size != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShapeMismatch, shape, size, len(data))
	}

	a := &Array{
		data:  make([]float64, len(data)),
		shape: make([]int, len(shape)),
	}
	copy(a.data, data)
	copy(a.shape, shape)
	return a, nil
}

// Zeros creates a zero-filled array. It panics on a negative dimension.
func Zeros(shape ...int) *Array {
	size, err := sizeOf(shape)
	if err != nil {
		panic(err)
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Array{data: make([]float64, size), shape: s}
}

// Full creates an array with every element set to value.
func Full(value float64, shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = value
	}
	return a
}

func sizeOf(shape []int) (int, error) {
	size := 1
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("%w: negative dimension %d at axis %d", ErrShapeMismatch, dim, i)
		}
		if dim != 0 && size > math.MaxInt/dim {
			return 0, fmt.Errorf("%w: shape %v overflows", ErrShapeMismatch, shape)
		}
		size *= dim
	}
	return size, nil
}

// Shape returns a copy of the array shape.
func (a *Array) Shape() []int {
	s := make([]int, len(a.shape))
	copy(s, a.shape)
	return s
}

// Data returns the backing buffer. The array owns it; callers that keep it must copy.
func (a *Array) Data() []float64 {
	return a.data
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int {
	return len(a.shape)
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.data)
}

// Dim returns the size of one axis.
func (a *Array) Dim(axis int) int {
	return a.shape[axis]
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	c, _ := New(a.shape, a.data)
	return c
}

// AssetAxis returns the axis enumerating assets: 0 for a lone observation (rank 1),
// 1 for a batch (rank >= 2) and -1 for a scalar.
func (a *Array) AssetAxis() int {
	switch {
	case len(a.shape) == 0:
		return -1
	case len(a.shape) == 1:
		return 0
	default:
		return 1
	}
}

// Assets returns the length of the asset axis, or 0 for a scalar.
func (a *Array) Assets() int {
	axis := a.AssetAxis()
	if axis < 0 {
		return 0
	}
	return a.shape[axis]
}

// Observations returns the length of the batch axis. A rank-1 array is one observation.
func (a *Array) Observations() int {
	switch len(a.shape) {
	case 0:
		return 0
	case 1:
		return 1
	default:
		return a.shape[0]
	}
}

// SameShape reports whether both arrays have identical shapes.
func (a *Array) SameShape(other *Array) bool {
	if len(a.shape) != len(other.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != other.shape[i] {
			return false
		}
	}
	return true
}

// Lanes visits every one-dimensional lane along axis. The lane is gathered into a
// scratch buffer, passed to fn, and written back after fn returns, so fn may modify it.
// Lanes are visited in row-major order of the remaining indices.
func (a *Array) Lanes(axis int, fn func(lane []float64)) {
	if axis < 0 || axis >= len(a.shape) {
		panic(fmt.Sprintf("ndarray: axis %d out of range for rank %d", axis, len(a.shape)))
	}

	outer := 1
	for _, d := range a.shape[:axis] {
		outer *= d
	}
	inner := 1
	for _, d := range a.shape[axis+1:] {
		inner *= d
	}
	n := a.shape[axis]
	if len(a.data) == 0 {
		return
	}

	lane := make([]float64, n)
	for o := 0; o < outer; o++ {
		for j := 0; j < inner; j++ {
			for i := 0; i < n; i++ {
				lane[i] = a.data[(o*n+i)*inner+j]
			}
			fn(lane)
			for i := 0; i < n; i++ {
				a.data[(o*n+i)*inner+j] = lane[i]
			}
		}
	}
}

// String renders the shape and the first few values.
func (a *Array) String() string {
	const preview = 8

	var b strings.Builder
	fmt.Fprintf(&b, "Array%v[", a.shape)
	for i, v := range a.data {
		if i == preview {
			fmt.Fprintf(&b, " ...(%d more)", len(a.data)-preview)
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteByte(']')
	return b.String()
}
