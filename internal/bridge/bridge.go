// Package bridge converts between dynamically-typed host values and ndarray arrays.
//
// Host values are what host runtimes and decoders hand over: nested []any of numbers
// (JSON, msgpack, Lua, RPC), typed Go slices such as [][]float64, or the packed form
// map[string]any{"shape": [...], "data": [...]}. Every value crossing into or out of a
// strategy goes through Decode and Encode.
package bridge

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/aristath/allocator/pkg/ndarray"
)

// Keys of the packed host array form.
const (
	PackedShapeKey = "shape"
	PackedDataKey  = "data"
)

// ConversionError reports a host value that cannot be coerced to a rectangular float64 array.
type ConversionError struct {
	Path    string
	Message string
	Err     error
}

func (e *ConversionError) Error() string {
	msg := "conversion error"
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s", e.Path)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Decode coerces a host value into a fresh array, widening integers, floats and bools
// to float64 and flattening in row-major order.
func Decode(v any) (*ndarray.Array, error) {
	if v == nil {
		return nil, &ConversionError{Message: "value is nil"}
	}

	if m, ok := v.(map[string]any); ok {
		return decodePacked(m)
	}

	rv := reflect.ValueOf(v)
	shape, err := inferShape(rv)
	if err != nil {
		return nil, err
	}

	size := 1
	for _, d := range shape {
		size *= d
	}

	data := make([]float64, 0, size)
	data, err = flatten(rv, shape, 0, "$", data)
	if err != nil {
		return nil, err
	}

	return ndarray.New(shape, data)
}

// MaxNestedEmptyLists bounds the empty lists Encode materialises for an array whose last
// axis has length 0. Larger empty arrays are encoded in the packed form.
const MaxNestedEmptyLists = 1 << 16

// Encode rebuilds a host value with exactly the array's shape: nested []any of float64,
// or a bare float64 for a scalar. The result never aliases the array buffer.
//
// Nested lists cannot carry dimensions after a zero-length axis, so an empty array of
// rank >= 2 with a zero-length axis before the last one is encoded in the packed form.
func Encode(a *ndarray.Array) any {
	shape := a.Shape()
	switch {
	case len(shape) == 0:
		return a.Data()[0]
	case a.Len() == 0 && !nestable(shape):
		return encodePacked(shape)
	}
	out, _ := build(a.Data(), shape, 0)
	return out
}

// nestable reports whether an empty array keeps its shape as nested lists: only the
// last axis may be zero, and the leading lists must stay within MaxNestedEmptyLists.
func nestable(shape []int) bool {
	lists := 1
	for _, d := range shape[:len(shape)-1] {
		if d == 0 || lists > MaxNestedEmptyLists/d {
			return false
		}
		lists *= d
	}
	return true
}

func encodePacked(shape []int) map[string]any {
	dims := make([]any, len(shape))
	for i, d := range shape {
		dims[i] = float64(d)
	}
	return map[string]any{
		PackedShapeKey: dims,
		PackedDataKey:  []any{},
	}
}

func build(data []float64, shape []int, offset int) (any, int) {
	n := shape[0]
	out := make([]any, n)
	if len(shape) == 1 {
		for i := 0; i < n; i++ {
			out[i] = data[offset+i]
		}
		return out, offset + n
	}
	for i := 0; i < n; i++ {
		out[i], offset = build(data, shape[1:], offset)
	}
	return out, offset
}

func decodePacked(m map[string]any) (*ndarray.Array, error) {
	rawShape, ok := m[PackedShapeKey]
	if !ok {
		return nil, &ConversionError{Message: fmt.Sprintf("map value is not a packed array (missing %q)", PackedShapeKey)}
	}
	rawData, ok := m[PackedDataKey]
	if !ok {
		return nil, &ConversionError{Message: fmt.Sprintf("map value is not a packed array (missing %q)", PackedDataKey)}
	}

	shapeArr, err := Decode(rawShape)
	if err != nil {
		return nil, &ConversionError{Path: "$.shape", Message: "invalid shape", Err: err}
	}
	if shapeArr.Rank() != 1 {
		return nil, &ConversionError{Path: "$.shape", Message: "shape must be a flat list"}
	}
	shape := make([]int, shapeArr.Len())
	for i, d := range shapeArr.Data() {
		if d < 0 || d >= math.MaxInt || d != float64(int(d)) {
			return nil, &ConversionError{Path: fmt.Sprintf("$.shape[%d]", i), Message: fmt.Sprintf("invalid dimension %v", d)}
		}
		shape[i] = int(d)
	}

	dataArr, err := Decode(rawData)
	if err != nil {
		return nil, &ConversionError{Path: "$.data", Message: "invalid data", Err: err}
	}
	if dataArr.Rank() > 1 {
		return nil, &ConversionError{Path: "$.data", Message: "data must be a flat list"}
	}

	a, err := ndarray.New(shape, dataArr.Data())
	if err != nil {
		return nil, &ConversionError{Message: "packed data does not match shape", Err: err}
	}
	return a, nil
}

// Shape reports the shape of a nested-list value, following the first element at each depth.
// It does not check that the value is rectangular.
func Shape(v any) ([]int, error) {
	if m, ok := v.(map[string]any); ok {
		a, err := decodePacked(m)
		if err != nil {
			return nil, err
		}
		return a.Shape(), nil
	}
	shape, err := inferShape(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	if shape == nil {
		shape = []int{}
	}
	return shape, nil
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func isList(rv reflect.Value) bool {
	if rv.Kind() == reflect.Array {
		return true
	}
	// []byte is how some decoders deliver strings
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8
}

// inferShape follows the first element at each depth. Rectangularity is checked by flatten.
func inferShape(rv reflect.Value) ([]int, error) {
	var shape []int
	path := "$"
	for {
		rv = indirect(rv)
		if !rv.IsValid() {
			return nil, &ConversionError{Path: path, Message: "nil element"}
		}
		if !isList(rv) {
			if _, err := toFloat(rv, path); err != nil {
				return nil, err
			}
			return shape, nil
		}
		shape = append(shape, rv.Len())
		if rv.Len() == 0 {
			return shape, nil
		}
		rv = rv.Index(0)
		path += "[0]"
	}
}

func flatten(rv reflect.Value, shape []int, depth int, path string, out []float64) ([]float64, error) {
	rv = indirect(rv)
	if !rv.IsValid() {
		return nil, &ConversionError{Path: path, Message: "nil element"}
	}

	if depth == len(shape) {
		if isList(rv) {
			return nil, &ConversionError{Path: path, Message: "ragged structure: unexpected nested list"}
		}
		f, err := toFloat(rv, path)
		if err != nil {
			return nil, err
		}
		return append(out, f), nil
	}

	if !isList(rv) {
		return nil, &ConversionError{Path: path, Message: fmt.Sprintf("ragged structure: expected list of length %d", shape[depth])}
	}
	if rv.Len() != shape[depth] {
		return nil, &ConversionError{Path: path, Message: fmt.Sprintf("ragged structure: expected length %d, got %d", shape[depth], rv.Len())}
	}

	var err error
	for i := 0; i < rv.Len(); i++ {
		out, err = flatten(rv.Index(i), shape, depth+1, fmt.Sprintf("%s[%d]", path, i), out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func toFloat(rv reflect.Value, path string) (float64, error) {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}

	desc := rv.Kind().String()
	if rv.Kind() == reflect.String {
		desc = fmt.Sprintf("string %q", truncate(rv.String(), 20))
	}
	return 0, &ConversionError{Path: path, Message: fmt.Sprintf("non-numeric element (%s)", desc)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
