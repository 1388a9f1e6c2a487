package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Config maps parameter names to values as supplied by callers (JSON, msgpack, Lua, Go).
type Config map[string]any

// Keys returns the configured keys in sorted order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Int reads an integer parameter, returning def when the key is absent.
func (c Config) Int(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	return ToInt(v)
}

// OptionalUint64 reads an optional non-negative integer. Absent or nil yields nil.
func (c Config) OptionalUint64(key string) (*uint64, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := ToInt(v)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("must be non-negative, got %d", n)
	}
	u := uint64(n)
	return &u, nil
}

// ToInt coerces an integral number of any numeric kind to int.
// Floats must have no fractional part.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int", n)
		}
		return int(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q: %w", n.String(), err)
		}
		return int(i), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func floatToInt(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("value %v overflows int", f)
	}
	return int(f), nil
}

// ParamKind is the declared type of a strategy parameter.
type ParamKind string

const (
	ParamKindInt    ParamKind = "int"
	ParamKindUint   ParamKind = "uint"
	ParamKindFloat  ParamKind = "float"
	ParamKindString ParamKind = "string"
	ParamKindBool   ParamKind = "bool"
)

// Param declares one configuration option a strategy recognises.
type Param struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"kind"`
	Default     any       `json:"default"`
	Optional    bool      `json:"optional"`
	Description string    `json:"description"`
}

// Check validates a value against the declared kind. Nil is accepted for optional params.
func (p Param) Check(v any) error {
	if v == nil {
		if p.Optional {
			return nil
		}
		return fmt.Errorf("value is required")
	}

	switch p.Kind {
	case ParamKindInt:
		_, err := ToInt(v)
		return err
	case ParamKindUint:
		n, err := ToInt(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("must be non-negative, got %d", n)
		}
	case ParamKindFloat:
		switch v.(type) {
		case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case ParamKindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case ParamKindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	}
	return nil
}
