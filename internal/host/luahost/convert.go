package luahost

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a host value to a Lua value. Slices become sequence tables,
// string-keyed maps become tables.
func toLua(L *lua.LState, v any) (lua.LValue, error) {
	switch x := v.(type) {
	case nil:
		return lua.LNil, nil
	case lua.LValue:
		return x, nil
	case bool:
		return lua.LBool(x), nil
	case string:
		return lua.LString(x), nil
	case float64:
		return lua.LNumber(x), nil
	case []any:
		tbl := L.CreateTable(len(x), 0)
		for i, item := range x {
			lv, err := toLua(L, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			tbl.RawSetInt(i+1, lv)
		}
		return tbl, nil
	case map[string]any:
		tbl := L.CreateTable(0, len(x))
		for k, item := range x {
			lv, err := toLua(L, item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint()), nil
	case reflect.Float32:
		return lua.LNumber(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return toLua(L, items)
	}
	return nil, fmt.Errorf("cannot convert %T to a Lua value", v)
}

// fromLua converts a Lua value to a host value. Tables with a non-empty sequence part,
// and empty tables, become []any; other tables become map[string]any.
func fromLua(lv lua.LValue) (any, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		return float64(v), nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		return tableFromLua(v)
	}
	return nil, fmt.Errorf("unsupported Lua value of type %s", lv.Type().String())
}

func tableFromLua(tbl *lua.LTable) (any, error) {
	if n := tbl.Len(); n > 0 {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			item, err := fromLua(tbl.RawGetInt(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i-1, err)
			}
			out[i-1] = item
		}
		return out, nil
	}

	out := make(map[string]any)
	var convErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("unsupported table key %s", k.String())
			return
		}
		item, err := fromLua(v)
		if err != nil {
			convErr = fmt.Errorf("%s: %w", string(key), err)
			return
		}
		out[string(key)] = item
	})
	if convErr != nil {
		return nil, convErr
	}
	if len(out) == 0 {
		return []any{}, nil
	}
	return out, nil
}
