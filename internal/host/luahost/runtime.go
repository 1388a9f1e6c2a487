// Package luahost embeds a Lua state as a strategy host.
//
// A host strategy class is a global table with a constructor function `new`:
//
//	Momentum = {}
//	Momentum.__index = Momentum
//	function Momentum.new(opts)
//	  local self = setmetatable({}, Momentum)
//	  self.min_observations = (opts and opts.min_observations) or 1
//	  return self
//	end
//	function Momentum:predict(x) ... end
//
// A constructor declared without parameters does not take configuration; the dispatcher
// then assigns each key as a field on the constructed object.
package luahost

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/aristath/allocator/internal/host"
)

// ConstructorName is the field holding a class constructor.
const ConstructorName = "new"

// Runtime owns one Lua state. Lua states are single-threaded, so every access
// from classes and objects of this runtime goes through one mutex.
type Runtime struct {
	mu  sync.Mutex
	L   *lua.LState
	log zerolog.Logger
}

var _ host.Provider = (*Runtime)(nil)

// New creates a runtime with the base, package, table, string and math libraries.
// io, os and debug are not opened.
func New(log zerolog.Logger) *Runtime {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			panic(fmt.Sprintf("luahost: failed to open %s: %v", lib.name, err))
		}
	}

	return &Runtime{
		L:   L,
		log: log.With().Str("component", "luahost").Logger(),
	}
}

// LoadString executes a chunk, typically defining strategy classes.
func (r *Runtime) LoadString(name, src string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn, err := r.L.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("failed to compile lua chunk %s: %w", name, err)
	}
	r.L.Push(fn)
	if err := r.L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("failed to run lua chunk %s: %w", name, err)
	}
	r.log.Debug().Str("chunk", name).Msg("Loaded lua chunk")
	return nil
}

// LoadFile executes a Lua file.
func (r *Runtime) LoadFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load lua file %s: %w", path, err)
	}
	r.log.Debug().Str("path", path).Msg("Loaded lua file")
	return nil
}

// LoadDir executes every *.lua file in dir in lexical order and returns how many were loaded.
func (r *Runtime) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return 0, fmt.Errorf("failed to list lua files in %s: %w", dir, err)
	}
	sort.Strings(paths)

	for i, path := range paths {
		if err := r.LoadFile(path); err != nil {
			return i, err
		}
	}
	return len(paths), nil
}

// Close releases the Lua state. Objects of this runtime must not be used afterwards.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}

// Class returns the class defined by the global table name.
func (r *Runtime) Class(name string) (host.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tbl, ok := r.L.GetGlobal(name).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownClass, name)
	}
	ctor, err := r.getField(tbl, ConstructorName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s.%s: %w", name, ConstructorName, err)
	}
	if _, ok := ctor.(*lua.LFunction); !ok {
		return nil, fmt.Errorf("%w: %s has no %s function", host.ErrUnknownClass, name, ConstructorName)
	}
	return &class{rt: r, name: name, tbl: tbl}, nil
}

// Classes returns the sorted names of globals that look like classes.
func (r *Runtime) Classes() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	r.L.G.Global.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok {
			return
		}
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		if _, ok := tbl.RawGetString(ConstructorName).(*lua.LFunction); ok {
			names = append(names, string(name))
		}
	})
	sort.Strings(names)
	return names, nil
}

// getField reads tbl[name] in protected mode, so errors raised by __index come back
// as errors. The caller holds r.mu.
func (r *Runtime) getField(tbl *lua.LTable, name string) (lua.LValue, error) {
	getter := r.L.NewFunction(func(L *lua.LState) int {
		L.Push(L.GetField(L.CheckTable(1), L.CheckString(2)))
		return 1
	})
	if err := r.L.CallByParam(lua.P{Fn: getter, NRet: 1, Protect: true}, tbl, lua.LString(name)); err != nil {
		return nil, err
	}
	lv := r.L.Get(-1)
	r.L.Pop(1)
	return lv, nil
}

// setField assigns tbl[name] in protected mode, honouring __newindex. The caller holds r.mu.
func (r *Runtime) setField(tbl *lua.LTable, name string, value lua.LValue) error {
	setter := r.L.NewFunction(func(L *lua.LState) int {
		L.SetField(L.CheckTable(1), L.CheckString(2), L.Get(3))
		return 0
	})
	return r.L.CallByParam(lua.P{Fn: setter, NRet: 0, Protect: true}, tbl, lua.LString(name), value)
}

type class struct {
	rt   *Runtime
	name string
	tbl  *lua.LTable
}

func (c *class) Name() string {
	return c.name
}

// New calls the constructor. Non-empty kwargs are passed as one options table when the
// constructor declares a parameter; otherwise host.ErrKeywordArgsUnsupported is returned.
func (c *class) New(kwargs map[string]any) (host.Object, error) {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()

	L := c.rt.L
	lv, err := c.rt.getField(c.tbl, ConstructorName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s.%s: %w", c.name, ConstructorName, err)
	}
	ctor, ok := lv.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s function", host.ErrUnknownClass, c.name, ConstructorName)
	}

	var args []lua.LValue
	if len(kwargs) > 0 {
		if !ctor.IsG && ctor.Proto.NumParameters == 0 {
			return nil, host.ErrKeywordArgsUnsupported
		}
		opts, err := toLua(L, kwargs)
		if err != nil {
			return nil, fmt.Errorf("failed to convert options for %s: %w", c.name, err)
		}
		args = append(args, opts)
	}

	if err := L.CallByParam(lua.P{Fn: ctor, NRet: 1, Protect: true}, args...); err != nil {
		return nil, fmt.Errorf("failed to construct %s: %w", c.name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("constructor of %s returned %s, not a table", c.name, ret.Type().String())
	}
	return &object{rt: c.rt, class: c.name, tbl: tbl}, nil
}

type object struct {
	rt    *Runtime
	class string
	tbl   *lua.LTable
}

// GetAttr reads a field, following __index metatables.
func (o *object) GetAttr(name string) (any, error) {
	o.rt.mu.Lock()
	defer o.rt.mu.Unlock()

	lv, err := o.rt.getField(o.tbl, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", o.class, name, err)
	}
	if lv == lua.LNil {
		return nil, fmt.Errorf("%w: %s.%s", host.ErrNoSuchAttribute, o.class, name)
	}
	return fromLua(lv)
}

// SetAttr assigns a field on the instance table.
func (o *object) SetAttr(name string, value any) error {
	o.rt.mu.Lock()
	defer o.rt.mu.Unlock()

	lv, err := toLua(o.rt.L, value)
	if err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", o.class, name, err)
	}
	if err := o.rt.setField(o.tbl, name, lv); err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", o.class, name, err)
	}
	return nil
}

// CallMethod calls obj:name(args...) in protected mode and returns its first result.
func (o *object) CallMethod(name string, args ...any) (any, error) {
	o.rt.mu.Lock()
	defer o.rt.mu.Unlock()

	L := o.rt.L
	lv, err := o.rt.getField(o.tbl, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s:%s: %w", o.class, name, err)
	}
	fn, ok := lv.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", host.ErrNoSuchMethod, o.class, name)
	}

	largs := make([]lua.LValue, 0, len(args)+1)
	largs = append(largs, o.tbl)
	for i, a := range args {
		lv, err := toLua(L, a)
		if err != nil {
			return nil, fmt.Errorf("failed to convert argument %d of %s:%s: %w", i, o.class, name, err)
		}
		largs = append(largs, lv)
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)

	return fromLua(ret)
}
