package luahost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/aristath/allocator/internal/host"
	"github.com/aristath/allocator/pkg/ndarray"
)

const identitySrc = `
Identity = {}
Identity.__index = Identity

function Identity.new(opts)
  local self = setmetatable({}, Identity)
  self.min_observations = 2
  if opts and opts.min_observations then
    self.min_observations = opts.min_observations
  end
  self.label = opts and opts.label
  return self
end

function Identity:predict(x)
  return x
end

function Identity:fail()
  error("division by zero")
end
`

const plainSrc = `
Plain = {}
Plain.__index = Plain
Plain.kind = "plain"

function Plain.new()
  return setmetatable({}, Plain)
end

function Plain:seed_plus(n)
  return self.seed + n
end

NotAClass = { answer = 42 }
`

const strictSrc = `
Strict = {}

function Strict.new()
  local self = { weights = 1 }
  return setmetatable(self, {
    __index = function(t, k) error("no attribute " .. k) end,
    __newindex = function(t, k, v) error("read-only " .. k) end,
  })
end
`

func newRuntime(t *testing.T, chunks ...string) *Runtime {
	t.Helper()
	rt := New(zerolog.Nop())
	t.Cleanup(rt.Close)
	for i, src := range chunks {
		require.NoError(t, rt.LoadString("chunk"+string(rune('a'+i)), src))
	}
	return rt
}

func TestRuntime_Classes(t *testing.T) {
	rt := newRuntime(t, identitySrc, plainSrc)

	names, err := rt.Classes()
	require.NoError(t, err)
	assert.Equal(t, []string{"Identity", "Plain"}, names)
}

func TestRuntime_ClassUnknown(t *testing.T) {
	rt := newRuntime(t, plainSrc)

	_, err := rt.Class("Missing")
	assert.ErrorIs(t, err, host.ErrUnknownClass)

	_, err = rt.Class("NotAClass")
	assert.ErrorIs(t, err, host.ErrUnknownClass)
}

func TestClass_NewWithOptions(t *testing.T) {
	rt := newRuntime(t, identitySrc)

	cls, err := rt.Class("Identity")
	require.NoError(t, err)
	assert.Equal(t, "Identity", cls.Name())

	obj, err := cls.New(map[string]any{"min_observations": 5, "label": "x"})
	require.NoError(t, err)

	v, err := obj.GetAttr(host.MinObservationsAttr)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	v, err = obj.GetAttr("label")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestClass_NewDefaults(t *testing.T) {
	rt := newRuntime(t, identitySrc)

	cls, err := rt.Class("Identity")
	require.NoError(t, err)
	obj, err := cls.New(nil)
	require.NoError(t, err)

	v, err := obj.GetAttr(host.MinObservationsAttr)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestClass_NewWithoutParametersRejectsKwargs(t *testing.T) {
	rt := newRuntime(t, plainSrc)

	cls, err := rt.Class("Plain")
	require.NoError(t, err)

	_, err = cls.New(map[string]any{"seed": 1})
	assert.ErrorIs(t, err, host.ErrKeywordArgsUnsupported)

	obj, err := cls.New(nil)
	require.NoError(t, err)
	require.NoError(t, obj.SetAttr("seed", 40))

	got, err := obj.CallMethod("seed_plus", 2)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
}

func TestObject_GetAttrFollowsMetatable(t *testing.T) {
	rt := newRuntime(t, plainSrc)

	cls, err := rt.Class("Plain")
	require.NoError(t, err)
	obj, err := cls.New(nil)
	require.NoError(t, err)

	v, err := obj.GetAttr("kind")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	_, err = obj.GetAttr(host.MinObservationsAttr)
	assert.ErrorIs(t, err, host.ErrNoSuchAttribute)
}

func TestObject_CallMethod(t *testing.T) {
	rt := newRuntime(t, identitySrc)

	cls, err := rt.Class("Identity")
	require.NoError(t, err)
	obj, err := cls.New(nil)
	require.NoError(t, err)

	input := []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}
	got, err := obj.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)
	assert.Equal(t, input, got)

	got, err = obj.CallMethod(host.PredictMethod, []any{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, got)

	_, err = obj.CallMethod("missing")
	assert.ErrorIs(t, err, host.ErrNoSuchMethod)

	_, err = obj.CallMethod("fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestRuntime_LoadStringErrors(t *testing.T) {
	rt := New(zerolog.Nop())
	defer rt.Close()

	assert.Error(t, rt.LoadString("syntax", "function ("))
	assert.Error(t, rt.LoadString("runtime", `error("boom")`))
}

func TestRuntime_SandboxedLibraries(t *testing.T) {
	rt := newRuntime(t, `HasIO = io ~= nil; HasOS = os ~= nil`)

	assert.Equal(t, "false", rt.L.GetGlobal("HasIO").String())
	assert.Equal(t, "false", rt.L.GetGlobal("HasOS").String())
}

func TestRuntime_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(identitySrc), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(plainSrc), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	rt := New(zerolog.Nop())
	defer rt.Close()

	n, err := rt.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := rt.Classes()
	require.NoError(t, err)
	assert.Equal(t, []string{"Identity", "Plain"}, names)
}

func TestRuntime_BundledScripts(t *testing.T) {
	rt := New(zerolog.Nop())
	defer rt.Close()

	n, err := rt.LoadDir(filepath.Join("..", "..", "..", "scripts", "strategies"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	names, err := rt.Classes()
	require.NoError(t, err)
	assert.Equal(t, []string{"LuaEqualWeight", "LuaRandomWeight", "PassThrough"}, names)

	cls, err := rt.Class("LuaEqualWeight")
	require.NoError(t, err)
	obj, err := cls.New(nil)
	require.NoError(t, err)

	got, err := obj.CallMethod(host.PredictMethod, []any{[]any{1.0, 2.0, 3.0, 4.0}, []any{5.0, 6.0, 7.0, 8.0}})
	require.NoError(t, err)
	assert.Equal(t, []any{
		[]any{0.25, 0.25, 0.25, 0.25},
		[]any{0.25, 0.25, 0.25, 0.25},
	}, got)
}

func TestConvert(t *testing.T) {
	rt := New(zerolog.Nop())
	defer rt.Close()

	lv, err := toLua(rt.L, []int{1, 2, 3})
	require.NoError(t, err)
	back, err := fromLua(lv)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, back)

	lv, err = toLua(rt.L, map[string]any{"seed": uint64(7), "on": true})
	require.NoError(t, err)
	back, err = fromLua(lv)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"seed": 7.0, "on": true}, back)

	_, err = toLua(rt.L, struct{}{})
	assert.Error(t, err)

	_, err = fromLua(rt.L.NewFunction(func(*lua.LState) int { return 0 }))
	assert.Error(t, err)
}

func TestObject_RaisingIndexReturnsErrors(t *testing.T) {
	rt := newRuntime(t, strictSrc)

	cls, err := rt.Class("Strict")
	require.NoError(t, err)
	obj, err := cls.New(nil)
	require.NoError(t, err)

	v, err := obj.GetAttr("weights")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = obj.GetAttr(host.MinObservationsAttr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no attribute min_observations")

	_, err = obj.CallMethod(host.PredictMethod, []any{1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no attribute predict")

	err = obj.SetAttr("seed", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only seed")

	s := host.NewStrategy(obj, zerolog.Nop())
	assert.Equal(t, 1, s.MinObservations())

	_, err = s.Predict(ndarray.Zeros(2))
	var callErr *host.CallError
	assert.ErrorAs(t, err, &callErr)
}

func TestBundledRandomWeight_PerInstanceStream(t *testing.T) {
	rt := New(zerolog.Nop())
	defer rt.Close()
	_, err := rt.LoadDir(filepath.Join("..", "..", "..", "scripts", "strategies"))
	require.NoError(t, err)

	cls, err := rt.Class("LuaRandomWeight")
	require.NoError(t, err)
	first, err := cls.New(nil)
	require.NoError(t, err)
	second, err := cls.New(nil)
	require.NoError(t, err)
	require.NoError(t, first.SetAttr("state", 12345))
	require.NoError(t, second.SetAttr("state", 12345))

	input := []any{[]any{1.0, 2.0, 3.0}, []any{4.0, 5.0, 6.0}}
	a1, err := first.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)
	a2, err := first.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)
	b1, err := second.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)

	assert.Equal(t, a1, b1)
	assert.NotEqual(t, a1, a2)

	for _, row := range a1.([]any) {
		sum := 0.0
		for _, w := range row.([]any) {
			sum += w.(float64)
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}

	require.NoError(t, first.SetAttr("seed", 7))
	s1, err := first.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)
	_, err = second.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)
	s2, err := first.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestBundledScripts_PackedEmptyBatch(t *testing.T) {
	rt := New(zerolog.Nop())
	defer rt.Close()
	_, err := rt.LoadDir(filepath.Join("..", "..", "..", "scripts", "strategies"))
	require.NoError(t, err)

	empty := map[string]any{"shape": []any{0.0, 3.0}, "data": []any{}}
	for _, name := range []string{"LuaEqualWeight", "LuaRandomWeight"} {
		cls, err := rt.Class(name)
		require.NoError(t, err)
		obj, err := cls.New(nil)
		require.NoError(t, err)

		got, err := obj.CallMethod(host.PredictMethod, empty)
		require.NoError(t, err, name)
		assert.Equal(t, empty, got, name)
	}
}
