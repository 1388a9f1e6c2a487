package rpchost_test

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/host"
	"github.com/aristath/allocator/internal/host/luahost"
	"github.com/aristath/allocator/internal/host/rpchost"
)

const classesSrc = `
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

Bare = {}
Bare.__index = Bare

function Bare.new()
  return setmetatable({}, Bare)
end
`

func newClient(t *testing.T) *rpchost.Client {
	t.Helper()

	rt := luahost.New(zerolog.Nop())
	t.Cleanup(rt.Close)
	require.NoError(t, rt.LoadString("classes", classesSrc))

	srv, err := rpchost.NewServer(rt, zerolog.Nop())
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	go srv.ServeConn(serverConn)

	c := rpchost.NewClient(clientConn, zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Classes(t *testing.T) {
	c := newClient(t)

	names, err := c.Classes()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bare", "Identity"}, names)

	_, err = c.Class("Nope")
	assert.ErrorIs(t, err, host.ErrUnknownClass)
}

func TestClient_ObjectRoundTrip(t *testing.T) {
	c := newClient(t)

	cls, err := c.Class("Identity")
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

	_, err = obj.GetAttr("nothing")
	assert.ErrorIs(t, err, host.ErrNoSuchAttribute)

	input := []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}
	got, err := obj.CallMethod(host.PredictMethod, input)
	require.NoError(t, err)
	assert.Equal(t, input, got)

	_, err = obj.CallMethod("missing")
	assert.ErrorIs(t, err, host.ErrNoSuchMethod)

	_, err = obj.CallMethod("fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestClient_KwargsUnsupported(t *testing.T) {
	c := newClient(t)

	cls, err := c.Class("Bare")
	require.NoError(t, err)

	_, err = cls.New(map[string]any{"seed": 3})
	assert.ErrorIs(t, err, host.ErrKeywordArgsUnsupported)

	obj, err := cls.New(nil)
	require.NoError(t, err)
	require.NoError(t, obj.SetAttr("seed", 3))

	v, err := obj.GetAttr("seed")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestClient_Release(t *testing.T) {
	c := newClient(t)

	cls, err := c.Class("Identity")
	require.NoError(t, err)
	obj, err := cls.New(nil)
	require.NoError(t, err)

	closer, ok := obj.(interface{ Close() error })
	require.True(t, ok)
	require.NoError(t, closer.Close())

	_, err = obj.GetAttr(host.MinObservationsAttr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown object handle")
}

func TestClient_HostStrategy(t *testing.T) {
	c := newClient(t)

	cls, err := c.Class("Identity")
	require.NoError(t, err)
	obj, err := cls.New(nil)
	require.NoError(t, err)

	s := host.NewStrategy(obj, zerolog.Nop())
	assert.Equal(t, 2, s.MinObservations())
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	rt := luahost.New(zerolog.Nop())
	defer rt.Close()
	require.NoError(t, rt.LoadString("classes", classesSrc))

	srv, err := rpchost.NewServer(rt, zerolog.Nop())
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	c, err := rpchost.Dial(lis.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	names, err := c.Classes()
	require.NoError(t, err)
	assert.Contains(t, names, "Identity")
	require.NoError(t, c.Close())

	cancel()
	assert.NoError(t, <-done)
}
