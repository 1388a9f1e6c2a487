package rpchost

import (
	"fmt"
	"io"
	"net"
	"net/rpc"
	"sort"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/host"
)

// Client is a host.Provider backed by a remote strategy host.
type Client struct {
	client *rpc.Client
	log    zerolog.Logger
}

var _ host.Provider = (*Client)(nil)

// Dial connects to a strategy host over TCP.
func Dial(addr string, log zerolog.Logger) (*Client, error) {
	log.Info().Str("addr", addr).Msg("Connecting to strategy host")

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to strategy host: %w", err)
	}

	return NewClient(conn, log), nil
}

// NewClient speaks msgpack-RPC over conn.
func NewClient(conn io.ReadWriteCloser, log zerolog.Logger) *Client {
	return &Client{
		client: rpc.NewClientWithCodec(msgpackrpc.NewClientCodec(conn)),
		log:    log.With().Str("component", "rpchost_client").Logger(),
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) call(method string, args interface{}, reply interface{}) error {
	err := c.client.Call(ServiceName+"."+method, args, reply)
	if err != nil {
		c.log.Debug().
			Err(err).
			Str("method", method).
			Msg("RPC call failed")
	}
	return err
}

// Classes lists the remote classes.
func (c *Client) Classes() ([]string, error) {
	var reply ClassesReply
	if err := c.call("Classes", ClassesArgs{}, &reply); err != nil {
		return nil, err
	}
	sort.Strings(reply.Names)
	return reply.Names, nil
}

// Class resolves a remote class by name.
func (c *Client) Class(name string) (host.Class, error) {
	names, err := c.Classes()
	if err != nil {
		return nil, err
	}
	if i := sort.SearchStrings(names, name); i == len(names) || names[i] != name {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownClass, name)
	}
	return &remoteClass{c: c, name: name}, nil
}

type remoteClass struct {
	c    *Client
	name string
}

func (rc *remoteClass) Name() string {
	return rc.name
}

func (rc *remoteClass) New(kwargs map[string]any) (host.Object, error) {
	var reply NewReply
	if err := rc.c.call("New", NewArgs{Class: rc.name, Kwargs: kwargs}, &reply); err != nil {
		return nil, fmt.Errorf("failed to construct %s: %w", rc.name, err)
	}
	switch {
	case reply.UnknownClass:
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownClass, rc.name)
	case reply.KwargsUnsupported:
		return nil, host.ErrKeywordArgsUnsupported
	}
	return &remoteObject{c: rc.c, class: rc.name, handle: reply.Handle}, nil
}

// remoteObject is a handle into the server's object table.
type remoteObject struct {
	c      *Client
	class  string
	handle uint64
}

func (o *remoteObject) GetAttr(name string) (any, error) {
	var reply GetAttrReply
	if err := o.c.call("GetAttr", GetAttrArgs{Handle: o.handle, Name: name}, &reply); err != nil {
		return nil, err
	}
	if reply.Missing {
		return nil, fmt.Errorf("%w: %s.%s", host.ErrNoSuchAttribute, o.class, name)
	}
	return normalize(reply.Value), nil
}

func (o *remoteObject) SetAttr(name string, value any) error {
	var reply SetAttrReply
	return o.c.call("SetAttr", SetAttrArgs{Handle: o.handle, Name: name, Value: value}, &reply)
}

func (o *remoteObject) CallMethod(name string, args ...any) (any, error) {
	var reply CallReply
	if err := o.c.call("Call", CallArgs{Handle: o.handle, Method: name, Args: args}, &reply); err != nil {
		return nil, err
	}
	if reply.Missing {
		return nil, fmt.Errorf("%w: %s:%s", host.ErrNoSuchMethod, o.class, name)
	}
	return normalize(reply.Value), nil
}

// Close releases the remote object.
func (o *remoteObject) Close() error {
	var reply ReleaseReply
	return o.c.call("Release", ReleaseArgs{Handle: o.handle}, &reply)
}
