// Package rpchost exposes a host.Provider over msgpack-RPC and consumes one remotely.
//
// The server keeps constructed objects in a handle table; clients address them by
// handle. Missing attributes, missing methods and constructors without options are
// reported through reply flags rather than error strings.
package rpchost

import "fmt"

// ServiceName is the net/rpc name the host service is registered under.
const ServiceName = "Host"

// ClassesArgs requests the class names defined by the host.
type ClassesArgs struct{}

// ClassesReply lists class names.
type ClassesReply struct {
	Names []string
}

// NewArgs constructs an object.
type NewArgs struct {
	Class  string
	Kwargs map[string]interface{}
}

// NewReply carries the handle of the constructed object.
type NewReply struct {
	Handle            uint64
	UnknownClass      bool
	KwargsUnsupported bool
}

// GetAttrArgs reads an attribute.
type GetAttrArgs struct {
	Handle uint64
	Name   string
}

// GetAttrReply carries an attribute value.
type GetAttrReply struct {
	Value   interface{}
	Missing bool
}

// SetAttrArgs assigns an attribute.
type SetAttrArgs struct {
	Handle uint64
	Name   string
	Value  interface{}
}

// SetAttrReply is empty.
type SetAttrReply struct{}

// CallArgs invokes a method.
type CallArgs struct {
	Handle uint64
	Method string
	Args   []interface{}
}

// CallReply carries a method result.
type CallReply struct {
	Value   interface{}
	Missing bool
}

// ReleaseArgs drops an object from the handle table.
type ReleaseArgs struct {
	Handle uint64
}

// ReleaseReply is empty.
type ReleaseReply struct{}

// normalize rewrites values produced by the msgpack decoder into host values:
// raw strings arrive as []byte and maps as map[interface{}]interface{}.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[fmt.Sprint(normalize(k))] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	}
	return v
}

func normalizeAll(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = normalize(v)
	}
	return out
}
