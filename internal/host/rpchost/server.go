package rpchost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/rpc"
	"sync"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/host"
)

// Service is the RPC receiver. Only RPC methods are exported on it.
type Service struct {
	provider host.Provider
	mu       sync.Mutex
	next     uint64
	objects  map[uint64]host.Object
	log      zerolog.Logger
}

// Classes lists the provider's classes.
func (s *Service) Classes(_ ClassesArgs, reply *ClassesReply) error {
	names, err := s.provider.Classes()
	if err != nil {
		return err
	}
	reply.Names = names
	return nil
}

// New constructs an object and registers it under a fresh handle.
func (s *Service) New(args NewArgs, reply *NewReply) error {
	cls, err := s.provider.Class(args.Class)
	if errors.Is(err, host.ErrUnknownClass) {
		reply.UnknownClass = true
		return nil
	}
	if err != nil {
		return err
	}

	var kwargs map[string]any
	if len(args.Kwargs) > 0 {
		kwargs = normalize(args.Kwargs).(map[string]interface{})
	}

	obj, err := cls.New(kwargs)
	if errors.Is(err, host.ErrKeywordArgsUnsupported) {
		reply.KwargsUnsupported = true
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.next++
	handle := s.next
	s.objects[handle] = obj
	s.mu.Unlock()

	s.log.Debug().
		Str("class", args.Class).
		Uint64("handle", handle).
		Msg("Constructed host object")

	reply.Handle = handle
	return nil
}

// GetAttr reads an attribute of a registered object.
func (s *Service) GetAttr(args GetAttrArgs, reply *GetAttrReply) error {
	obj, err := s.object(args.Handle)
	if err != nil {
		return err
	}
	v, err := obj.GetAttr(args.Name)
	if errors.Is(err, host.ErrNoSuchAttribute) {
		reply.Missing = true
		return nil
	}
	if err != nil {
		return err
	}
	reply.Value = v
	return nil
}

// SetAttr assigns an attribute of a registered object.
func (s *Service) SetAttr(args SetAttrArgs, _ *SetAttrReply) error {
	obj, err := s.object(args.Handle)
	if err != nil {
		return err
	}
	return obj.SetAttr(args.Name, normalize(args.Value))
}

// Call invokes a method of a registered object.
func (s *Service) Call(args CallArgs, reply *CallReply) error {
	obj, err := s.object(args.Handle)
	if err != nil {
		return err
	}
	v, err := obj.CallMethod(args.Method, normalizeAll(args.Args)...)
	if errors.Is(err, host.ErrNoSuchMethod) {
		reply.Missing = true
		return nil
	}
	if err != nil {
		return err
	}
	reply.Value = v
	return nil
}

// Release forgets a handle. Releasing an unknown handle is not an error.
func (s *Service) Release(args ReleaseArgs, _ *ReleaseReply) error {
	s.mu.Lock()
	delete(s.objects, args.Handle)
	s.mu.Unlock()
	return nil
}

func (s *Service) object(handle uint64) (host.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[handle]
	if !ok {
		return nil, fmt.Errorf("unknown object handle %d", handle)
	}
	return obj, nil
}

// Server serves a Provider to msgpack-RPC clients.
type Server struct {
	rpc *rpc.Server
	svc *Service
	log zerolog.Logger
}

// NewServer registers a Service for provider.
func NewServer(provider host.Provider, log zerolog.Logger) (*Server, error) {
	logger := log.With().Str("component", "rpchost_server").Logger()
	svc := &Service{
		provider: provider,
		objects:  make(map[uint64]host.Object),
		log:      logger,
	}

	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, svc); err != nil {
		return nil, fmt.Errorf("failed to register host service: %w", err)
	}

	return &Server{rpc: srv, svc: svc, log: logger}, nil
}

// ServeConn serves a single connection until the peer hangs up.
func (s *Server) ServeConn(conn io.ReadWriteCloser) {
	s.rpc.ServeCodec(msgpackrpc.NewServerCodec(conn))
}

// Serve accepts connections until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	s.log.Info().Str("addr", lis.Addr().String()).Msg("Strategy host listening")

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Client connected")
		go s.ServeConn(conn)
	}
}
