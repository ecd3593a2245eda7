// Package rpc exposes the facade over JSON-RPC for callers on the internal network.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/auth"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/facade"
)

// Server exposes the facade as the "Chatbot" RPC service.
type Server struct {
	mu        sync.Mutex
	listener  net.Listener
	closed    bool
	rpcServer *rpc.Server
	logger    *zap.Logger
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the dispatcher.
func NewServer(d *facade.Dispatcher, tokens *auth.TokenService, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rpcServer := rpc.NewServer()
	handler := &Handler{dispatcher: d, tokens: tokens, logger: logger}
	if err := rpcServer.RegisterName("Chatbot", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts RPC connections on ln until it is closed. Serving after
// Shutdown closes ln and returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.logger.Warn("rpc accept error", zap.Error(err))
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.closed = true
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	if err := ln.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the listening address, or nil before serving starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler implements the Chatbot RPC methods.
type Handler struct {
	dispatcher *facade.Dispatcher
	tokens     *auth.TokenService
	logger     *zap.Logger
}

// DispatchArgs is a facade request with the caller's bearer token.
type DispatchArgs struct {
	Token   string                 `json:"token"`
	Request domain.DispatchRequest `json:"request"`
}

// DispatchReply carries the JSON encoded facade result.
type DispatchReply struct {
	Result json.RawMessage `json:"result"`
}

// Dispatch runs one facade request with the blocking calling convention.
func (h *Handler) Dispatch(args *DispatchArgs, reply *DispatchReply) error {
	if args == nil {
		return errors.New("dispatch request is required")
	}

	var id *domain.Identity
	if args.Token != "" {
		var err error
		if id, err = h.tokens.Validate(args.Token); err != nil {
			h.logger.Debug("ignoring invalid rpc token", zap.Error(err))
			id = nil
		}
	}

	out, err := h.dispatcher.Dispatch(context.Background(), id, args.Request)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if reply != nil {
		reply.Result = raw
	}
	return nil
}
