// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/aconfigd/lib/codec"
	"github.com/bureau-foundation/aconfigd/lib/fileutil"
)

// ActionFunc processes a socket request for a specific action. The raw
// parameter is the full CBOR request (including the "action" field).
// The handler decodes action-specific fields from this raw message.
//
// Return a value to include in the success response, or an error for
// a failure response. If the returned value is nil, the response
// contains only {ok: true}.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire-format envelope for all socket protocol
// responses.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves the CBOR request-response protocol on a Unix
// socket. Actions are registered with Handle before calling Serve.
// Unknown actions receive an error response.
type SocketServer struct {
	socketPath string
	socketMode fs.FileMode
	listener   net.Listener
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	// activeConnections tracks in-flight request handlers for graceful
	// shutdown. Serve waits for all active connections to complete
	// before returning.
	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	server := newSocketServer(logger)
	server.socketPath = socketPath
	return server
}

// NewListenerServer creates a server that accepts on an existing
// listener, such as the one returned by ControlSocketListener. Serve
// closes the listener on return.
func NewListenerServer(listener net.Listener, logger *slog.Logger) *SocketServer {
	server := newSocketServer(logger)
	server.listener = listener
	return server
}

func newSocketServer(logger *slog.Logger) *SocketServer {
	server := &SocketServer{
		handlers: make(map[string]ActionFunc),
		logger:   logger,
	}
	server.handlers[BatchAction] = server.handleBatch
	return server
}

// SetSocketMode sets the permissions applied to a path-bound socket
// after it is created. Zero leaves the umask-derived mode.
func (s *SocketServer) SetSocketMode(mode fs.FileMode) {
	s.socketMode = mode
}

// Handle registers a handler for the given action name. Panics if the
// action is already registered.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// listen returns the injected listener, or binds socketPath after
// removing any stale socket file.
func (s *SocketServer) listen() (net.Listener, func(), error) {
	if s.listener != nil {
		return s.listener, func() { s.listener.Close() }, nil
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	cleanup := func() {
		listener.Close()
		os.Remove(s.socketPath)
	}
	if s.socketMode != 0 {
		if err := fileutil.SetPermission(s.socketPath, s.socketMode); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return listener, cleanup, nil
}

// Serve accepts connections and dispatches requests to registered
// action handlers. Blocks until ctx is cancelled, then stops accepting
// new connections and waits for active handlers to complete.
func (s *SocketServer) Serve(ctx context.Context) error {
	listener, cleanup, err := s.listen()
	if err != nil {
		return err
	}
	defer cleanup()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long we wait for the client to send its request.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for the response to be written.
const writeTimeout = 10 * time.Second

// maxRequestSize is the maximum size of a single CBOR request,
// including every request of a batch.
const maxRequestSize = 1024 * 1024

// handleConnection processes one request-response cycle.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeResponse(conn, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	s.writeResponse(conn, s.dispatch(ctx, raw))
}

// dispatch routes one raw request to its handler and builds the
// response envelope.
func (s *SocketServer) dispatch(ctx context.Context, raw []byte) Response {
	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		return Response{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	if header.Action == "" {
		return Response{Error: "missing required field: action"}
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		return Response{Error: fmt.Sprintf("unknown action %q", header.Action)}
	}

	result, err := handler(ctx, raw)
	if err != nil {
		s.logger.Error("failed to handle socket request",
			"action", header.Action,
			"error", err,
		)
		return Response{Error: err.Error()}
	}

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return Response{Error: fmt.Sprintf("internal: marshaling response: %v", err)}
		}
		response.Data = data
	}
	return response
}

// writeResponse sends the envelope. Write failures are logged at debug
// level: the connection is closing regardless.
func (s *SocketServer) writeResponse(conn net.Conn, response Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
