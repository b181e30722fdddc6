// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/dispatch/lib/codec"
)

// CodeAborted marks a response whose handler was still running when
// the server shut down.
const CodeAborted = "aborted"

// ActionFunc processes one request. raw is the full CBOR request,
// including the "action" field; handlers decode their own fields
// from it.
//
// A nil result produces {ok: true}; a non-nil result is CBOR-encoded
// into the response's data field. An error produces {ok: false}. If
// the error implements CodedError its code is sent along.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// CodedError is implemented by handler errors that carry a
// machine-readable code for the client.
type CodedError interface {
	error
	ErrorCode() string
}

// Response is the envelope of every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Code  string           `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves the protocol on one Unix socket. Register
// actions with Handle before calling Serve.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	// activeConnections lets Serve wait for in-flight handlers before
	// returning.
	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Handle registers handler for action. Panics if the action is
// already registered.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Ready is closed once the socket is listening.
func (s *SocketServer) Ready() <-chan struct{} { return s.ready }

// SocketPath returns the path the server listens on.
func (s *SocketServer) SocketPath() string { return s.socketPath }

// Serve listens on the socket and dispatches requests until ctx is
// cancelled. It then stops accepting, waits for in-flight handlers
// (whose contexts are cancelled too) and removes the socket file.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	stopAccepting := context.AfterFunc(ctx, func() { listener.Close() })
	defer stopAccepting()

	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Debug("socket server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
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

// readTimeout bounds how long a client may take to send its request.
const readTimeout = 30 * time.Second

// writeTimeout bounds how long writing the response may take.
const writeTimeout = 10 * time.Second

// maxRequestSize caps a single CBOR request.
const maxRequestSize = 1024 * 1024

// maxResponseSize caps a single encoded Response.
const maxResponseSize = 1024 * 1024

// CodeResponseTooLarge is sent instead of a result whose encoded
// response would exceed maxResponseSize.
const CodeResponseTooLarge = "response-too-large"

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, "", fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, "", fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "", "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, "", fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if ctx.Err() != nil {
		// The server is shutting down underneath the handler; whatever
		// it produced was computed against a torn-down actor.
		s.writeError(conn, CodeAborted, "actor shut down during "+header.Action)
		return
	}
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		var coded CodedError
		code := ""
		if errors.As(err, &coded) {
			code = coded.ErrorCode()
		}
		s.writeError(conn, code, err.Error())
		return
	}

	s.writeSuccess(conn, header.Action, result)
}

// writeError sends {ok: false, code, error}. Write failures are only
// logged: the connection is closing regardless.
func (s *SocketServer) writeError(conn net.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Code:  code,
		Error: message,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true} with result encoded into data when
// result is non-nil. A result too large for the client to accept is
// replaced by a CodeResponseTooLarge error.
func (s *SocketServer) writeSuccess(conn net.Conn, action string, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, "", fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	encoded, err := codec.Marshal(response)
	if err != nil {
		s.writeError(conn, "", fmt.Sprintf("internal: marshaling response: %v", err))
		return
	}
	if len(encoded) > maxResponseSize {
		s.logger.Warn("response exceeds size limit",
			"action", action,
			"size", len(encoded),
			"limit", maxResponseSize,
		)
		s.writeError(conn, CodeResponseTooLarge,
			fmt.Sprintf("%s response is %d bytes, limit is %d", action, len(encoded), maxResponseSize))
		return
	}

	if _, err := conn.Write(encoded); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
