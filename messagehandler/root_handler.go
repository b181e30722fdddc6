// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/codec"
)

// RootMessageHandler is the session-level entry point. It runs root
// commands itself and hands window-global commands to its
// RootTransport.
type RootMessageHandler struct {
	sessionID string
	modules   *Modules
	transport *RootTransport
	logger    *slog.Logger

	mu        sync.Mutex
	destroyed bool
}

// NewRootMessageHandler creates a handler with a fresh session ID.
func NewRootMessageHandler(host Host, channel RemoteChannel, config TransportConfig, clk clock.Clock, logger *slog.Logger) *RootMessageHandler {
	sessionID := uuid.NewString()
	logger = logger.With("session_id", sessionID)
	return &RootMessageHandler{
		sessionID: sessionID,
		modules:   NewModules(),
		transport: NewRootTransport(host, channel, sessionID, config, clk, logger),
		logger:    logger,
	}
}

// SessionID returns the ID sent with every forwarded command.
func (h *RootMessageHandler) SessionID() string { return h.sessionID }

// Modules returns the table of root commands.
func (h *RootMessageHandler) Modules() *Modules { return h.modules }

// Transport returns the transport used for window-global commands.
func (h *RootMessageHandler) Transport() *RootTransport { return h.transport }

// HandleCommand runs command and waits for its reply. Root commands
// run in-process; everything else is forwarded. An empty destination
// type is treated as window-global.
func (h *RootMessageHandler) HandleCommand(ctx context.Context, command *Command) (Reply, error) {
	h.mu.Lock()
	destroyed := h.destroyed
	h.mu.Unlock()
	if destroyed {
		return Reply{}, ErrHandlerDestroyed
	}

	if command == nil {
		return Reply{}, &InvalidDestinationError{Reason: "nil command"}
	}
	if command.Destination.Type == DestinationRoot {
		return h.handleRootCommand(ctx, command)
	}
	return h.transport.Execute(ctx, command)
}

func (h *RootMessageHandler) handleRootCommand(ctx context.Context, command *Command) (Reply, error) {
	value, err := h.modules.Dispatch(ctx, Request{SessionID: h.sessionID, Command: command})
	if err != nil {
		return Reply{}, err
	}
	if value == nil {
		return Reply{}, nil
	}
	data, err := codec.Marshal(value)
	if err != nil {
		return Reply{}, fmt.Errorf("encoding result of %s: %w", command.Name(), err)
	}
	return Reply{Data: data}, nil
}

// Destroy makes every later HandleCommand fail with
// ErrHandlerDestroyed. Commands already in flight are not cancelled.
func (h *RootMessageHandler) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return
	}
	h.destroyed = true
	h.logger.Info("message handler destroyed")
}
