// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frameactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/lib/codec"
	"github.com/bureau-foundation/dispatch/lib/service"
	"github.com/bureau-foundation/dispatch/messagehandler"
)

// commandAction is the only action an actor socket serves.
const commandAction = "command"

// commandEnvelope is the request body of the command action.
type commandEnvelope struct {
	SessionID string                 `cbor:"session_id"`
	Command   messagehandler.Command `cbor:"command"`
}

// unknownCommandCode is sent when the actor's module table has no
// handler for a command.
const unknownCommandCode = "unknown-command"

// codedUnknownCommand attaches unknownCommandCode to an
// UnknownCommandError on the wire.
type codedUnknownCommand struct {
	*messagehandler.UnknownCommandError
}

func (codedUnknownCommand) ErrorCode() string { return unknownCommandCode }

// Actor serves commands for one execution surface.
type Actor struct {
	contextID browsingcontext.ID
	surface   browsingcontext.WindowGlobal
	modules   *messagehandler.Modules
	server    *service.SocketServer
	logger    *slog.Logger

	cancel    context.CancelFunc
	done      chan error
	closeOnce sync.Once
}

// NewActor creates an actor for surface, which must carry the socket
// path to listen on as its Endpoint. Call Start to begin serving.
func NewActor(contextID browsingcontext.ID, surface browsingcontext.WindowGlobal, modules *messagehandler.Modules, logger *slog.Logger) *Actor {
	logger = logger.With(
		"context_id", contextID,
		"inner_window_id", surface.InnerWindowID,
	)
	actor := &Actor{
		contextID: contextID,
		surface:   surface,
		modules:   modules,
		server:    service.NewSocketServer(surface.Endpoint, logger),
		logger:    logger,
	}
	actor.server.Handle(commandAction, actor.handleCommand)
	return actor
}

// Surface returns the surface the actor serves.
func (a *Actor) Surface() browsingcontext.WindowGlobal { return a.surface }

// Start begins serving and returns once the socket is listening.
func (a *Actor) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.server.Serve(ctx)
	}()

	select {
	case <-a.server.Ready():
		a.cancel = cancel
		a.done = done
		return nil
	case err := <-done:
		cancel()
		return fmt.Errorf("starting actor for context %d: %w", a.contextID, err)
	}
}

// Close stops the actor. Commands still running see their context
// cancelled and their callers receive an aborted response. Close
// returns after the socket has been removed and is safe to call more
// than once.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		if a.cancel == nil {
			return
		}
		a.cancel()
		if err := <-a.done; err != nil {
			a.logger.Error("actor stopped with error", "error", err)
		}
		a.logger.Debug("actor closed")
	})
}

func (a *Actor) handleCommand(ctx context.Context, raw []byte) (any, error) {
	var envelope commandEnvelope
	if err := codec.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding command: %w", err)
	}

	surface := a.surface
	result, err := a.modules.Dispatch(ctx, messagehandler.Request{
		SessionID: envelope.SessionID,
		Command:   &envelope.Command,
		ContextID: a.contextID,
		Surface:   &surface,
	})
	if err != nil {
		var unknown *messagehandler.UnknownCommandError
		if errors.As(err, &unknown) {
			return nil, codedUnknownCommand{unknown}
		}
		return nil, err
	}
	return result, nil
}
