// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/codec"
)

// Reply is the outcome of a forwarded command.
type Reply struct {
	// Data is the actor's result for a single-context command.
	Data codec.RawMessage

	// Broadcast has one entry per resolved context for a broadcast,
	// nil where that context failed. Non-nil (possibly empty) for
	// every broadcast reply.
	Broadcast []codec.RawMessage

	IsBroadcast bool
}

// Future is a forwarded command whose reply is still being computed.
type Future struct {
	done  chan struct{}
	reply Reply
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(reply Reply, err error) {
	f.reply = reply
	f.err = err
	close(f.done)
}

// Done is closed once the reply is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the reply is available or ctx ends. Abandoning a
// future does not cancel the command; cancel the context passed to
// ForwardCommand for that.
func (f *Future) Wait(ctx context.Context) (Reply, error) {
	select {
	case <-f.done:
		return f.reply, f.err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// RootTransport is the entry point for commands addressed to window
// globals.
type RootTransport struct {
	sender      *CommandSender
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewRootTransport wires a resolver, sender and broadcaster over host
// and channel.
func NewRootTransport(host Host, channel RemoteChannel, sessionID string, config TransportConfig, clk clock.Clock, logger *slog.Logger) *RootTransport {
	sender := NewCommandSender(host, channel, sessionID, config, clk, logger)
	return &RootTransport{
		sender:      sender,
		broadcaster: NewBroadcaster(NewResolver(host), sender, config.BroadcastConcurrency, logger),
		logger:      logger,
	}
}

// ForwardCommand starts delivering command and returns a Future for
// its reply. A destination that sets both or neither of ID and
// ContextDescriptor is rejected here, before any work starts.
//
// For a single context, the Future fails with whatever the send
// failed with. For a broadcast, it fails only if the descriptor type
// is unsupported.
func (t *RootTransport) ForwardCommand(ctx context.Context, command *Command) (*Future, error) {
	if command == nil {
		return nil, &InvalidDestinationError{Reason: "nil command"}
	}
	if err := command.Destination.validateWindowGlobal(); err != nil {
		return nil, err
	}

	future := newFuture()
	if command.Destination.IsBroadcast() {
		go func() {
			results, err := t.broadcaster.Broadcast(ctx, command)
			future.settle(Reply{Broadcast: results, IsBroadcast: true}, err)
		}()
		return future, nil
	}

	go func() {
		data, err := t.sender.Send(ctx, command, command.Destination.ID)
		future.settle(Reply{Data: data}, err)
	}()
	return future, nil
}

// Execute forwards command and waits for its reply.
func (t *RootTransport) Execute(ctx context.Context, command *Command) (Reply, error) {
	future, err := t.ForwardCommand(ctx, command)
	if err != nil {
		return Reply{}, err
	}
	return future.Wait(ctx)
}
