// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/codec"
)

// MaxRetryAttempts is the number of consecutive aborts a retrying
// send tolerates. The send that aborts for the (MaxRetryAttempts+1)th
// time fails with a DiscardedContextError, so a permanently aborting
// target sees MaxRetryAttempts+1 sends.
const MaxRetryAttempts = 10

// TransportConfig holds the retry and fan-out policy of a transport.
type TransportConfig struct {
	// RetryOnAbort makes every command retry on abort unless the
	// command sets RetryOnAbort itself.
	RetryOnAbort bool

	// RetryDelay is how long to wait between attempts after an abort.
	// Zero yields to the scheduler and retries immediately.
	RetryDelay time.Duration

	// BroadcastConcurrency caps the number of in-flight sends per
	// broadcast. Zero or negative means no cap.
	BroadcastConcurrency int
}

// CommandSender delivers one command to one context.
type CommandSender struct {
	host      Host
	channel   RemoteChannel
	sessionID string
	config    TransportConfig
	clock     clock.Clock
	logger    *slog.Logger
}

// NewCommandSender creates a sender that sends over channel on behalf
// of sessionID.
func NewCommandSender(host Host, channel RemoteChannel, sessionID string, config TransportConfig, clk clock.Clock, logger *slog.Logger) *CommandSender {
	return &CommandSender{
		host:      host,
		channel:   channel,
		sessionID: sessionID,
		config:    config,
		clock:     clk,
		logger:    logger,
	}
}

// Send delivers command to target and returns the actor's result.
//
// Whether an aborted send is retried is decided once, up front: the
// command's own RetryOnAbort wins, then the transport's RetryOnAbort,
// and otherwise only contexts still showing their initial document
// are retried. Errors other than aborts are returned unmodified. A
// context that is unknown, discarded, or out of retries yields a
// *DiscardedContextError.
func (s *CommandSender) Send(ctx context.Context, command *Command, target browsingcontext.ID) (codec.RawMessage, error) {
	info, exists := s.host.Context(target)
	if !exists {
		return nil, &DiscardedContextError{ContextID: target, Cause: browsingcontext.ErrUnknownContext}
	}
	if info.Discarded {
		return nil, &DiscardedContextError{ContextID: target, Cause: browsingcontext.ErrDiscarded}
	}

	retryOnAbort := s.retryOnAbort(command, info)

	if top, exists := s.host.Context(info.Top); exists && top.Replaced {
		if !retryOnAbort {
			return nil, &DiscardedContextError{ContextID: target, Cause: browsingcontext.ErrReplaced}
		}
		current, open := s.host.CurrentTopLevel(info.BrowserID)
		if !open {
			return nil, &DiscardedContextError{ContextID: target, Cause: browsingcontext.ErrDiscarded}
		}
		s.logger.Debug("retargeting command to replacement context",
			"command", command.Name(),
			"context_id", target,
			"replacement_id", current,
		)
		target = current
	}

	// The progress handle outlives the surfaces it reports, so every
	// attempt below asks it for the surface that is current then.
	progress, ok := s.host.Progress(target)
	if !ok {
		return nil, &DiscardedContextError{ContextID: target, Cause: browsingcontext.ErrDiscarded}
	}

	attempts := 0
	for {
		surface, err := progress.WaitForWindowGlobal(ctx)
		if err != nil {
			if errors.Is(err, browsingcontext.ErrDiscarded) {
				return nil, &DiscardedContextError{ContextID: target, Attempts: attempts, Cause: err}
			}
			return nil, err
		}

		result, err := s.channel.SendCommand(ctx, surface, command, s.sessionID)
		attempts++
		if err == nil {
			return result, nil
		}
		if !IsAbort(err) {
			return nil, err
		}
		if !retryOnAbort {
			return nil, &DiscardedContextError{ContextID: target, Attempts: attempts, Cause: err}
		}
		if attempts > MaxRetryAttempts {
			s.logger.Warn("giving up on aborting context",
				"command", command.Name(),
				"context_id", target,
				"attempts", attempts,
			)
			return nil, &DiscardedContextError{ContextID: target, Attempts: attempts, Cause: err}
		}

		s.logger.Debug("command aborted, retrying",
			"command", command.Name(),
			"context_id", target,
			"inner_window_id", surface.InnerWindowID,
			"attempt", attempts,
		)
		if err := s.yield(ctx); err != nil {
			return nil, err
		}
	}
}

// retryOnAbort applies the policy precedence described on Send.
func (s *CommandSender) retryOnAbort(command *Command, info browsingcontext.Info) bool {
	if command.RetryOnAbort != nil {
		return *command.RetryOnAbort
	}
	if s.config.RetryOnAbort {
		return true
	}
	return info.CurrentWindowGlobal != nil && info.CurrentWindowGlobal.IsInitialDocument
}

// yield lets the host finish tearing down or recreating the surface
// before the next attempt.
func (s *CommandSender) yield(ctx context.Context) error {
	runtime.Gosched()
	select {
	case <-s.clock.After(s.config.RetryDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
