// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/dispatch/lib/codec"
)

// Broadcaster sends one command to every context a descriptor
// resolves to.
type Broadcaster struct {
	resolver    *Resolver
	sender      *CommandSender
	concurrency int
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. concurrency caps in-flight
// sends; zero or negative means unlimited.
func NewBroadcaster(resolver *Resolver, sender *CommandSender, concurrency int, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		resolver:    resolver,
		sender:      sender,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Broadcast resolves the command's descriptor and sends to every
// match concurrently. The result has one entry per resolved context,
// in resolution order; a context whose send failed has a nil entry.
// Only an unresolvable descriptor fails the call as a whole.
func (b *Broadcaster) Broadcast(ctx context.Context, command *Command) ([]codec.RawMessage, error) {
	targets, err := b.resolver.Resolve(*command.Destination.ContextDescriptor)
	if err != nil {
		return nil, err
	}

	results := make([]codec.RawMessage, len(targets))

	// Every goroutine returns nil: a failing target must not cancel
	// or fail its siblings.
	var group errgroup.Group
	if b.concurrency > 0 {
		group.SetLimit(b.concurrency)
	}
	for index, target := range targets {
		group.Go(func() error {
			result, err := b.sender.Send(ctx, command, target)
			if err != nil {
				b.logger.Error("broadcast to context failed",
					"command", command.Name(),
					"context_id", target,
					"error", err,
				)
				return nil
			}
			results[index] = result
			return nil
		})
	}
	// Wait only joins the goroutines; none of them returns an error.
	group.Wait()

	return results, nil
}
