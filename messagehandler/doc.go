// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messagehandler routes commands from a root message handler
// to the browsing contexts that execute them.
//
// A [Command] names a module and command and carries a [Destination].
// Commands addressed to the root are handled in-process by the
// [RootMessageHandler]'s [Modules]. Commands addressed to window
// globals go through the [RootTransport]:
//
//   - A destination with an ID targets one context. The
//     [CommandSender] waits for the context's current execution
//     surface, sends the command over a [RemoteChannel] and, when the
//     surface is torn down mid-call (an [AbortError]), retries up to
//     [MaxRetryAttempts] times before failing with a
//     [DiscardedContextError].
//   - A destination with a [ContextDescriptor] is a broadcast. The
//     [Resolver] expands the descriptor into concrete contexts and the
//     [Broadcaster] sends to all of them concurrently. A failing
//     target contributes a nil entry; it never fails its siblings.
//
// [RootTransport.ForwardCommand] validates the destination before any
// goroutine starts: a destination with both or neither of ID and
// ContextDescriptor is a caller bug and is returned as an
// [InvalidDestinationError] immediately. Everything else is reported
// through the returned [Future].
//
// The package reads browsing-context state through the [Host]
// interface and never mutates it. [browsingcontext.Registry]
// implements Host.
package messagehandler
