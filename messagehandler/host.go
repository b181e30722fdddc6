// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/lib/codec"
)

// Host is the read-only view of the browsing-context universe the
// transport needs. *browsingcontext.Registry implements it.
type Host interface {
	// Context returns a snapshot of id, including discarded and
	// replaced contexts. Reports false for IDs never allocated.
	Context(id browsingcontext.ID) (browsingcontext.Info, bool)

	// TopLevelContexts lists the live top-level context of every
	// open browser (or only browserID's when non-zero).
	TopLevelContexts(browserID browsingcontext.BrowserID) []browsingcontext.ID

	// Subtree flattens a context and its descendants, parent first.
	Subtree(id browsingcontext.ID) []browsingcontext.ID

	// CurrentTopLevel returns the live top-level context of a browser.
	CurrentTopLevel(browserID browsingcontext.BrowserID) (browsingcontext.ID, bool)

	// Progress returns the stable tracking handle for id.
	Progress(id browsingcontext.ID) (*browsingcontext.Progress, bool)
}

// RemoteChannel delivers a command to the frame actor behind one
// execution surface. Implementations return an *AbortError when the
// actor is torn down mid-call; every other error is passed through to
// the caller untouched.
type RemoteChannel interface {
	SendCommand(ctx context.Context, surface browsingcontext.WindowGlobal, command *Command, sessionID string) (codec.RawMessage, error)
}

// RemoteChannelFunc adapts a function to RemoteChannel.
type RemoteChannelFunc func(ctx context.Context, surface browsingcontext.WindowGlobal, command *Command, sessionID string) (codec.RawMessage, error)

// SendCommand calls f.
func (f RemoteChannelFunc) SendCommand(ctx context.Context, surface browsingcontext.WindowGlobal, command *Command, sessionID string) (codec.RawMessage, error) {
	return f(ctx, surface, command, sessionID)
}
