// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/codec"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry() *browsingcontext.Registry {
	return browsingcontext.NewRegistry(clock.Fake(testEpoch), testLogger())
}

// testUniverse wraps a registry with helpers that build tabs and
// frames with attached surfaces.
type testUniverse struct {
	t             *testing.T
	registry      *browsingcontext.Registry
	innerWindowID uint64
}

func newTestUniverse(t *testing.T) *testUniverse {
	return &testUniverse{t: t, registry: newTestRegistry()}
}

// tab opens a browser with a loaded (non-initial) document.
func (u *testUniverse) tab(browserID browsingcontext.BrowserID) browsingcontext.ID {
	u.t.Helper()
	id, err := u.registry.CreateTopLevel(browserID)
	if err != nil {
		u.t.Fatalf("CreateTopLevel(%d): %v", browserID, err)
	}
	u.attach(id, false)
	return id
}

// frame creates a nested frame with a loaded document.
func (u *testUniverse) frame(parent browsingcontext.ID) browsingcontext.ID {
	u.t.Helper()
	id, err := u.registry.CreateFrame(parent)
	if err != nil {
		u.t.Fatalf("CreateFrame(%d): %v", parent, err)
	}
	u.attach(id, false)
	return id
}

// attach gives id a fresh surface and returns its inner window ID.
func (u *testUniverse) attach(id browsingcontext.ID, initial bool) uint64 {
	u.t.Helper()
	u.innerWindowID++
	surface := browsingcontext.WindowGlobal{
		InnerWindowID:     u.innerWindowID,
		URL:               fmt.Sprintf("https://example.test/%d", u.innerWindowID),
		IsInitialDocument: initial,
		Endpoint:          fmt.Sprintf("actor-%d.sock", u.innerWindowID),
	}
	if err := u.registry.AttachWindowGlobal(id, surface); err != nil {
		u.t.Fatalf("AttachWindowGlobal(%d): %v", id, err)
	}
	return u.innerWindowID
}

// channelCall records one SendCommand invocation.
type channelCall struct {
	surface   browsingcontext.WindowGlobal
	command   *Command
	sessionID string
}

// recordingChannel is a RemoteChannel whose behavior is supplied per
// test. It records every call.
type recordingChannel struct {
	mu      sync.Mutex
	calls   []channelCall
	respond func(ctx context.Context, call channelCall) (codec.RawMessage, error)
}

func (c *recordingChannel) SendCommand(ctx context.Context, surface browsingcontext.WindowGlobal, command *Command, sessionID string) (codec.RawMessage, error) {
	call := channelCall{surface: surface, command: command, sessionID: sessionID}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
	return c.respond(ctx, call)
}

func (c *recordingChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *recordingChannel) callsSnapshot() []channelCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]channelCall(nil), c.calls...)
}

// echoInnerWindow responds with the inner window ID of the surface
// that received the call.
func echoInnerWindow(_ context.Context, call channelCall) (codec.RawMessage, error) {
	return codec.Marshal(call.surface.InnerWindowID)
}

func alwaysAbort(_ context.Context, call channelCall) (codec.RawMessage, error) {
	return nil, &AbortError{Endpoint: call.surface.Endpoint}
}

func decodeUint(t *testing.T, raw codec.RawMessage) uint64 {
	t.Helper()
	var value uint64
	if err := codec.Unmarshal(raw, &value); err != nil {
		t.Fatalf("decoding result %x: %v", []byte(raw), err)
	}
	return value
}

func boolPointer(value bool) *bool { return &value }

func windowGlobalCommand(id browsingcontext.ID) *Command {
	return &Command{
		ModuleName:  "session",
		CommandName: "ping",
		Destination: Destination{Type: DestinationWindowGlobal, ID: id},
	}
}

func broadcastCommand(descriptor ContextDescriptor) *Command {
	return &Command{
		ModuleName:  "session",
		CommandName: "ping",
		Destination: Destination{Type: DestinationWindowGlobal, ContextDescriptor: &descriptor},
	}
}

func newTestSender(universe *testUniverse, channel RemoteChannel, config TransportConfig) *CommandSender {
	return NewCommandSender(universe.registry, channel, "session-under-test", config, clock.Real(), testLogger())
}
