// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frameactor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/codec"
	"github.com/bureau-foundation/dispatch/lib/testutil"
	"github.com/bureau-foundation/dispatch/messagehandler"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testWorld is a registry whose surfaces are all served by real actors
// in a per-test socket directory.
type testWorld struct {
	t         *testing.T
	clock     *clock.FakeClock
	registry  *browsingcontext.Registry
	modules   *messagehandler.Modules
	pool      *Pool
	socketDir string
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()
	clk := clock.Fake(testEpoch)
	registry := browsingcontext.NewRegistry(clk, testLogger())
	modules := messagehandler.NewModules()
	RegisterBuiltins(modules, clk)
	socketDir := testutil.SocketDir(t)
	pool := NewPool(registry, socketDir, modules, testLogger())
	t.Cleanup(pool.Close)
	return &testWorld{
		t:         t,
		clock:     clk,
		registry:  registry,
		modules:   modules,
		pool:      pool,
		socketDir: socketDir,
	}
}

// tab opens a browser with a loaded document served by an actor.
func (w *testWorld) tab(browserID browsingcontext.BrowserID, url string) (browsingcontext.ID, browsingcontext.WindowGlobal) {
	w.t.Helper()
	id, err := w.registry.CreateTopLevel(browserID)
	if err != nil {
		w.t.Fatalf("CreateTopLevel(%d): %v", browserID, err)
	}
	surface, err := w.pool.Attach(id, url, false)
	if err != nil {
		w.t.Fatalf("Attach(%d): %v", id, err)
	}
	return id, surface
}

// frame creates a nested frame with its own actor.
func (w *testWorld) frame(parent browsingcontext.ID, url string) (browsingcontext.ID, browsingcontext.WindowGlobal) {
	w.t.Helper()
	id, err := w.registry.CreateFrame(parent)
	if err != nil {
		w.t.Fatalf("CreateFrame(%d): %v", parent, err)
	}
	surface, err := w.pool.Attach(id, url, false)
	if err != nil {
		w.t.Fatalf("Attach(%d): %v", id, err)
	}
	return id, surface
}

// blockUntilClosed registers test.block, which signals entered and
// then waits for its actor to close.
func (w *testWorld) blockUntilClosed() <-chan browsingcontext.ID {
	entered := make(chan browsingcontext.ID, 16)
	w.modules.Register("test", "block", func(ctx context.Context, request messagehandler.Request) (any, error) {
		entered <- request.ContextID
		<-ctx.Done()
		return nil, ctx.Err()
	})
	return entered
}

func describeCommand(contextID browsingcontext.ID) *messagehandler.Command {
	return &messagehandler.Command{
		ModuleName:  BuiltinModule,
		CommandName: "describe",
		Destination: messagehandler.Destination{
			Type: messagehandler.DestinationWindowGlobal,
			ID:   contextID,
		},
	}
}

func decodeDescribe(t *testing.T, raw codec.RawMessage) Describe {
	t.Helper()
	var result Describe
	if err := codec.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decoding describe result: %v", err)
	}
	return result
}
