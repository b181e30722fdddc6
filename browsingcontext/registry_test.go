// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browsingcontext

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/testutil"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(clock.Fake(testEpoch), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustTopLevel(t *testing.T, registry *Registry, browserID BrowserID) ID {
	t.Helper()
	id, err := registry.CreateTopLevel(browserID)
	if err != nil {
		t.Fatalf("CreateTopLevel(%d): %v", browserID, err)
	}
	return id
}

func mustFrame(t *testing.T, registry *Registry, parent ID) ID {
	t.Helper()
	id, err := registry.CreateFrame(parent)
	if err != nil {
		t.Fatalf("CreateFrame(%d): %v", parent, err)
	}
	return id
}

func mustAttach(t *testing.T, registry *Registry, id ID, innerWindowID uint64) {
	t.Helper()
	surface := WindowGlobal{InnerWindowID: innerWindowID, URL: "https://example.test/"}
	if err := registry.AttachWindowGlobal(id, surface); err != nil {
		t.Fatalf("AttachWindowGlobal(%d): %v", id, err)
	}
}

func TestSubtreeIsPreOrder(t *testing.T) {
	registry := newTestRegistry(t)
	top := mustTopLevel(t, registry, 1)
	first := mustFrame(t, registry, top)
	nested := mustFrame(t, registry, first)
	second := mustFrame(t, registry, top)

	got := registry.Subtree(top)
	want := []ID{top, first, nested, second}
	if !slices.Equal(got, want) {
		t.Fatalf("Subtree(%d) = %v, want %v", top, got, want)
	}
}

func TestTopLevelContextsFiltersByBrowser(t *testing.T) {
	registry := newTestRegistry(t)
	first := mustTopLevel(t, registry, 10)
	second := mustTopLevel(t, registry, 20)

	if got := registry.TopLevelContexts(0); !slices.Equal(got, []ID{first, second}) {
		t.Errorf("TopLevelContexts(0) = %v, want [%d %d]", got, first, second)
	}
	if got := registry.TopLevelContexts(20); !slices.Equal(got, []ID{second}) {
		t.Errorf("TopLevelContexts(20) = %v, want [%d]", got, second)
	}
	if got := registry.TopLevelContexts(30); len(got) != 0 {
		t.Errorf("TopLevelContexts(30) = %v, want empty", got)
	}
}

func TestCreateTopLevelRejectsSecondTab(t *testing.T) {
	registry := newTestRegistry(t)
	mustTopLevel(t, registry, 1)
	if _, err := registry.CreateTopLevel(1); err == nil {
		t.Fatal("CreateTopLevel for an open browser should fail")
	}
	if _, err := registry.CreateTopLevel(0); err == nil {
		t.Fatal("CreateTopLevel(0) should fail")
	}
}

func TestContextSnapshot(t *testing.T) {
	registry := newTestRegistry(t)
	top := mustTopLevel(t, registry, 7)
	frame := mustFrame(t, registry, top)
	nested := mustFrame(t, registry, frame)
	mustAttach(t, registry, nested, 42)

	info, exists := registry.Context(nested)
	if !exists {
		t.Fatalf("Context(%d) not found", nested)
	}
	if info.Top != top || info.Parent != frame || info.BrowserID != 7 {
		t.Errorf("snapshot = %+v, want top %d parent %d browser 7", info, top, frame)
	}
	if info.CurrentWindowGlobal == nil || info.CurrentWindowGlobal.InnerWindowID != 42 {
		t.Errorf("CurrentWindowGlobal = %+v, want inner window 42", info.CurrentWindowGlobal)
	}
	if !info.CreatedAt.Equal(testEpoch) {
		t.Errorf("CreatedAt = %v, want %v", info.CreatedAt, testEpoch)
	}

	// Snapshots are copies.
	info.CurrentWindowGlobal.URL = "mutated"
	again, _ := registry.Context(nested)
	if again.CurrentWindowGlobal.URL == "mutated" {
		t.Error("mutating a snapshot changed the registry")
	}
}

func TestDetachDiscardsFrames(t *testing.T) {
	registry := newTestRegistry(t)
	top := mustTopLevel(t, registry, 1)
	frame := mustFrame(t, registry, top)
	mustAttach(t, registry, top, 1)

	if err := registry.DetachWindowGlobal(top); err != nil {
		t.Fatalf("DetachWindowGlobal: %v", err)
	}

	info, _ := registry.Context(top)
	if info.CurrentWindowGlobal != nil {
		t.Errorf("surface still attached after detach: %+v", info.CurrentWindowGlobal)
	}
	frameInfo, _ := registry.Context(frame)
	if !frameInfo.Discarded {
		t.Error("frame of the old document was not discarded")
	}
	if got := registry.Subtree(top); !slices.Equal(got, []ID{top}) {
		t.Errorf("Subtree after detach = %v, want [%d]", got, top)
	}
}

func TestReplaceTopLevel(t *testing.T) {
	registry := newTestRegistry(t)
	original := mustTopLevel(t, registry, 5)
	mustAttach(t, registry, original, 1)

	replacement, err := registry.ReplaceTopLevel(original)
	if err != nil {
		t.Fatalf("ReplaceTopLevel: %v", err)
	}

	info, _ := registry.Context(original)
	if !info.Replaced || info.CurrentWindowGlobal != nil {
		t.Errorf("original after swap = %+v, want replaced without surface", info)
	}
	if current, _ := registry.CurrentTopLevel(5); current != replacement {
		t.Errorf("CurrentTopLevel(5) = %d, want %d", current, replacement)
	}
	if got := registry.TopLevelContexts(0); !slices.Equal(got, []ID{replacement}) {
		t.Errorf("TopLevelContexts after swap = %v, want [%d]", got, replacement)
	}
	if err := registry.AttachWindowGlobal(original, WindowGlobal{InnerWindowID: 2}); !errors.Is(err, ErrReplaced) {
		t.Errorf("attach to replaced context: err = %v, want ErrReplaced", err)
	}
}

func TestProgressFollowsProcessSwap(t *testing.T) {
	registry := newTestRegistry(t)
	original := mustTopLevel(t, registry, 3)
	mustAttach(t, registry, original, 1)

	progress, ok := registry.Progress(original)
	if !ok {
		t.Fatal("Progress not available for live context")
	}

	replacement, err := registry.ReplaceTopLevel(original)
	if err != nil {
		t.Fatalf("ReplaceTopLevel: %v", err)
	}
	mustAttach(t, registry, replacement, 2)

	id, err := progress.ContextID()
	if err != nil || id != replacement {
		t.Fatalf("ContextID() = %d, %v; want %d", id, err, replacement)
	}
	surface, err := progress.CurrentWindowGlobal()
	if err != nil || surface == nil || surface.InnerWindowID != 2 {
		t.Fatalf("CurrentWindowGlobal() = %+v, %v; want inner window 2", surface, err)
	}
}

func TestWaitForWindowGlobalWakesOnAttach(t *testing.T) {
	registry := newTestRegistry(t)
	top := mustTopLevel(t, registry, 1)
	progress, _ := registry.Progress(top)

	type waitResult struct {
		surface WindowGlobal
		err     error
	}
	results := make(chan waitResult, 1)
	go func() {
		surface, err := progress.WaitForWindowGlobal(context.Background())
		results <- waitResult{surface, err}
	}()

	mustAttach(t, registry, top, 99)

	result := testutil.RequireReceive(t, results, 5*time.Second, "waiting for surface")
	if result.err != nil {
		t.Fatalf("WaitForWindowGlobal: %v", result.err)
	}
	if result.surface.InnerWindowID != 99 {
		t.Errorf("InnerWindowID = %d, want 99", result.surface.InnerWindowID)
	}
}

func TestWaitForWindowGlobalFailsOnDiscard(t *testing.T) {
	registry := newTestRegistry(t)
	top := mustTopLevel(t, registry, 1)
	frame := mustFrame(t, registry, top)
	progress, _ := registry.Progress(frame)

	errs := make(chan error, 1)
	go func() {
		_, err := progress.WaitForWindowGlobal(context.Background())
		errs <- err
	}()

	if err := registry.Discard(top); err != nil {
		t.Fatalf("Discard: %v", err)
	}

	err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for discard")
	if !errors.Is(err, ErrDiscarded) {
		t.Fatalf("err = %v, want ErrDiscarded", err)
	}
	if _, ok := registry.Progress(frame); ok {
		t.Error("Progress should be unavailable for a discarded frame")
	}
}

func TestWaitForWindowGlobalHonorsContext(t *testing.T) {
	registry := newTestRegistry(t)
	top := mustTopLevel(t, registry, 1)
	progress, _ := registry.Progress(top)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := progress.WaitForWindowGlobal(ctx)
		errs <- err
	}()
	cancel()

	if err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for cancel"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDiscardClosesBrowser(t *testing.T) {
	registry := newTestRegistry(t)
	top := mustTopLevel(t, registry, 4)
	if err := registry.Discard(top); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, open := registry.CurrentTopLevel(4); open {
		t.Error("browser still has a current top-level context after discard")
	}
	if err := registry.Discard(top); !errors.Is(err, ErrDiscarded) {
		t.Errorf("second Discard: err = %v, want ErrDiscarded", err)
	}
	if _, err := registry.CreateFrame(999); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("CreateFrame(999): err = %v, want ErrUnknownContext", err)
	}
}
