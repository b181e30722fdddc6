// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagehandler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/dispatch/browsingcontext"
	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/lib/codec"
)

func newTestTransport(universe *testUniverse, channel RemoteChannel, config TransportConfig) *RootTransport {
	return NewRootTransport(universe.registry, channel, "session-under-test", config, clock.Real(), testLogger())
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	universe := newTestUniverse(t)
	first := universe.tab(1)
	second := universe.tab(2)
	third := universe.tab(3)

	failing, _ := universe.registry.Context(second)
	channel := &recordingChannel{respond: func(ctx context.Context, call channelCall) (codec.RawMessage, error) {
		if call.surface.InnerWindowID == failing.CurrentWindowGlobal.InnerWindowID {
			return nil, errors.New("script error")
		}
		return echoInnerWindow(ctx, call)
	}}

	reply, err := newTestTransport(universe, channel, TransportConfig{}).Execute(context.Background(), broadcastCommand(ContextDescriptor{Type: DescriptorAll}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !reply.IsBroadcast {
		t.Fatal("reply is not marked as a broadcast")
	}
	if len(reply.Broadcast) != 3 {
		t.Fatalf("len(Broadcast) = %d, want 3", len(reply.Broadcast))
	}
	for index, id := range []browsingcontext.ID{first, third} {
		position := index * 2
		info, _ := universe.registry.Context(id)
		if got := decodeUint(t, reply.Broadcast[position]); got != info.CurrentWindowGlobal.InnerWindowID {
			t.Errorf("Broadcast[%d] = %d, want %d", position, got, info.CurrentWindowGlobal.InnerWindowID)
		}
	}
	if reply.Broadcast[1] != nil {
		t.Errorf("Broadcast[1] = %x, want nil for the failed target", []byte(reply.Broadcast[1]))
	}
}

func TestBroadcastDiscardedTargetIsNil(t *testing.T) {
	universe := newTestUniverse(t)
	universe.tab(1)
	second := universe.tab(2)

	channel := &recordingChannel{}
	channel.respond = func(ctx context.Context, call channelCall) (codec.RawMessage, error) {
		info, _ := universe.registry.Context(second)
		if info.CurrentWindowGlobal != nil && call.surface.InnerWindowID == info.CurrentWindowGlobal.InnerWindowID {
			return nil, &AbortError{Endpoint: call.surface.Endpoint}
		}
		return echoInnerWindow(ctx, call)
	}

	reply, err := newTestTransport(universe, channel, TransportConfig{}).Execute(context.Background(), broadcastCommand(ContextDescriptor{Type: DescriptorAll}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if reply.Broadcast[0] == nil || reply.Broadcast[1] != nil {
		t.Errorf("Broadcast = %x, want [result, nil]", reply.Broadcast)
	}
}

func TestBroadcastEmptyResolution(t *testing.T) {
	universe := newTestUniverse(t)
	channel := &recordingChannel{respond: echoInnerWindow}

	reply, err := newTestTransport(universe, channel, TransportConfig{}).Execute(context.Background(), broadcastCommand(ContextDescriptor{Type: DescriptorAll}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if reply.Broadcast == nil || len(reply.Broadcast) != 0 {
		t.Errorf("Broadcast = %#v, want empty non-nil", reply.Broadcast)
	}
	if got := channel.callCount(); got != 0 {
		t.Errorf("sends = %d, want 0", got)
	}
}

func TestBroadcastUnsupportedDescriptorRejects(t *testing.T) {
	universe := newTestUniverse(t)
	universe.tab(1)
	channel := &recordingChannel{respond: echoInnerWindow}

	future, err := newTestTransport(universe, channel, TransportConfig{}).ForwardCommand(context.Background(), broadcastCommand(ContextDescriptor{Type: "worker"}))
	if err != nil {
		t.Fatalf("ForwardCommand returned a synchronous error: %v", err)
	}
	_, err = future.Wait(context.Background())

	var unsupported *UnsupportedDescriptorError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want *UnsupportedDescriptorError", err)
	}
	if got := channel.callCount(); got != 0 {
		t.Errorf("sends = %d, want 0", got)
	}
}

func TestBroadcastDispatchesConcurrently(t *testing.T) {
	universe := newTestUniverse(t)
	for browserID := browsingcontext.BrowserID(1); browserID <= 3; browserID++ {
		universe.tab(browserID)
	}

	// Each send blocks until all three have started; a serial
	// broadcaster would never get past the first.
	var started sync.WaitGroup
	started.Add(3)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()
	channel := &recordingChannel{respond: func(ctx context.Context, call channelCall) (codec.RawMessage, error) {
		started.Done()
		select {
		case <-allStarted:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return echoInnerWindow(ctx, call)
	}}

	reply, err := newTestTransport(universe, channel, TransportConfig{}).Execute(context.Background(), broadcastCommand(ContextDescriptor{Type: DescriptorAll}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for index, result := range reply.Broadcast {
		if result == nil {
			t.Errorf("Broadcast[%d] is nil", index)
		}
	}
}

func TestBroadcastConcurrencyLimit(t *testing.T) {
	universe := newTestUniverse(t)
	for browserID := browsingcontext.BrowserID(1); browserID <= 4; browserID++ {
		universe.tab(browserID)
	}

	var inFlight, peak atomic.Int32
	channel := &recordingChannel{respond: func(ctx context.Context, call channelCall) (codec.RawMessage, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		return echoInnerWindow(ctx, call)
	}}

	reply, err := newTestTransport(universe, channel, TransportConfig{BroadcastConcurrency: 1}).Execute(context.Background(), broadcastCommand(ContextDescriptor{Type: DescriptorAll}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(reply.Broadcast) != 4 {
		t.Fatalf("len(Broadcast) = %d, want 4", len(reply.Broadcast))
	}
	if got := peak.Load(); got != 1 {
		t.Errorf("peak in-flight sends = %d, want 1", got)
	}
}
