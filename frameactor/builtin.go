// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frameactor

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/dispatch/lib/clock"
	"github.com/bureau-foundation/dispatch/messagehandler"
)

// BuiltinModule is the module name of the commands registered by
// RegisterBuiltins.
const BuiltinModule = "frame"

// Describe is the result of frame.describe.
type Describe struct {
	ContextID         uint64 `json:"context_id"`
	InnerWindowID     uint64 `json:"inner_window_id"`
	URL               string `json:"url"`
	IsInitialDocument bool   `json:"is_initial_document"`
	SessionID         string `json:"session_id"`
}

// RegisterBuiltins adds the commands every actor answers:
//
//   - frame.describe reports the context and surface that ran it.
//   - frame.sleep waits params.duration_ms on clk and then describes
//     itself. It is cut short when the actor closes, which makes it
//     useful for exercising aborts.
func RegisterBuiltins(modules *messagehandler.Modules, clk clock.Clock) {
	modules.Register(BuiltinModule, "describe", func(ctx context.Context, request messagehandler.Request) (any, error) {
		return describe(request), nil
	})

	modules.Register(BuiltinModule, "sleep", func(ctx context.Context, request messagehandler.Request) (any, error) {
		duration, err := durationParam(request.Command.Params, "duration_ms")
		if err != nil {
			return nil, err
		}
		select {
		case <-clk.After(duration):
			return describe(request), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func describe(request messagehandler.Request) Describe {
	result := Describe{
		ContextID: uint64(request.ContextID),
		SessionID: request.SessionID,
	}
	if request.Surface != nil {
		result.InnerWindowID = request.Surface.InnerWindowID
		result.URL = request.Surface.URL
		result.IsInitialDocument = request.Surface.IsInitialDocument
	}
	return result
}

// durationParam reads a millisecond count from params. CBOR and JSON
// decoding produce different numeric types, so all of them are
// accepted.
func durationParam(params map[string]any, name string) (time.Duration, error) {
	value, exists := params[name]
	if !exists {
		return 0, fmt.Errorf("missing parameter %q", name)
	}
	var milliseconds int64
	switch typed := value.(type) {
	case uint64:
		milliseconds = int64(typed)
	case int64:
		milliseconds = typed
	case int:
		milliseconds = int64(typed)
	case float64:
		milliseconds = int64(typed)
	default:
		return 0, fmt.Errorf("parameter %q: expected a number, got %T", name, value)
	}
	if milliseconds < 0 {
		return 0, fmt.Errorf("parameter %q: must not be negative", name)
	}
	return time.Duration(milliseconds) * time.Millisecond, nil
}
