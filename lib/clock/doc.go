// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// dispatch packages.
//
// Production code holds a Clock instead of calling time.Now or
// time.After directly: the browsing-context registry stamps context
// creation with it, and the command sender paces retry attempts with
// it. Real() forwards to the time package. Fake() returns a clock that
// only moves when a test calls Advance, so retry pacing can be tested
// without sleeping.
//
// A goroutine that calls After or Sleep on a FakeClock registers a
// pending waiter. Tests call WaitForTimers before Advance so the
// waiter is registered before time moves:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go sender.Send(ctx, command, target)
//	fake.WaitForTimers(1)
//	fake.Advance(retryDelay)
package clock
