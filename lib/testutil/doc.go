// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for dispatch packages.
//
// [SocketDir] returns a short directory under /tmp for frame-actor
// sockets; t.TempDir paths can exceed the 108-byte sun_path limit.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never hang on a goroutine that did not report
// back. They are the only place tests touch the wall clock.
//
// [UniqueID] hands out monotonically increasing identifiers.
//
// All helpers fail the test with t.Fatalf rather than returning
// errors.
package testutil
