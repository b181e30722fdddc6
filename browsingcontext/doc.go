// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package browsingcontext is the host-side model of browsing contexts
// that the dispatch transport routes commands to.
//
// A browsing context is a logical frame or tab with a stable [ID]. At
// any instant it may or may not have an execution surface, a
// [WindowGlobal], attached: navigation detaches the current surface
// and attaches a new one later, and a process swap replaces a
// top-level context with a fresh one that shares its [BrowserID]. The
// transport never mutates this state. It only queries it through the
// [Registry] and waits on it through a [Progress] handle.
//
// The Registry is an arena keyed by ID. The host embedding is its only
// writer; every read returns a snapshot ([Info]) rather than a pointer
// into the arena, so callers re-query after each suspension point
// instead of holding references that may have gone stale.
//
// # Progress handles
//
// [Registry.Progress] returns the long-lived tracking handle for a
// context. For a top-level context the handle is keyed by BrowserID
// and follows process swaps; for a nested frame it is keyed by the
// frame's ID. [Progress.WaitForWindowGlobal] blocks until a surface
// is attached and fails with [ErrDiscarded] if the tracked context
// goes away while waiting, so a wait never outlives its context.
package browsingcontext
