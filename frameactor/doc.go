// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frameactor runs the content-side half of command dispatch.
//
// Each execution surface ([browsingcontext.WindowGlobal]) is served by
// an [Actor] listening on its own Unix socket. The actor decodes
// forwarded commands and runs them through a [messagehandler.Modules]
// table. [SocketChannel] is the matching
// [messagehandler.RemoteChannel]: it calls the actor named by a
// surface's Endpoint and reports a torn-down actor as a
// [messagehandler.AbortError], which is what lets the root transport
// retry across navigations.
//
// [Pool] ties actors to a [browsingcontext.Registry]. It starts an
// actor whenever it attaches a surface and stops it when the surface
// is detached, replaced or discarded, so the registry and the set of
// listening sockets never disagree for longer than one call.
package frameactor
