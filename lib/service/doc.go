// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the request/response protocol frame
// actors speak on their Unix sockets.
//
// Each connection carries exactly one exchange: the client writes one
// CBOR map containing an "action" field plus action-specific fields,
// the server dispatches it to the [ActionFunc] registered for that
// action and writes one [Response]. CBOR is self-delimiting, so no
// framing is needed.
//
// [SocketServer.Serve] runs until its context is cancelled. Handlers
// receive a context derived from it; when the server shuts down while
// a handler is still running, the response carries [CodeAborted] so
// the client can tell "the actor went away" from "the action failed".
// [ServiceClient.Call] surfaces failure responses as *[ServiceError]
// and a connection that drops before a complete reply as an error
// wrapping [ErrConnectionLost]. Oversized and undecodable replies are
// reported separately: the action did run, so they are not a lost
// actor.
package service
