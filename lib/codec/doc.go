// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every dispatch
// package that talks to a frame actor.
//
// Commands and their results cross the frame-actor socket as CBOR.
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same command always produces the same bytes. Types that are also
// written as JSON (the command envelope read from CLI files) carry
// only json tags; fxamacker/cbor falls back to those names.
//
//	data, err := codec.Marshal(command)
//	err = codec.Unmarshal(data, &command)
//
// Streams (sockets) use NewEncoder and NewDecoder. ToJSON converts a
// RawMessage result into JSON for human-facing output.
package codec
