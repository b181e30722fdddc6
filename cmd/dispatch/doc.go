// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// dispatch forwards one protocol command through a simulated browser
// and prints the reply.
//
// A scenario file describes the browsing-context universe: browsers,
// their tabs and nested frames, and the URL each document shows.
// dispatch builds that universe, starts a frame actor on a Unix socket
// for every document, and sends the command from a JSONC file through
// the root message handler. Commands addressed to a single context
// print that context's result; broadcasts print one entry per context,
// with null for contexts that went away.
//
//	dispatch run --scenario universe.yaml --command describe.jsonc
//
// --navigate-after navigates a context while the command is in flight,
// which shows the retry-on-abort behaviour end to end:
//
//	dispatch run --scenario universe.yaml --command sleep.jsonc \
//	    --navigate-after 100ms --navigate-context 1
//
// Configuration comes from --config or DISPATCH_CONFIG; without
// either, built-in defaults apply.
package main
