// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers for dispatch binaries:
// reporting a fatal error to stderr before (or without) a structured
// logger, and exiting with the status a failure should produce.
package process
