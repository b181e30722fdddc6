// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for dispatch
// binaries.
//
// Configuration is loaded from a single file specified by either the
// DISPATCH_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no automatic file
// search. Binaries that run without a file use [Default].
//
// The file may carry environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// commands only retry on abort when they ask to, and logs are JSON.
//
// ${VAR} and ${VAR:-default} patterns in path fields are expanded
// after loading. No other environment variables override config
// values.
//
// This package depends on no other dispatch packages.
package config
