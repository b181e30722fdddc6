// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Build stamps. Release builds overwrite them with the linker:
//
//	go build -ldflags "-X github.com/bureau-foundation/dispatch/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// Version names the release; development builds keep the -dev tag.
	Version = "0.1.0-dev"

	// GitCommit is the abbreviated revision the binary was built from.
	GitCommit = "unknown"

	// GitDirty is "true" when the working tree had local edits.
	GitDirty = "false"

	// BuildTime is when the binary was linked, in UTC.
	BuildTime = "unknown"
)

// revision is GitCommit with a "-dirty" suffix for builds from an
// edited tree.
func revision() string {
	if GitDirty == "true" {
		return GitCommit + "-dirty"
	}
	return GitCommit
}

// Info is the one-line form printed by --version:
// "0.1.0-dev (abc1234, 2026-03-01T09:00:00Z)".
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, revision(), BuildTime)
}

// Full extends Info with the toolchain and target platform.
func Full() string {
	return Info() + fmt.Sprintf("\n  Go: %s\n  Platform: %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
