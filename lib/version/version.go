// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the agent's build version.
//
// Build metadata is injected with -ldflags, for example:
//
//	go build -ldflags "-X github.com/TheBaxes/slurm/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at build time.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"

	// Version is the release version sent in node registration.
	Version = "0.1.0-dev"
)

// Info returns the one-line string printed by --version.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}
