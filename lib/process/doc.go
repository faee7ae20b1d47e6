// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for code that runs before
// the structured logger exists or after main has given up on it.
package process
