// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the node agent's
// packages.
//
// [RequireReceive] and [RequireClosed] bound every channel wait in a
// test so a broken engine fails the test instead of hanging it.
// [Logger] returns a logger that stays quiet below error level.
// [ClosedAddress] returns a loopback address nothing listens on, for
// exercising dial failures.
package testutil
