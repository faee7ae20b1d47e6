// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Tests pin the daemon's shutdown timestamp and job credential expiry
// through Now, and the RPC engine's accept-failure backoff through
// After. Structs that need time hold a Clock field; main wires
// clock.Real(), tests wire clock.Fake(epoch) and call Advance.
package clock
