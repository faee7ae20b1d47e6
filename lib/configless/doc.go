// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package configless lets a node start without a provisioned config
// file.
//
// A [Bundle] holds up to ten config blobs, one per [Kind]. [Fetch]
// asks the controller for the bundle over RPC. [Persist] writes the
// present blobs to fixed filenames in a cache directory and [Load]
// reads them back; a missing file means the kind is not needed on this
// node. [MaterializeVolatile] places a blob in an anonymous memory file
// and returns a /proc path other code can open like a regular file.
//
// [Bootstrapper] ties these together: locate the controller, build the
// minimal bootstrap config, fetch the real bundle, cache it, and fall
// back to the cached copy when the controller cannot be reached.
//
// A failed Persist leaves files written before the failure in place.
package configless
