// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package locator finds the cluster controller.
//
// A statically configured address ("host" or "host:port") is parsed
// without touching the network. Otherwise the locator queries DNS for
// the _slurmctld._tcp service record, expanding the name over the
// resolver's search list, and picks the answer with the lowest
// priority value. When several answers share that priority the last
// one in the answer section wins; weights are ignored.
package locator
