// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the node agent's own YAML settings.
//
// These are the agent-local knobs (paths, listen addresses, logging,
// metrics, how to find the controller). The cluster-wide main config is
// a separate file handled by package clusterconf and usually fetched
// from the controller at startup.
//
// Settings come from one file named by the SLURMD_CONFIG environment
// variable (via [Load]) or the --config flag (via [LoadFile]). Without
// either, the agent runs on [Default]. The file may carry development,
// staging, and production sections that override logging and RPC
// settings when [Config].Environment matches.
//
// After loading, ${SLURMD_SPOOL}, ${HOME}, and ${VAR:-default}
// patterns are expanded in path fields.
package config
