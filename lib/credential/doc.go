// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential gates job-step launches on this node.
//
// A job credential is identified by its job id, step id, and issue
// time. [Cache] records identities the controller has revoked; once
// revoked an identity stays revoked for the life of the process.
// [Verify] and [Revoke] are the bare cache operations. [Authority]
// adds the checks a launch needs beyond revocation: the credential
// must not have expired, and when a controller public key is
// configured its Ed25519 signature must verify.
package credential
