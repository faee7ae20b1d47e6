// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the node agent's RPC vocabulary: message type
// tags, the CBOR envelope every request and reply travels in, the
// per-type payloads, and the numeric return codes carried by
// ReturnCodeReply.
//
// A connection carries exactly one request Message and at most one
// reply Message. The envelope's Type selects how Data is decoded:
//
//	request, _ := protocol.NewMessage(protocol.RequestKillTasks, protocol.KillTasksRequest{...})
//	...
//	var kill protocol.KillTasksRequest
//	err := request.Decode(&kill)
//
// The config bundle payload lives in package configless, next to the
// cache that persists it; this package only owns its type tag.
package protocol
