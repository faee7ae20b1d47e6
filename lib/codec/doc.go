// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every component
// that touches the node agent's wire protocol.
//
// All RPC traffic between the agent, the controller and job launchers
// is CBOR: one self-delimiting value per direction per connection, so no
// extra framing is needed. The encoder uses Core Deterministic Encoding
// (sorted map keys, smallest integer encoding, no indefinite-length
// items), which keeps signed payloads such as job credentials
// byte-stable.
//
// Buffer-oriented use (credential signing, tests):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Stream-oriented use (connections):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Protocol types use integer keys (`cbor:"1,keyasint"`) to keep messages
// compact; field numbers are part of the wire contract and must never be
// reused.
package codec
