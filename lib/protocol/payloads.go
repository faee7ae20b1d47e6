// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// ReturnCodeReply is the payload of ResponseReturnCode.
type ReturnCodeReply struct {
	ReturnCode ReturnCode `cbor:"1,keyasint"`
}

// ConfigRequest is the payload of RequestConfig. Flags is an opaque
// bit set telling the controller which optional sections to include.
type ConfigRequest struct {
	Flags uint32 `cbor:"1,keyasint"`
}

// NodeRegistrationRequest announces this node to the controller.
type NodeRegistrationRequest struct {
	// Timestamp is when the registration was built (Unix seconds).
	Timestamp    int64  `cbor:"1,keyasint"`
	NodeName     string `cbor:"2,keyasint"`
	CPUs         uint32 `cbor:"3,keyasint"`
	RealMemoryMB uint64 `cbor:"4,keyasint"`
	TmpDiskMB    uint64 `cbor:"5,keyasint"`
	Version      string `cbor:"6,keyasint,omitempty"`
	// UptimeSeconds is how long the machine has been up.
	UptimeSeconds uint64 `cbor:"7,keyasint,omitempty"`
	// Hostname is the machine's host name, which can differ from
	// NodeName.
	Hostname string `cbor:"8,keyasint,omitempty"`
}

// JobCredential authorizes a job step to run on the nodes it names.
// The controller signs the CBOR encoding of the credential with
// Signature cleared.
type JobCredential struct {
	JobID     uint32 `cbor:"1,keyasint"`
	StepID    uint32 `cbor:"2,keyasint"`
	UID       uint32 `cbor:"3,keyasint"`
	NodeList  string `cbor:"4,keyasint,omitempty"`
	IssuedAt  int64  `cbor:"5,keyasint"`
	ExpiresAt int64  `cbor:"6,keyasint"`
	Signature []byte `cbor:"7,keyasint,omitempty"`
}

// LaunchTasksRequest asks the agent to start the local tasks of a job
// step.
type LaunchTasksRequest struct {
	JobID      uint32        `cbor:"1,keyasint"`
	StepID     uint32        `cbor:"2,keyasint"`
	UID        uint32        `cbor:"3,keyasint"`
	GID        uint32        `cbor:"4,keyasint"`
	Credential JobCredential `cbor:"5,keyasint"`
	Argv       []string      `cbor:"6,keyasint"`
	Env        []string      `cbor:"7,keyasint,omitempty"`
	Cwd        string        `cbor:"8,keyasint,omitempty"`
	// TaskCount is the number of tasks to start on this node.
	TaskCount uint32 `cbor:"9,keyasint"`
	// GlobalTaskIDs holds the step-wide rank of each local task.
	GlobalTaskIDs []uint32 `cbor:"10,keyasint,omitempty"`
	// ResponderIndex identifies this node within the launcher's node
	// list and is echoed back in the reply.
	ResponderIndex uint32 `cbor:"11,keyasint"`
	// IOAddress is where task stdio streams connect, if any.
	IOAddress string `cbor:"12,keyasint,omitempty"`
}

// LaunchTasksReply is the payload of ResponseLaunchTasks.
type LaunchTasksReply struct {
	ReturnCode     ReturnCode `cbor:"1,keyasint"`
	NodeName       string     `cbor:"2,keyasint"`
	ResponderIndex uint32     `cbor:"3,keyasint"`
}

// KillTasksRequest signals every local task of a job step.
type KillTasksRequest struct {
	JobID  uint32 `cbor:"1,keyasint"`
	StepID uint32 `cbor:"2,keyasint"`
	Signal uint32 `cbor:"3,keyasint"`
}

// ReattachTasksRequest reconnects a launcher's stdio streams to a
// running job step.
type ReattachTasksRequest struct {
	JobID     uint32 `cbor:"1,keyasint"`
	StepID    uint32 `cbor:"2,keyasint"`
	UID       uint32 `cbor:"3,keyasint"`
	IOAddress string `cbor:"4,keyasint"`
}

// RevokeCredentialRequest revokes the credential identified by job,
// step and issue time.
type RevokeCredentialRequest struct {
	JobID    uint32 `cbor:"1,keyasint"`
	StepID   uint32 `cbor:"2,keyasint"`
	IssuedAt int64  `cbor:"3,keyasint"`
}
