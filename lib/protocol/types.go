// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// MessageType tags the payload carried in a Message. Values are part of
// the wire contract.
type MessageType uint16

const (
	// RequestNodeRegistration is sent by the agent to the controller at
	// startup to announce the node and its inventory.
	RequestNodeRegistration MessageType = 1001
	// RequestShutdown asks the agent to shut down gracefully.
	RequestShutdown MessageType = 1005
	// RequestShutdownImmediate asks the agent to shut down now. The
	// agent treats both shutdown variants the same way.
	RequestShutdownImmediate MessageType = 1006
	// RequestConfig asks the controller for the cluster config bundle.
	RequestConfig MessageType = 1017
	// ResponseConfig carries a configless.Bundle.
	ResponseConfig MessageType = 1018

	RequestLaunchTasks         MessageType = 6001
	ResponseLaunchTasks        MessageType = 6002
	RequestKillTasks           MessageType = 6004
	RequestReattachTasks       MessageType = 6005
	RequestRevokeJobCredential MessageType = 6010

	// ResponseReturnCode is the generic reply carrying only a return code.
	ResponseReturnCode MessageType = 8001
)

var messageTypeNames = map[MessageType]string{
	RequestNodeRegistration:    "node-registration",
	RequestShutdown:            "shutdown",
	RequestShutdownImmediate:   "shutdown-immediate",
	RequestConfig:              "config-request",
	ResponseConfig:             "config-response",
	RequestLaunchTasks:         "launch-tasks",
	ResponseLaunchTasks:        "launch-tasks-response",
	RequestKillTasks:           "kill-tasks",
	RequestReattachTasks:       "reattach-tasks",
	RequestRevokeJobCredential: "revoke-credential",
	ResponseReturnCode:         "return-code",
}

// String returns a short name for logs and metric labels. Unknown tags
// render as "unknown(N)".
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

// Known reports whether t is one of the tags defined in this package.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}
