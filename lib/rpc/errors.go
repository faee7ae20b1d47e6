// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"fmt"
)

// ErrUnexpectedReply is returned when a reply's type does not match
// any type the caller accepts.
var ErrUnexpectedReply = errors.New("rpc: unexpected reply type")

// TransportError reports a failure to move bytes between the agent and
// a peer: dialing, writing the request, or reading the reply.
type TransportError struct {
	// Op is "dial", "send", or "receive".
	Op      string
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
