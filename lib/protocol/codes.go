// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
)

// ReturnCode is the numeric outcome carried by ResponseReturnCode and
// LaunchTasksReply. Zero is success; small positive values are errno
// values; values from 1000 up are agent-specific.
type ReturnCode int32

const (
	CodeSuccess ReturnCode = 0
	// CodeError is the generic failure code for errors with no more
	// specific mapping.
	CodeError ReturnCode = -1

	CodePermissionDenied ReturnCode = 13 // EACCES
	CodeInvalidRequest   ReturnCode = 22 // EINVAL

	CodeKillTasksFailed    ReturnCode = 4001
	CodeLaunchFailed       ReturnCode = 4002
	CodeCredentialExpired  ReturnCode = 4004
	CodeCredentialRevoked  ReturnCode = 4005
	CodeCredentialInvalid  ReturnCode = 4006
	CodeReattachFailed     ReturnCode = 4008
	CodeUnknownJobStep     ReturnCode = 4010
	CodeShutdownInProgress ReturnCode = 4020
)

var codeNames = map[ReturnCode]string{
	CodeSuccess:            "success",
	CodeError:              "error",
	CodePermissionDenied:   "permission denied",
	CodeInvalidRequest:     "invalid request",
	CodeKillTasksFailed:    "kill tasks failed",
	CodeLaunchFailed:       "launch failed",
	CodeCredentialExpired:  "credential expired",
	CodeCredentialRevoked:  "credential revoked",
	CodeCredentialInvalid:  "credential invalid",
	CodeReattachFailed:     "reattach failed",
	CodeUnknownJobStep:     "unknown job step",
	CodeShutdownInProgress: "shutdown in progress",
}

func (c ReturnCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", int32(c))
}

// ReturnCodeError is a non-zero return code received from a peer (or
// produced by a handler) surfaced as a Go error.
type ReturnCodeError struct {
	Code ReturnCode
}

func (e *ReturnCodeError) Error() string {
	return fmt.Sprintf("return code %d (%s)", int32(e.Code), e.Code)
}

// CodeOf maps err to the return code a handler should put on the wire.
// nil maps to CodeSuccess, a wrapped *ReturnCodeError to its code, and
// anything else to CodeError.
func CodeOf(err error) ReturnCode {
	if err == nil {
		return CodeSuccess
	}
	var codeError *ReturnCodeError
	if errors.As(err, &codeError) {
		return codeError.Code
	}
	return CodeError
}
