// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"errors"
	"fmt"
	"syscall"
)

var (
	ErrUnknownStep      = errors.New("tasks: no such job step on this node")
	ErrStepExists       = errors.New("tasks: job step already running")
	ErrInvalidSpec      = errors.New("tasks: invalid launch spec")
	ErrPermissionDenied = errors.New("tasks: permission denied")
)

// StepID names a job step.
type StepID struct {
	JobID  uint32
	StepID uint32
}

func (s StepID) String() string { return fmt.Sprintf("%d.%d", s.JobID, s.StepID) }

// LaunchSpec describes the local tasks of one step.
type LaunchSpec struct {
	Step StepID
	UID  uint32
	GID  uint32
	Argv []string
	Env  []string
	Cwd  string

	// TaskCount is the number of local tasks to start.
	TaskCount uint32

	// GlobalTaskIDs gives the step-wide rank of each local task. When
	// shorter than TaskCount the local index is used.
	GlobalTaskIDs []uint32

	// IOAddress, when set, receives the tasks' combined output.
	IOAddress string
}

// Executor is the task execution subsystem as seen by the RPC layer.
type Executor interface {
	// Launch starts every task of spec and returns once they are
	// running.
	Launch(ctx context.Context, spec LaunchSpec) error

	// Signal delivers signal to every task of step.
	Signal(step StepID, signal syscall.Signal) error

	// Reattach connects an additional output stream to a running step
	// on behalf of uid.
	Reattach(ctx context.Context, step StepID, uid uint32, ioAddress string) error

	// KillAll delivers signal to every running step and returns how
	// many steps were signalled.
	KillAll(signal syscall.Signal) int
}
