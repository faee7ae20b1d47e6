// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/TheBaxes/slurm/lib/clock"
	"github.com/TheBaxes/slurm/lib/credential"
	"github.com/TheBaxes/slurm/lib/protocol"
	"github.com/TheBaxes/slurm/lib/rpc"
	"github.com/TheBaxes/slurm/lib/tasks"
)

// Phase is the shutdown coordinator's state.
type Phase int32

const (
	PhaseRunning Phase = iota
	PhaseShuttingDown
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseShuttingDown:
		return "shutting-down"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Daemon is the state shared by the RPC handlers and the shutdown
// coordinator. One Daemon exists per process and is passed explicitly.
type Daemon struct {
	pid      int
	nodeName string

	clock     clock.Clock
	logger    *slog.Logger
	authority *credential.Authority
	executor  tasks.Executor

	// shutdownAt is the unix time in nanoseconds at which shutdown
	// began. Zero while running; set exactly once.
	shutdownAt atomic.Int64
	phase      atomic.Int32

	// requestShutdown asks the coordinator to begin shutting down. In
	// production it sends SIGTERM to pid.
	requestShutdown func() error
}

// DaemonConfig holds the collaborators of a Daemon.
type DaemonConfig struct {
	PID       int
	NodeName  string
	Clock     clock.Clock
	Logger    *slog.Logger
	Authority *credential.Authority
	Executor  tasks.Executor

	// RequestShutdown overrides the self-SIGTERM used by the shutdown
	// RPC. Nil means unix.Kill(PID, SIGTERM).
	RequestShutdown func() error
}

func NewDaemon(config DaemonConfig) *Daemon {
	daemon := &Daemon{
		pid:             config.PID,
		nodeName:        config.NodeName,
		clock:           config.Clock,
		logger:          config.Logger,
		authority:       config.Authority,
		executor:        config.Executor,
		requestShutdown: config.RequestShutdown,
	}
	if daemon.clock == nil {
		daemon.clock = clock.Real()
	}
	if daemon.requestShutdown == nil {
		daemon.requestShutdown = func() error {
			return unix.Kill(daemon.pid, unix.SIGTERM)
		}
	}
	return daemon
}

// ShuttingDown reports whether shutdown has begun. The RPC engine
// checks it after every accept.
func (d *Daemon) ShuttingDown() bool {
	return d.shutdownAt.Load() != 0
}

// ShutdownTime returns when shutdown began, or the zero time.
func (d *Daemon) ShutdownTime() time.Time {
	nanos := d.shutdownAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Phase returns the coordinator's current state.
func (d *Daemon) Phase() Phase {
	return Phase(d.phase.Load())
}

// beginShutdown records the shutdown timestamp. It reports false when
// shutdown had already begun.
func (d *Daemon) beginShutdown() bool {
	now := d.clock.Now().UnixNano()
	if now == 0 {
		now = 1
	}
	if !d.shutdownAt.CompareAndSwap(0, now) {
		return false
	}
	d.phase.Store(int32(PhaseShuttingDown))
	return true
}

// Mux returns the dispatcher for every request type the agent serves.
func (d *Daemon) Mux() *rpc.Mux {
	mux := rpc.NewMux()
	mux.Handle(protocol.RequestLaunchTasks, d.handleLaunchTasks)
	mux.Handle(protocol.RequestKillTasks, d.handleKillTasks)
	mux.Handle(protocol.RequestReattachTasks, d.handleReattachTasks)
	mux.Handle(protocol.RequestRevokeJobCredential, d.handleRevokeCredential)
	mux.Handle(protocol.RequestShutdown, d.handleShutdown)
	mux.Handle(protocol.RequestShutdownImmediate, d.handleShutdown)
	return mux
}
