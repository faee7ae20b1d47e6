// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/TheBaxes/slurm/lib/protocol"
	"github.com/TheBaxes/slurm/lib/rpc"
	"github.com/TheBaxes/slurm/lib/testutil"
)

type runningDaemon struct {
	*testDaemon
	server      *rpc.Server
	address     string
	coordinated <-chan error
}

// startDaemon serves the daemon's mux on loopback and runs the shutdown
// coordinator against the test daemon's signal channel.
func startDaemon(t *testing.T, ctx context.Context) *runningDaemon {
	t.Helper()
	daemon := newTestDaemon(t)

	listener, err := rpc.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	server := rpc.NewServer(rpc.ServerConfig{
		Dispatcher:   daemon.Mux(),
		Logger:       testutil.Logger(),
		ShuttingDown: daemon.ShuttingDown,
	})
	serveCtx, stopEngine := context.WithCancel(ctx)
	t.Cleanup(stopEngine)
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(serveCtx, listener)
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "engine ready")

	coordinated := make(chan error, 1)
	go func() {
		coordinated <- daemon.coordinate(ctx, daemon.signals, stopEngine, served)
	}()
	return &runningDaemon{
		testDaemon:  daemon,
		server:      server,
		address:     listener.Addr().String(),
		coordinated: coordinated,
	}
}

func (r *runningDaemon) call(t *testing.T, messageType protocol.MessageType, payload any) (*protocol.Message, error) {
	t.Helper()
	message, err := protocol.NewMessage(messageType, payload)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	client := &rpc.Client{DialTimeout: time.Second, ReplyTimeout: 5 * time.Second}
	return client.SendRecv(context.Background(), r.address, message)
}

func (r *runningDaemon) requireTerminated(t *testing.T) {
	t.Helper()
	if err := testutil.RequireReceive(t, r.coordinated, 5*time.Second, "coordinator to return"); err != nil {
		t.Fatalf("coordinate: %v", err)
	}
	if !r.ShuttingDown() {
		t.Error("shutdown time not recorded")
	}
	if phase := r.Phase(); phase != PhaseTerminated {
		t.Errorf("Phase = %s, want terminated", phase)
	}
	if state := r.server.State(); state != rpc.StateStopped {
		t.Errorf("engine state = %s, want stopped", state)
	}
	if calls := r.executor.killAllCalls(); len(calls) != 1 || calls[0] != syscall.SIGKILL {
		t.Errorf("KillAll calls = %v, want one SIGKILL", calls)
	}

	_, err := r.call(t, protocol.RequestKillTasks, protocol.KillTasksRequest{JobID: 1})
	var transportError *rpc.TransportError
	if !errors.As(err, &transportError) {
		t.Errorf("call after shutdown error = %v, want TransportError", err)
	}
}

func TestShutdownRequestTerminatesDaemon(t *testing.T) {
	for _, messageType := range []protocol.MessageType{protocol.RequestShutdown, protocol.RequestShutdownImmediate} {
		t.Run(messageType.String(), func(t *testing.T) {
			daemon := startDaemon(t, context.Background())

			reply, err := daemon.call(t, messageType, nil)
			if err != nil {
				t.Fatalf("shutdown call: %v", err)
			}
			if err := rpc.ReturnCode(reply); err != nil {
				t.Fatalf("shutdown reply: %v", err)
			}
			daemon.requireTerminated(t)
		})
	}
}

func TestConnectionAfterShutdownTimeIsServicedInline(t *testing.T) {
	daemon := startDaemon(t, context.Background())

	// The shutdown time is set while the engine is blocked in accept.
	daemon.beginShutdown()

	reply, err := daemon.call(t, protocol.RequestRevokeJobCredential, protocol.RevokeCredentialRequest{JobID: 5})
	if err != nil {
		t.Fatalf("final call: %v", err)
	}
	if err := rpc.ReturnCode(reply); err != nil {
		t.Fatalf("final reply: %v", err)
	}
	daemon.requireTerminated(t)
	if daemon.authority.Cache().Len() != 1 {
		t.Error("final connection was not dispatched")
	}
}

func TestTerminationSignals(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		t.Run(sig.String(), func(t *testing.T) {
			daemon := startDaemon(t, context.Background())
			daemon.clock.Advance(time.Second)
			daemon.signals <- sig

			daemon.requireTerminated(t)
			if !daemon.ShutdownTime().Equal(testEpoch.Add(time.Second)) {
				t.Errorf("ShutdownTime = %v", daemon.ShutdownTime())
			}
		})
	}
}

func TestHangupIsInert(t *testing.T) {
	daemon := startDaemon(t, context.Background())
	daemon.signals <- syscall.SIGHUP

	// The engine still serves after the hangup has been consumed.
	for range 3 {
		reply, err := daemon.call(t, protocol.RequestRevokeJobCredential, protocol.RevokeCredentialRequest{JobID: 5})
		if err != nil {
			t.Fatalf("call after SIGHUP: %v", err)
		}
		if err := rpc.ReturnCode(reply); err != nil {
			t.Fatalf("reply after SIGHUP: %v", err)
		}
	}
	if daemon.ShuttingDown() || daemon.Phase() != PhaseRunning {
		t.Errorf("SIGHUP changed state: shutting down %v, phase %s", daemon.ShuttingDown(), daemon.Phase())
	}

	daemon.signals <- syscall.SIGTERM
	daemon.requireTerminated(t)
}

func TestContextCancelTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	daemon := startDaemon(t, ctx)
	cancel()
	daemon.requireTerminated(t)
}
