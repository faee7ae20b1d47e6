// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"testing"
	"time"

	"github.com/TheBaxes/slurm/lib/protocol"
	"github.com/TheBaxes/slurm/lib/rpc"
	"github.com/TheBaxes/slurm/lib/testutil"
)

// startController serves handlers on a loopback engine standing in for
// the cluster controller and returns its address.
func startController(t *testing.T, handlers map[protocol.MessageType]rpc.HandlerFunc) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	mux := rpc.NewMux()
	for messageType, handler := range handlers {
		mux.Handle(messageType, handler)
	}
	listener, err := rpc.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	server := rpc.NewServer(rpc.ServerConfig{Dispatcher: mux, Logger: testutil.Logger()})
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "controller ready")
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "controller stopped")
	})
	return listener.Addr().String()
}
