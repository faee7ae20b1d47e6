// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"log/slog"
	"net"
	"os"
	"testing"
)

// Logger returns a text logger on stderr that only emits errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// ClosedAddress returns a loopback host:port that was briefly bound and
// then released, so dialing it is refused.
func ClosedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving loopback port: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()
	return address
}
