// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"net"
	"testing"
	"time"

	"github.com/TheBaxes/slurm/lib/testutil"
)

// readingSink returns a pipe end whose peer reads continuously and
// forwards each chunk on the returned channel.
func readingSink(t *testing.T) (net.Conn, <-chan string) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { remote.Close() })
	chunks := make(chan string, 16)
	go func() {
		buffer := make([]byte, 256)
		for {
			n, err := remote.Read(buffer)
			if err != nil {
				return
			}
			chunks <- string(buffer[:n])
		}
	}()
	return local, chunks
}

func TestBroadcasterDropsStalledSink(t *testing.T) {
	output := &broadcaster{writeTimeout: 50 * time.Millisecond}

	healthy, chunks := readingSink(t)
	// Nobody reads the far end, so every write blocks until the deadline.
	stalled, stalledPeer := net.Pipe()
	t.Cleanup(func() { stalledPeer.Close() })

	output.attach(stalled)
	output.attach(healthy)

	written := make(chan struct{})
	go func() {
		defer close(written)
		output.Write([]byte("line one\n"))
	}()
	testutil.RequireClosed(t, written, 5*time.Second, "write past a stalled sink")

	if got := testutil.RequireReceive(t, chunks, 5*time.Second, "healthy sink output"); got != "line one\n" {
		t.Errorf("healthy sink got %q", got)
	}
	if n := output.count(); n != 1 {
		t.Fatalf("%d sinks attached after timeout, want 1", n)
	}

	output.Write([]byte("line two\n"))
	if got := testutil.RequireReceive(t, chunks, 5*time.Second, "second chunk"); got != "line two\n" {
		t.Errorf("healthy sink got %q", got)
	}
	if _, err := stalled.Write([]byte("x")); err == nil {
		t.Error("dropped sink was not closed")
	}
}

func TestBroadcasterAttachDoesNotWaitForSlowWrite(t *testing.T) {
	output := &broadcaster{writeTimeout: time.Minute}
	stalled, stalledPeer := net.Pipe()
	t.Cleanup(func() { stalledPeer.Close() })
	output.attach(stalled)

	go output.Write([]byte("blocked\n"))

	healthy, _ := readingSink(t)
	attached := make(chan bool, 1)
	go func() {
		attached <- output.attach(healthy)
	}()
	if !testutil.RequireReceive(t, attached, 5*time.Second, "attach during a blocked write") {
		t.Error("attach refused on an open broadcaster")
	}
	// Close unblocks the pending write by closing the stalled sink.
	output.Close()
}

func TestBroadcasterClosedRefusesAttach(t *testing.T) {
	output := &broadcaster{}
	output.Close()

	sink, peer := net.Pipe()
	t.Cleanup(func() { peer.Close() })
	if output.attach(sink) {
		t.Fatal("attach succeeded after Close")
	}
	if _, err := sink.Write([]byte("x")); err == nil {
		t.Error("refused sink left open")
	}
	if n, err := output.Write([]byte("discarded")); n != len("discarded") || err != nil {
		t.Errorf("Write with no sinks = %d, %v", n, err)
	}
}
