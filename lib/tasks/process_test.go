// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/TheBaxes/slurm/lib/testutil"
)

func ownSpec(job uint32, argv ...string) LaunchSpec {
	return LaunchSpec{
		Step:      StepID{JobID: job},
		UID:       uint32(os.Getuid()),
		GID:       uint32(os.Getgid()),
		Argv:      argv,
		TaskCount: 1,
	}
}

// outputListener accepts one output connection and returns everything
// written to it once the writer closes.
func outputListener(t *testing.T) (string, <-chan string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	received := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			received <- ""
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		data, _ := io.ReadAll(conn)
		received <- string(data)
	}()
	return listener.Addr().String(), received
}

func TestLaunchStreamsOutputWithRanks(t *testing.T) {
	executor := NewProcessExecutor(testutil.Logger())
	address, received := outputListener(t)

	spec := ownSpec(1, "/bin/sh", "-c", "echo rank=$SLURM_PROCID job=$SLURM_JOB_ID")
	spec.TaskCount = 2
	spec.GlobalTaskIDs = []uint32{4, 5}
	spec.IOAddress = address
	if err := executor.Launch(context.Background(), spec); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	testutil.RequireClosed(t, executor.Done(spec.Step), 10*time.Second, "step exit")
	output := testutil.RequireReceive(t, received, 10*time.Second, "task output")
	for _, want := range []string{"rank=4 job=1", "rank=5 job=1"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
	if steps := executor.Steps(); len(steps) != 0 {
		t.Errorf("finished step still registered: %v", steps)
	}
}

func TestSignalStopsStep(t *testing.T) {
	executor := NewProcessExecutor(testutil.Logger())
	spec := ownSpec(2, "/bin/sleep", "60")
	if err := executor.Launch(context.Background(), spec); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := executor.Signal(spec.Step, syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	testutil.RequireClosed(t, executor.Done(spec.Step), 10*time.Second, "step exit after SIGTERM")
}

func TestKillAll(t *testing.T) {
	executor := NewProcessExecutor(testutil.Logger())
	first := ownSpec(3, "/bin/sleep", "60")
	second := ownSpec(4, "/bin/sleep", "60")
	second.TaskCount = 3
	for _, spec := range []LaunchSpec{first, second} {
		if err := executor.Launch(context.Background(), spec); err != nil {
			t.Fatalf("Launch %s: %v", spec.Step, err)
		}
	}

	if n := executor.KillAll(syscall.SIGKILL); n != 2 {
		t.Errorf("KillAll signalled %d steps, want 2", n)
	}
	testutil.RequireClosed(t, executor.Done(first.Step), 10*time.Second, "first step exit")
	testutil.RequireClosed(t, executor.Done(second.Step), 10*time.Second, "second step exit")
}

func TestLaunchRejectsDuplicateAndInvalid(t *testing.T) {
	executor := NewProcessExecutor(testutil.Logger())
	spec := ownSpec(5, "/bin/sleep", "60")
	if err := executor.Launch(context.Background(), spec); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() {
		executor.KillAll(syscall.SIGKILL)
		testutil.RequireClosed(t, executor.Done(spec.Step), 10*time.Second, "cleanup")
	})

	if err := executor.Launch(context.Background(), spec); !errors.Is(err, ErrStepExists) {
		t.Errorf("duplicate Launch = %v, want ErrStepExists", err)
	}
	if err := executor.Launch(context.Background(), ownSpec(6)); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("empty argv Launch = %v, want ErrInvalidSpec", err)
	}
	if err := executor.Launch(context.Background(), ownSpec(7, "/nonexistent/binary")); err == nil {
		t.Error("Launch of missing binary succeeded")
	}
}

func TestUnknownStep(t *testing.T) {
	executor := NewProcessExecutor(testutil.Logger())
	missing := StepID{JobID: 99}
	if err := executor.Signal(missing, syscall.SIGTERM); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("Signal = %v, want ErrUnknownStep", err)
	}
	if err := executor.Reattach(context.Background(), missing, 0, "127.0.0.1:1"); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("Reattach = %v, want ErrUnknownStep", err)
	}
}

func TestReattachReceivesLaterOutput(t *testing.T) {
	executor := NewProcessExecutor(testutil.Logger())
	marker := filepath.Join(t.TempDir(), "go")

	spec := ownSpec(8, "/bin/sh", "-c", `while [ ! -e "$MARKER" ]; do sleep 0.05; done; echo late`)
	spec.Env = []string{"MARKER=" + marker}
	if err := executor.Launch(context.Background(), spec); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	other := spec.UID + 1
	if err := executor.Reattach(context.Background(), spec.Step, other, "127.0.0.1:1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Reattach by uid %d = %v, want ErrPermissionDenied", other, err)
	}

	address, received := outputListener(t)
	if err := executor.Reattach(context.Background(), spec.Step, spec.UID, address); err != nil {
		t.Fatalf("Reattach: %v", err)
	}
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	testutil.RequireClosed(t, executor.Done(spec.Step), 10*time.Second, "step exit")
	if output := testutil.RequireReceive(t, received, 10*time.Second, "reattached output"); output != "late\n" {
		t.Errorf("output = %q, want %q", output, "late\n")
	}
}
