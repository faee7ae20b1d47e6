// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first.
//
//	err := testutil.RequireReceive(t, done, 5*time.Second, "Serve to return")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", describe(msgAndArgs))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received after %v", describe(msgAndArgs), timeout)
	}
	panic("unreachable")
}

// RequireClosed waits until ch is closed or yields a value.
//
//	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: channel still open after %v", describe(msgAndArgs), timeout)
	}
}

// describe renders the trailing arguments: nothing, one value, or a
// format string and its operands.
func describe(msgAndArgs []any) string {
	switch len(msgAndArgs) {
	case 0:
		return "wait"
	case 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
