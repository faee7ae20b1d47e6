// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"path/filepath"
	"testing"
)

func TestProbe(t *testing.T) {
	node, err := Probe(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if node.Hostname == "" {
		t.Error("empty hostname")
	}
	if node.CPUs == 0 {
		t.Error("zero CPUs")
	}
	if node.RealMemoryMB == 0 {
		t.Error("zero memory")
	}
	if node.TmpDiskMB == 0 {
		t.Error("zero tmp disk")
	}
}

func TestProbeMissingTmpDir(t *testing.T) {
	if _, err := Probe(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Probe of a missing tmp dir succeeded")
	}
}
