// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package configless

import (
	"os"
	"strings"
	"testing"
)

func TestMaterializeVolatile(t *testing.T) {
	content := "ClusterName=configless\nSlurmctldHost=ctrl1\n"
	file, path, err := MaterializeVolatile("slurm.conf", content)
	if err != nil {
		t.Fatalf("MaterializeVolatile: %v", err)
	}
	defer file.Close()

	if !strings.HasPrefix(path, "/proc/") || !strings.Contains(path, "/fd/") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(data) != content {
		t.Errorf("content = %q", data)
	}
}
