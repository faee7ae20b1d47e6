// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package inventory probes the machine resources a node reports when
// it registers with the controller.
package inventory

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultTmpDir is the scratch filesystem measured when none is
// configured.
const DefaultTmpDir = "/tmp"

// Node is a snapshot of this machine's resources.
type Node struct {
	Hostname      string
	CPUs          uint32
	RealMemoryMB  uint64
	TmpDiskMB     uint64
	UptimeSeconds uint64
}

// Probe reads the current inventory. tmpDir is the scratch filesystem
// to size; empty means DefaultTmpDir. CPU and memory are required;
// host details fall back to os.Hostname.
func Probe(ctx context.Context, tmpDir string) (*Node, error) {
	if tmpDir == "" {
		tmpDir = DefaultTmpDir
	}
	node := &Node{}

	if info, err := host.InfoWithContext(ctx); err == nil && info != nil {
		node.Hostname = info.Hostname
		node.UptimeSeconds = info.Uptime
	}
	if node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("reading hostname: %w", err)
		}
		node.Hostname = hostname
	}

	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("counting CPUs: %w", err)
	}
	node.CPUs = uint32(cpus)

	memory, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory size: %w", err)
	}
	node.RealMemoryMB = memory.Total >> 20

	usage, err := disk.UsageWithContext(ctx, tmpDir)
	if err != nil {
		return nil, fmt.Errorf("sizing %s: %w", tmpDir, err)
	}
	node.TmpDiskMB = usage.Total >> 20

	return node, nil
}
