// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package configless

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MaterializeVolatile writes content to a close-on-exec anonymous
// memory file named after kind. It returns the open file and its
// /proc/<pid>/fd/<fd> path, which stays valid until the file is
// closed.
func MaterializeVolatile(kind, content string) (*os.File, string, error) {
	fd, err := unix.MemfdCreate(kind, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, "", fmt.Errorf("creating memory file for %s: %w", kind, err)
	}
	file := os.NewFile(uintptr(fd), kind)
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return nil, "", fmt.Errorf("writing memory file for %s: %w", kind, err)
	}
	return file, fmt.Sprintf("/proc/%d/fd/%d", os.Getpid(), fd), nil
}
