// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package configless

import "os"

// MaterializeVolatile always fails with ErrVolatileUnsupported off
// Linux.
func MaterializeVolatile(kind, content string) (*os.File, string, error) {
	return nil, "", ErrVolatileUnsupported
}
