// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the wall clock. Production code injects Real(); tests
// inject Fake() and move time explicitly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}
