// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that fires when the clock is advanced to or
// past now+d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.waiters = append(c.waiters, fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	return channel
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	remaining := c.waiters[:0]
	for _, waiter := range c.waiters {
		if !c.current.Before(waiter.deadline) {
			waiter.channel <- c.current
			continue
		}
		remaining = append(remaining, waiter)
	}
	c.waiters = remaining
}

// Pending returns the number of After channels that have not fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
