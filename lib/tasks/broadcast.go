// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"io"
	"slices"
	"sync"
	"time"
)

// defaultSinkWriteTimeout bounds one write to one output sink. A peer
// that stops reading for this long is dropped.
const defaultSinkWriteTimeout = 5 * time.Second

type deadlineSetter interface {
	SetWriteDeadline(time.Time) error
}

// broadcaster copies everything written to it to each attached sink.
// A sink that fails or times out a write is closed and dropped. Writes
// to sinks happen outside the lock, so attach and Close never wait on
// a slow peer.
type broadcaster struct {
	mu     sync.Mutex
	sinks  []io.WriteCloser
	closed bool

	// writeTimeout overrides defaultSinkWriteTimeout when positive.
	writeTimeout time.Duration
}

func (b *broadcaster) Write(p []byte) (int, error) {
	b.mu.Lock()
	sinks := slices.Clone(b.sinks)
	timeout := b.writeTimeout
	b.mu.Unlock()
	if timeout <= 0 {
		timeout = defaultSinkWriteTimeout
	}

	var failed []io.WriteCloser
	for _, sink := range sinks {
		if setter, ok := sink.(deadlineSetter); ok {
			setter.SetWriteDeadline(time.Now().Add(timeout))
		}
		if _, err := sink.Write(p); err != nil {
			failed = append(failed, sink)
		}
	}
	if len(failed) > 0 {
		b.drop(failed)
	}
	// Output with no listener is discarded, not an error for the task.
	return len(p), nil
}

func (b *broadcaster) drop(failed []io.WriteCloser) {
	b.mu.Lock()
	b.sinks = slices.DeleteFunc(b.sinks, func(sink io.WriteCloser) bool {
		return slices.Contains(failed, sink)
	})
	b.mu.Unlock()
	for _, sink := range failed {
		sink.Close()
	}
}

// attach adds sink. It reports false, closing sink, when the
// broadcaster has already been closed.
func (b *broadcaster) attach(sink io.WriteCloser) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sink.Close()
		return false
	}
	b.sinks = append(b.sinks, sink)
	return true
}

// count returns the number of attached sinks.
func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sinks)
}

func (b *broadcaster) Close() error {
	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	b.closed = true
	b.mu.Unlock()
	for _, sink := range sinks {
		sink.Close()
	}
	return nil
}
