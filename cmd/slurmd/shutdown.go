// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
)

// coordinate runs the shutdown state machine until the engine has
// stopped. signals carries SIGINT, SIGTERM, and SIGHUP. stopEngine
// cancels the engine's serve context and served receives its result.
//
// SIGINT and SIGTERM record the shutdown time, kill every task, stop
// the engine, and wait for it to drain. SIGHUP is logged and ignored.
func (d *Daemon) coordinate(ctx context.Context, signals <-chan os.Signal, stopEngine context.CancelFunc, served <-chan error) error {
	for {
		select {
		case sig := <-signals:
			switch sig {
			case syscall.SIGHUP:
				d.logger.Info("reconfigure signal ignored", "signal", sig.String())
				continue
			case syscall.SIGINT, syscall.SIGTERM:
			default:
				d.logger.Debug("ignoring signal", "signal", sig.String())
				continue
			}
			if d.beginShutdown() {
				d.logger.Info("shutting down", "signal", sig.String())
			}
			return d.terminate(stopEngine, served)

		case err := <-served:
			// The engine stopped on its own: a connection arrived after
			// the shutdown time was set, or the listener failed.
			d.beginShutdown()
			d.executor.KillAll(syscall.SIGKILL)
			d.phase.Store(int32(PhaseTerminated))
			stopEngine()
			if err != nil {
				return fmt.Errorf("rpc engine: %w", err)
			}
			return nil

		case <-ctx.Done():
			d.beginShutdown()
			return d.terminate(stopEngine, served)
		}
	}
}

func (d *Daemon) terminate(stopEngine context.CancelFunc, served <-chan error) error {
	killed := d.executor.KillAll(syscall.SIGKILL)
	d.logger.Info("killed running steps", "steps", killed)

	stopEngine()
	err := <-served
	d.phase.Store(int32(PhaseTerminated))
	d.logger.Info("shutdown complete",
		"elapsed", d.clock.Now().Sub(d.ShutdownTime()),
	)
	if err != nil {
		return fmt.Errorf("rpc engine: %w", err)
	}
	return nil
}
