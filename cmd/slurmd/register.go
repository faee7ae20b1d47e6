// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TheBaxes/slurm/lib/inventory"
	"github.com/TheBaxes/slurm/lib/protocol"
	"github.com/TheBaxes/slurm/lib/rpc"
	"github.com/TheBaxes/slurm/lib/version"
)

// registrationMessage builds the node registration request from an
// inventory snapshot.
func (d *Daemon) registrationMessage(node *inventory.Node) (*protocol.Message, error) {
	return protocol.NewMessage(protocol.RequestNodeRegistration, protocol.NodeRegistrationRequest{
		Timestamp:     d.clock.Now().Unix(),
		NodeName:      d.nodeName,
		Hostname:      node.Hostname,
		CPUs:          node.CPUs,
		RealMemoryMB:  node.RealMemoryMB,
		TmpDiskMB:     node.TmpDiskMB,
		Version:       version.Short(),
		UptimeSeconds: node.UptimeSeconds,
	})
}

// register reports this node's inventory to the first controller that
// answers. Controllers are tried in order; only transport failures move
// on to the next one.
func (d *Daemon) register(ctx context.Context, caller rpc.Caller, controllers []string, tmpDir string, timeout time.Duration) error {
	if len(controllers) == 0 {
		return errors.New("no controller address to register with")
	}

	node, err := inventory.Probe(ctx, tmpDir)
	if err != nil {
		return fmt.Errorf("probing node inventory: %w", err)
	}
	message, err := d.registrationMessage(node)
	if err != nil {
		return err
	}

	var lastErr error
	for _, controller := range controllers {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		reply, err := caller.SendRecv(callCtx, controller, message)
		cancel()
		if err != nil {
			lastErr = err
			var transportError *rpc.TransportError
			if errors.As(err, &transportError) {
				d.logger.Warn("controller unreachable for registration", "controller", controller, "error", err)
				continue
			}
			return err
		}
		if err := rpc.ReturnCode(reply); err != nil {
			return fmt.Errorf("registration rejected by %s: %w", controller, err)
		}
		d.logger.Info("registered with controller",
			"controller", controller,
			"cpus", node.CPUs,
			"real_memory_mb", node.RealMemoryMB,
			"tmp_disk_mb", node.TmpDiskMB,
		)
		return nil
	}
	return lastErr
}
