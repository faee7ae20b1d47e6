// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"syscall"

	"github.com/TheBaxes/slurm/lib/credential"
	"github.com/TheBaxes/slurm/lib/protocol"
	"github.com/TheBaxes/slurm/lib/rpc"
	"github.com/TheBaxes/slurm/lib/tasks"
)

func (d *Daemon) handleLaunchTasks(ctx context.Context, request *rpc.Request) *protocol.Message {
	start := d.clock.Now()

	var launch protocol.LaunchTasksRequest
	if err := request.Decode(&launch); err != nil {
		d.logger.Warn("malformed launch request", "remote", remoteAddr(request), "error", err)
		return protocol.NewReturnCode(protocol.CodeInvalidRequest)
	}
	step := tasks.StepID{JobID: launch.JobID, StepID: launch.StepID}

	code := d.launch(ctx, &launch, step)
	d.logger.Info("launch tasks",
		"step", step.String(),
		"uid", launch.UID,
		"tasks", launch.TaskCount,
		"return_code", code,
		"elapsed", d.clock.Now().Sub(start),
	)

	reply, err := protocol.NewMessage(protocol.ResponseLaunchTasks, protocol.LaunchTasksReply{
		ReturnCode:     code,
		NodeName:       d.nodeName,
		ResponderIndex: launch.ResponderIndex,
	})
	if err != nil {
		d.logger.Error("encoding launch reply", "error", err)
		return protocol.NewReturnCode(protocol.CodeError)
	}
	return reply
}

func (d *Daemon) launch(ctx context.Context, launch *protocol.LaunchTasksRequest, step tasks.StepID) protocol.ReturnCode {
	if d.ShuttingDown() {
		return protocol.CodeShutdownInProgress
	}

	cred := &launch.Credential
	if cred.JobID != launch.JobID || cred.StepID != launch.StepID || cred.UID != launch.UID {
		d.logger.Warn("credential does not match launch request",
			"step", step.String(),
			"credential", credential.IdentityOf(cred).String(),
		)
		return protocol.CodeCredentialInvalid
	}
	if err := d.authority.Verify(cred); err != nil {
		d.logger.Warn("credential rejected", "step", step.String(), "error", err)
		return credential.ReturnCode(err)
	}

	err := d.executor.Launch(ctx, tasks.LaunchSpec{
		Step:          step,
		UID:           launch.UID,
		GID:           launch.GID,
		Argv:          launch.Argv,
		Env:           launch.Env,
		Cwd:           launch.Cwd,
		TaskCount:     launch.TaskCount,
		GlobalTaskIDs: launch.GlobalTaskIDs,
		IOAddress:     launch.IOAddress,
	})
	switch {
	case err == nil:
		return protocol.CodeSuccess
	case errors.Is(err, tasks.ErrInvalidSpec):
		d.logger.Warn("invalid launch", "step", step.String(), "error", err)
		return protocol.CodeInvalidRequest
	default:
		d.logger.Error("launch failed", "step", step.String(), "error", err)
		return protocol.CodeLaunchFailed
	}
}

func (d *Daemon) handleKillTasks(ctx context.Context, request *rpc.Request) *protocol.Message {
	start := d.clock.Now()

	var kill protocol.KillTasksRequest
	if err := request.Decode(&kill); err != nil {
		d.logger.Warn("malformed kill request", "remote", remoteAddr(request), "error", err)
		return protocol.NewReturnCode(protocol.CodeInvalidRequest)
	}
	step := tasks.StepID{JobID: kill.JobID, StepID: kill.StepID}
	signal := syscall.Signal(kill.Signal)
	if signal == 0 {
		signal = syscall.SIGKILL
	}

	code := protocol.CodeSuccess
	if err := d.executor.Signal(step, signal); err != nil {
		if errors.Is(err, tasks.ErrUnknownStep) {
			code = protocol.CodeUnknownJobStep
		} else {
			code = protocol.CodeKillTasksFailed
			d.logger.Error("signalling step failed", "step", step.String(), "error", err)
		}
	}
	d.logger.Info("kill tasks",
		"step", step.String(),
		"signal", signal.String(),
		"return_code", code,
		"elapsed", d.clock.Now().Sub(start),
	)
	return protocol.NewReturnCode(code)
}

func (d *Daemon) handleReattachTasks(ctx context.Context, request *rpc.Request) *protocol.Message {
	start := d.clock.Now()

	var reattach protocol.ReattachTasksRequest
	if err := request.Decode(&reattach); err != nil {
		d.logger.Warn("malformed reattach request", "remote", remoteAddr(request), "error", err)
		return protocol.NewReturnCode(protocol.CodeInvalidRequest)
	}
	step := tasks.StepID{JobID: reattach.JobID, StepID: reattach.StepID}

	code := protocol.CodeSuccess
	if err := d.executor.Reattach(ctx, step, reattach.UID, reattach.IOAddress); err != nil {
		switch {
		case errors.Is(err, tasks.ErrUnknownStep):
			code = protocol.CodeUnknownJobStep
		case errors.Is(err, tasks.ErrPermissionDenied):
			code = protocol.CodePermissionDenied
		default:
			code = protocol.CodeReattachFailed
			d.logger.Error("reattach failed", "step", step.String(), "error", err)
		}
	}
	d.logger.Info("reattach tasks",
		"step", step.String(),
		"uid", reattach.UID,
		"return_code", code,
		"elapsed", d.clock.Now().Sub(start),
	)
	return protocol.NewReturnCode(code)
}

func (d *Daemon) handleRevokeCredential(ctx context.Context, request *rpc.Request) *protocol.Message {
	start := d.clock.Now()

	var revoke protocol.RevokeCredentialRequest
	if err := request.Decode(&revoke); err != nil {
		d.logger.Warn("malformed revoke request", "remote", remoteAddr(request), "error", err)
		return protocol.NewReturnCode(protocol.CodeInvalidRequest)
	}
	id := credential.Identity{JobID: revoke.JobID, StepID: revoke.StepID, IssuedAt: revoke.IssuedAt}
	newly := d.authority.Revoke(id)

	d.logger.Info("revoke credential",
		"credential", id.String(),
		"newly_revoked", newly,
		"elapsed", d.clock.Now().Sub(start),
	)
	return protocol.NewReturnCode(protocol.CodeSuccess)
}

// handleShutdown serves both shutdown variants. The reply is sent
// before the coordinator acts on the request.
func (d *Daemon) handleShutdown(ctx context.Context, request *rpc.Request) *protocol.Message {
	if d.ShuttingDown() {
		d.logger.Debug("shutdown already in progress", "type", request.Type.String())
		return protocol.NewReturnCode(protocol.CodeSuccess)
	}
	d.logger.Info("shutdown requested", "type", request.Type.String(), "remote", remoteAddr(request))
	if err := d.requestShutdown(); err != nil {
		d.logger.Error("requesting shutdown failed", "error", err)
		return protocol.NewReturnCode(protocol.CodeError)
	}
	return protocol.NewReturnCode(protocol.CodeSuccess)
}

func remoteAddr(request *rpc.Request) string {
	if request.RemoteAddr == nil {
		return ""
	}
	return request.RemoteAddr.String()
}
