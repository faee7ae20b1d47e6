// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const ioDialTimeout = 5 * time.Second

// ProcessExecutor runs each task as a child process in its own
// process group.
type ProcessExecutor struct {
	logger *slog.Logger

	mu    sync.Mutex
	steps map[StepID]*runningStep
}

type runningStep struct {
	id     StepID
	uid    uint32
	output *broadcaster
	pids   []int
	done   chan struct{}
}

func NewProcessExecutor(logger *slog.Logger) *ProcessExecutor {
	return &ProcessExecutor{
		logger: logger,
		steps:  make(map[StepID]*runningStep),
	}
}

func (e *ProcessExecutor) Launch(ctx context.Context, spec LaunchSpec) error {
	if len(spec.Argv) == 0 {
		return fmt.Errorf("%w: empty argv for step %s", ErrInvalidSpec, spec.Step)
	}
	if spec.TaskCount == 0 {
		return fmt.Errorf("%w: zero tasks for step %s", ErrInvalidSpec, spec.Step)
	}

	step := &runningStep{
		id:     spec.Step,
		uid:    spec.UID,
		output: &broadcaster{},
		done:   make(chan struct{}),
	}
	if _, err := e.lookup(spec.Step); err == nil {
		return fmt.Errorf("%w: %s", ErrStepExists, spec.Step)
	}

	if spec.IOAddress != "" {
		if err := attachOutput(ctx, step.output, spec.IOAddress); err != nil {
			return err
		}
	}

	commands := make([]*exec.Cmd, 0, spec.TaskCount)
	for local := uint32(0); local < spec.TaskCount; local++ {
		command := e.command(spec, local, step.output)
		if err := command.Start(); err != nil {
			killStarted(commands)
			step.output.Close()
			return fmt.Errorf("starting task %d of step %s: %w", local, spec.Step, err)
		}
		commands = append(commands, command)
		step.pids = append(step.pids, command.Process.Pid)
	}

	// The step becomes visible only once every task is running, so
	// pids is never written after another goroutine can read it.
	e.mu.Lock()
	if _, exists := e.steps[spec.Step]; exists {
		e.mu.Unlock()
		killStarted(commands)
		step.output.Close()
		return fmt.Errorf("%w: %s", ErrStepExists, spec.Step)
	}
	e.steps[spec.Step] = step
	e.mu.Unlock()

	go e.reap(step, commands)
	e.logger.Info("step launched", "step", spec.Step.String(), "tasks", spec.TaskCount, "argv0", spec.Argv[0])
	return nil
}

func (e *ProcessExecutor) command(spec LaunchSpec, local uint32, output *broadcaster) *exec.Cmd {
	rank := local
	if int(local) < len(spec.GlobalTaskIDs) {
		rank = spec.GlobalTaskIDs[local]
	}

	command := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	command.Dir = spec.Cwd
	command.Env = append(append([]string(nil), spec.Env...),
		"SLURM_JOB_ID="+strconv.FormatUint(uint64(spec.Step.JobID), 10),
		"SLURM_STEP_ID="+strconv.FormatUint(uint64(spec.Step.StepID), 10),
		"SLURM_PROCID="+strconv.FormatUint(uint64(rank), 10),
		"SLURM_LOCALID="+strconv.FormatUint(uint64(local), 10),
	)
	command.Stdout = output
	command.Stderr = output
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if int(spec.UID) != os.Getuid() || int(spec.GID) != os.Getgid() {
		command.SysProcAttr.Credential = &syscall.Credential{Uid: spec.UID, Gid: spec.GID}
	}
	return command
}

func killStarted(commands []*exec.Cmd) {
	for _, command := range commands {
		unix.Kill(-command.Process.Pid, unix.SIGKILL)
		command.Wait()
	}
}

// reap waits for every task, then drops the step from the registry.
func (e *ProcessExecutor) reap(step *runningStep, commands []*exec.Cmd) {
	failed := 0
	for _, command := range commands {
		if err := command.Wait(); err != nil {
			failed++
			var exitError *exec.ExitError
			if !errors.As(err, &exitError) {
				e.logger.Warn("waiting for task failed", "step", step.id.String(), "error", err)
			}
		}
	}
	step.output.Close()
	e.forget(step)
	close(step.done)
	e.logger.Info("step finished", "step", step.id.String(), "tasks", len(commands), "failed", failed)
}

func (e *ProcessExecutor) forget(step *runningStep) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.steps[step.id] == step {
		delete(e.steps, step.id)
	}
}

func (e *ProcessExecutor) lookup(id StepID) (*runningStep, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	step, exists := e.steps[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	return step, nil
}

func (e *ProcessExecutor) Signal(id StepID, signal syscall.Signal) error {
	step, err := e.lookup(id)
	if err != nil {
		return err
	}
	return signalStep(step, signal)
}

func signalStep(step *runningStep, signal syscall.Signal) error {
	var errs []error
	for _, pid := range step.pids {
		// ESRCH means the task already exited.
		if err := unix.Kill(-pid, signal); err != nil && !errors.Is(err, unix.ESRCH) {
			errs = append(errs, fmt.Errorf("signalling task group %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

func (e *ProcessExecutor) Reattach(ctx context.Context, id StepID, uid uint32, ioAddress string) error {
	step, err := e.lookup(id)
	if err != nil {
		return err
	}
	if uid != 0 && uid != step.uid {
		return fmt.Errorf("%w: uid %d cannot attach to step %s", ErrPermissionDenied, uid, id)
	}
	return attachOutput(ctx, step.output, ioAddress)
}

func (e *ProcessExecutor) KillAll(signal syscall.Signal) int {
	e.mu.Lock()
	steps := make([]*runningStep, 0, len(e.steps))
	for _, step := range e.steps {
		steps = append(steps, step)
	}
	e.mu.Unlock()

	for _, step := range steps {
		if err := signalStep(step, signal); err != nil {
			e.logger.Warn("signalling step failed", "step", step.id.String(), "error", err)
		}
	}
	return len(steps)
}

// Steps lists the running steps.
func (e *ProcessExecutor) Steps() []StepID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]StepID, 0, len(e.steps))
	for id := range e.steps {
		ids = append(ids, id)
	}
	return ids
}

// Done returns a channel closed when every task of the step has
// exited. An unknown step returns an already closed channel.
func (e *ProcessExecutor) Done(id StepID) <-chan struct{} {
	step, err := e.lookup(id)
	if err != nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return step.done
}

func attachOutput(ctx context.Context, output *broadcaster, address string) error {
	dialer := net.Dialer{Timeout: ioDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("connecting output stream to %s: %w", address, err)
	}
	if !output.attach(conn) {
		return fmt.Errorf("%w: step finished before output attached", ErrUnknownStep)
	}
	return nil
}
