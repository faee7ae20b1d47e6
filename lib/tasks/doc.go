// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package tasks runs job-step processes on the node.
//
// [Executor] is what the RPC handlers drive: launch a step, signal it,
// reattach a launcher's output stream, and kill everything at
// shutdown. [ProcessExecutor] implements it with one child process per
// task, each in its own process group so a signal reaches the task's
// whole tree. Task stdout and stderr are fanned out to every attached
// output connection.
package tasks
