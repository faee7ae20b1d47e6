// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc implements the node agent's message engine and the
// one-shot client used for outbound calls to the controller.
//
// The wire model is one CBOR [protocol.Message] per direction per TCP
// connection. [Server] accepts connections and hands each to its own
// goroutine, which decodes one request, dispatches it through a
// [Dispatcher] (normally a [Mux]), writes at most one reply, and closes
// the connection. Concurrency is unbounded: there is no worker pool and
// no admission control.
//
// The server stops in two ways. Cancelling the context passed to
// [Server.Serve] closes the listener and drains in-flight workers. The
// optional ShuttingDown predicate is checked after every accept; once
// it reports true, the connection just accepted is serviced on the
// accept goroutine and the loop exits without accepting again.
//
// [Client] dials the controller, sends one request, and reads one
// reply. Dial, encode, and decode failures surface as [*TransportError].
package rpc
