// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/TheBaxes/slurm/lib/protocol"
)

// Request is one decoded inbound message plus connection metadata.
type Request struct {
	*protocol.Message

	// RemoteAddr is the peer address of the connection the request
	// arrived on.
	RemoteAddr net.Addr

	// Received is when the request finished decoding.
	Received time.Time
}

// HandlerFunc processes one request and returns the reply to send. A
// nil reply means the handler has nothing to send and the connection
// is closed without writing.
type HandlerFunc func(ctx context.Context, request *Request) *protocol.Message

// Dispatcher routes a decoded request to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, request *Request) *protocol.Message
}

// Mux maps message types to handlers. Types with no registered handler
// receive a ResponseReturnCode carrying CodeInvalidRequest.
//
// Register every handler before the server starts; the map is read
// without locking once serving begins.
type Mux struct {
	handlers map[protocol.MessageType]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[protocol.MessageType]HandlerFunc)}
}

// Handle registers handler for messageType. Panics on a duplicate
// registration.
func (m *Mux) Handle(messageType protocol.MessageType, handler HandlerFunc) {
	if _, exists := m.handlers[messageType]; exists {
		panic(fmt.Sprintf("rpc.Mux: duplicate handler for %s", messageType))
	}
	m.handlers[messageType] = handler
}

// Dispatch runs the handler for request.Type synchronously.
func (m *Mux) Dispatch(ctx context.Context, request *Request) *protocol.Message {
	handler, exists := m.handlers[request.Type]
	if !exists {
		return protocol.NewReturnCode(protocol.CodeInvalidRequest)
	}
	return handler(ctx, request)
}
