// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/TheBaxes/slurm/lib/codec"
	"github.com/TheBaxes/slurm/lib/protocol"
)

const (
	// DefaultDialTimeout covers only the connect phase.
	DefaultDialTimeout = 5 * time.Second

	// DefaultReplyTimeout is how long the client waits for the reply
	// after writing the request.
	DefaultReplyTimeout = 60 * time.Second

	maxReplySize = 16 << 20
)

// Caller sends one request and returns one reply. Client implements it;
// tests substitute their own.
type Caller interface {
	SendRecv(ctx context.Context, address string, request *protocol.Message) (*protocol.Message, error)
}

// Client performs one-shot request/reply exchanges over TCP. Each call
// opens a new connection, matching the server's one-request-per-
// connection model. The zero value uses the default timeouts.
type Client struct {
	DialTimeout  time.Duration
	ReplyTimeout time.Duration
}

// SendRecv sends request to address and decodes the single reply.
func (c *Client) SendRecv(ctx context.Context, address string, request *protocol.Message) (*protocol.Message, error) {
	conn, err := c.send(ctx, address, request)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	replyTimeout := c.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = DefaultReplyTimeout
	}
	deadline := time.Now().Add(replyTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)

	var reply protocol.Message
	if err := codec.NewDecoder(io.LimitReader(conn, maxReplySize)).Decode(&reply); err != nil {
		return nil, &TransportError{Op: "receive", Address: address, Err: err}
	}
	return &reply, nil
}

func (c *Client) send(ctx context.Context, address string, request *protocol.Message) (net.Conn, error) {
	dialTimeout := c.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &TransportError{Op: "dial", Address: address, Err: err}
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		conn.Close()
		return nil, &TransportError{Op: "send", Address: address, Err: err}
	}

	// Half-close so the server's read side sees EOF after the one
	// request.
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}
	return conn, nil
}

// ReturnCode decodes a ResponseReturnCode reply and converts a
// non-zero code into a *protocol.ReturnCodeError. Any other reply type
// yields ErrUnexpectedReply.
func ReturnCode(reply *protocol.Message) error {
	if reply.Type != protocol.ResponseReturnCode {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedReply, reply.Type, protocol.ResponseReturnCode)
	}
	var payload protocol.ReturnCodeReply
	if err := reply.Decode(&payload); err != nil {
		return err
	}
	if payload.ReturnCode != protocol.CodeSuccess {
		return &protocol.ReturnCodeError{Code: payload.ReturnCode}
	}
	return nil
}
