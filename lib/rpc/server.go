// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheBaxes/slurm/lib/clock"
	"github.com/TheBaxes/slurm/lib/codec"
	"github.com/TheBaxes/slurm/lib/protocol"
)

// State is the engine's lifecycle state.
type State int32

const (
	StateInitializing State = iota
	StateAccepting
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	// DefaultReadTimeout bounds how long a worker waits for the request
	// bytes after accepting.
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout bounds writing the reply.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxRequestSize caps a single encoded request.
	DefaultMaxRequestSize = 4 << 20

	// Accept failures such as EMFILE back off from minAcceptBackoff,
	// doubling up to maxAcceptBackoff, until an accept succeeds.
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ServerConfig configures a Server. Dispatcher and Logger are required.
type ServerConfig struct {
	Dispatcher Dispatcher
	Logger     *slog.Logger

	// ShuttingDown reports whether the daemon has begun shutting down.
	// When it returns true the accept loop services the connection it
	// holds inline and exits. Nil means never.
	ShuttingDown func() bool

	// Metrics is optional.
	Metrics *Metrics

	// Clock paces the backoff after failed accepts. Nil means
	// clock.Real().
	Clock clock.Clock

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
}

// Server is the RPC message engine. A Server serves one listener once.
type Server struct {
	dispatcher     Dispatcher
	logger         *slog.Logger
	shuttingDown   func() bool
	metrics        *Metrics
	clock          clock.Clock
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxRequestSize int64

	state atomic.Int32
	ready chan struct{}

	// workers tracks in-flight connection goroutines so Serve can
	// drain them before returning.
	workers sync.WaitGroup
}

func NewServer(config ServerConfig) *Server {
	server := &Server{
		dispatcher:     config.Dispatcher,
		logger:         config.Logger,
		shuttingDown:   config.ShuttingDown,
		metrics:        config.Metrics,
		clock:          config.Clock,
		readTimeout:    config.ReadTimeout,
		writeTimeout:   config.WriteTimeout,
		maxRequestSize: config.MaxRequestSize,
		ready:          make(chan struct{}),
	}
	if server.shuttingDown == nil {
		server.shuttingDown = func() bool { return false }
	}
	if server.clock == nil {
		server.clock = clock.Real()
	}
	if server.readTimeout <= 0 {
		server.readTimeout = DefaultReadTimeout
	}
	if server.writeTimeout <= 0 {
		server.writeTimeout = DefaultWriteTimeout
	}
	if server.maxRequestSize <= 0 {
		server.maxRequestSize = DefaultMaxRequestSize
	}
	return server
}

// Listen binds a TCP listener on address. A failure here means the
// daemon cannot serve at all.
func Listen(address string) (net.Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", address, err)
	}
	return listener, nil
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Ready is closed once the server is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve accepts connections on listener until ctx is cancelled or a
// connection is accepted while the ShuttingDown predicate reports true.
// It then closes the listener, waits for in-flight workers, and
// returns. The listener is owned by Serve from this point on.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if !s.state.CompareAndSwap(int32(StateInitializing), int32(StateAccepting)) {
		listener.Close()
		return fmt.Errorf("rpc: Serve called in state %s", s.State())
	}
	close(s.ready)

	// Unblock Accept when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-stop:
		}
	}()

	s.logger.Info("rpc engine accepting", "address", listener.Addr().String())

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Error("accept failed", "error", err, "retry_in", backoff)
			select {
			case <-s.clock.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		if s.shuttingDown() {
			s.logger.Info("shutdown in progress, servicing final connection inline",
				"remote", conn.RemoteAddr().String())
			s.handleConnection(ctx, conn)
			break
		}

		s.workers.Add(1)
		s.metrics.workerStarted()
		go func() {
			defer s.workers.Done()
			defer s.metrics.workerFinished()
			s.handleConnection(ctx, conn)
		}()
	}

	s.state.Store(int32(StateDraining))
	listener.Close()
	s.workers.Wait()
	s.state.Store(int32(StateStopped))
	s.logger.Info("rpc engine stopped")
	return nil
}

// handleConnection services one request-reply cycle. Failures are
// logged and end the connection; they never reach the accept loop.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var message protocol.Message
	if err := codec.NewDecoder(io.LimitReader(conn, s.maxRequestSize)).Decode(&message); err != nil {
		if errors.Is(err, io.EOF) {
			// Peer connected and sent nothing.
			return
		}
		s.metrics.decodeFailed()
		s.logger.Warn("dropping connection with undecodable request",
			"remote", conn.RemoteAddr().String(),
			"error", err,
		)
		return
	}

	request := &Request{
		Message:    &message,
		RemoteAddr: conn.RemoteAddr(),
		Received:   time.Now(),
	}
	reply := s.dispatcher.Dispatch(ctx, request)

	label := "unknown"
	if message.Type.Known() {
		label = message.Type.String()
	}
	s.metrics.observeRequest(label, time.Since(request.Received).Seconds())

	if reply == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := codec.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.Debug("failed to write reply",
			"type", message.Type.String(),
			"remote", conn.RemoteAddr().String(),
			"error", err,
		)
	}
}
