// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/z5labs/axon/pkg/noop"
	"github.com/z5labs/axon/pkg/slogfield"
	"github.com/z5labs/axon/pool"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/z5labs/axon/http"

// DefaultPoolSize is the number of workers serving connections
// unless overridden with [PoolSize].
const DefaultPoolSize = 8

// State is the lifecycle state of a Server.
type State int32

const (
	// StateIdle means the socket is bound but connections aren't accepted yet.
	StateIdle State = iota
	// StateListening means the accept loop is running.
	StateListening
	// StateDraining means the listener is closed and queued connections
	// are still being served.
	StateDraining
	// StateStopped means every worker has exited.
	StateStopped
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type serverOptions struct {
	poolSize       int
	logHandler     slog.Handler
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	readTimeout    time.Duration
	writeTimeout   time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

// PoolSize sets the number of workers serving connections.
//
// Default is 8.
func PoolSize(n int) ServerOption {
	return func(so *serverOptions) {
		so.poolSize = n
	}
}

// LogHandler sets the slog.Handler used by the server, its workers
// and the request handler.
func LogHandler(h slog.Handler) ServerOption {
	return func(so *serverOptions) {
		so.logHandler = h
	}
}

// TracerProvider sets the provider used for connection spans.
func TracerProvider(tp trace.TracerProvider) ServerOption {
	return func(so *serverOptions) {
		so.tracerProvider = tp
	}
}

// MeterProvider sets the provider used for pool and response metrics.
func MeterProvider(mp metric.MeterProvider) ServerOption {
	return func(so *serverOptions) {
		so.meterProvider = mp
	}
}

// ReadTimeout bounds how long a worker waits for the request bytes.
// Zero, the default, means no deadline.
func ReadTimeout(d time.Duration) ServerOption {
	return func(so *serverOptions) {
		so.readTimeout = d
	}
}

// WriteTimeout bounds how long a worker waits for the response to be
// written. Zero, the default, means no deadline.
func WriteTimeout(d time.Duration) ServerOption {
	return func(so *serverOptions) {
		so.writeTimeout = d
	}
}

// BindError occurs when the listening socket can not be bound.
type BindError struct {
	Port  uint16
	Cause error
}

// Error implements the [error] interface.
func (e BindError) Error() string {
	return fmt.Sprintf("failed to bind port %d: %s", e.Port, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BindError) Unwrap() error {
	return e.Cause
}

// AcceptError occurs when the listener fails and no more connections
// can be accepted.
type AcceptError struct {
	Cause error
}

// Error implements the [error] interface.
func (e AcceptError) Error() string {
	return fmt.Sprintf("failed to accept connections: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AcceptError) Unwrap() error {
	return e.Cause
}

// ErrAlreadyListening is returned if Listen is called more than once.
var ErrAlreadyListening = errors.New("http: server is already listening")

// Server accepts connections on 127.0.0.1 and hands each one to a
// fixed pool of workers. The Server is the only owner of its listener.
type Server struct {
	ls     net.Listener
	root   string
	routes *Routes

	log      *slog.Logger
	handler  *Handler
	poolSize int
	poolOpts []pool.Option

	state atomic.Int32
}

// NewServer binds 127.0.0.1:port and returns an idle Server which
// serves files below root. routes is copied, so later changes to the
// map are not seen by the Server. Port 0 binds an ephemeral port.
func NewServer(port uint16, root string, routes map[string]string, opts ...ServerOption) (*Server, error) {
	so := &serverOptions{
		poolSize:       DefaultPoolSize,
		logHandler:     noop.LogHandler{},
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(so)
	}

	ls, err := net.ListenTCP("tcp", &net.TCPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: int(port),
	})
	if err != nil {
		return nil, BindError{Port: port, Cause: err}
	}

	log := slog.New(so.logHandler)
	h := newHandler(log, so.tracerProvider, so.meterProvider)
	h.readTimeout = so.readTimeout
	h.writeTimeout = so.writeTimeout

	s := &Server{
		ls:       ls,
		root:     root,
		routes:   NewRoutes(routes),
		log:      log,
		handler:  h,
		poolSize: so.poolSize,
		poolOpts: []pool.Option{
			pool.LogHandler(so.logHandler),
			pool.TracerProvider(so.tracerProvider),
			pool.MeterProvider(so.meterProvider),
		},
	}
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.ls.Addr()
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Close releases the listening socket of a Server which never
// started listening. It's a no-op once Listen has been called.
func (s *Server) Close() error {
	if s.State() != StateIdle {
		return nil
	}
	err := s.ls.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Listen starts the worker pool and accepts connections until ctx is
// cancelled or the listener fails. Each accepted connection is queued
// on the pool together with its own copy of the document root and a
// shared reference to the routes.
//
// When ctx is cancelled the listener is closed and Listen returns nil
// once every already accepted connection has been served.
func (s *Server) Listen(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateListening)) {
		return ErrAlreadyListening
	}

	p := pool.New(s.poolSize, s.poolOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		s.state.Store(int32(StateDraining))
		s.log.Info("draining connections", slogfield.Int("pending", p.Pending()))

		err := s.ls.Close()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		s.log.Info(
			"listening for connections",
			slogfield.Addr("addr", s.ls.Addr()),
			slogfield.Int("pool_size", p.Size()),
			slogfield.Int("routes", s.routes.Len()),
		)
		return s.accept(gctx, p)
	})

	err := g.Wait()
	closeErr := p.Close()
	s.state.Store(int32(StateStopped))
	s.log.Info("stopped listening")
	return errors.Join(err, closeErr)
}

func (s *Server) accept(ctx context.Context, p *pool.Pool) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		conn, err := s.ls.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return AcceptError{Cause: err}
			}

			delay := bo.NextBackOff()
			s.log.Warn(
				"failed to accept connection",
				slogfield.Error(err),
				slogfield.Duration("retry_in", delay),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		bo.Reset()

		root := strings.Clone(s.root)
		routes := s.routes
		err = p.Execute(ctx, func(ctx context.Context) error {
			return s.handler.ServeConn(ctx, conn, root, routes)
		})
		if err != nil {
			conn.Close()
			return err
		}
	}
}
