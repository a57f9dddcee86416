// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/z5labs/axon/internal/try"
	"github.com/z5labs/axon/pkg/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestSize is the number of bytes read from a connection.
	// Only the request line within them is used.
	MaxRequestSize = 1024

	// ServerName is sent in the Server header.
	ServerName = "Axon"
)

const (
	// lingerTimeout bounds how long unread request bytes are drained
	// after the response has been written.
	lingerTimeout = 500 * time.Millisecond

	// lingerLimit caps how many unread request bytes are drained.
	lingerLimit = 256 << 10
)

const (
	notFoundBody       = "<h1>File not found.</h1>"
	internalErrorBody  = "<h1>Internal server error.</h1>"
	notImplementedBody = "<h1>Request not implemented.</h1>"
)

// ReadError occurs when the request could not be read from the connection.
type ReadError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ReadError) Error() string {
	return fmt.Sprintf("failed to read request: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ReadError) Unwrap() error {
	return e.Cause
}

// WriteError occurs when the response could not be written to the connection.
type WriteError struct {
	Cause error
}

// Error implements the [error] interface.
func (e WriteError) Error() string {
	return fmt.Sprintf("failed to write response: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteError) Unwrap() error {
	return e.Cause
}

// Handler serves a single request per connection. A Handler holds no
// per-request state so one instance is shared by every worker.
type Handler struct {
	log       *slog.Logger
	tracer    trace.Tracer
	responses metric.Int64Counter

	readFile     func(string) ([]byte, error)
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newHandler(log *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider) *Handler {
	responses, err := mp.Meter(instrumentationName).Int64Counter(
		"axon.http.responses",
		metric.WithDescription("Number of responses written, by status code."),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &Handler{
		log:       log,
		tracer:    tp.Tracer(instrumentationName),
		responses: responses,
		readFile:  os.ReadFile,
	}
}

// ServeConn reads one request from conn, answers it from the files
// under root and closes conn. root is joined with the resolved target
// by plain concatenation: no cleaning, traversal checks or symlink
// resolution are performed.
//
// A returned error means the client saw the connection close without
// a response. Missing files and unsupported methods are not errors,
// they are answered with the matching status.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn, root string, routes *Routes) (err error) {
	defer try.Close(&err, conn)

	ctx, span := h.tracer.Start(
		ctx,
		"http.ServeConn",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", addrString(conn.RemoteAddr()))),
	)
	defer span.End()
	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}()

	if h.readTimeout > 0 {
		err = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if err != nil {
			return ReadError{Cause: err}
		}
	}

	buf := make([]byte, MaxRequestSize)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		return ReadError{Cause: err}
	}

	req, err := ParseRequest(buf[:n])
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("http.request.method", req.Method.String()),
		attribute.String("url.path", req.URI),
	)

	path := root + routes.Resolve(req.URI)
	resp := h.respond(req, path)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status().Code()))

	b, err := resp.Render()
	if err != nil {
		return err
	}

	if h.writeTimeout > 0 {
		err = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err != nil {
			return WriteError{Cause: err}
		}
	}

	_, err = conn.Write(b)
	if err != nil {
		return WriteError{Cause: err}
	}
	linger(conn)

	h.responses.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.response.status_code", resp.Status().Code())))
	h.log.InfoContext(
		ctx,
		"handled request",
		slogfield.Stringer("request", req),
		slogfield.String("path", path),
		slogfield.Stringer("status", resp.Status()),
		slogfield.Addr("remote_addr", conn.RemoteAddr()),
	)
	return nil
}

func (h *Handler) respond(req Request, path string) *Response {
	switch req.Method {
	case MethodGet, MethodHead:
		return h.serveFile(req.Method, path)
	default:
		return NewResponse(StatusNotImplemented, nil, []byte(notImplementedBody), req.Method)
	}
}

// serveFile reads the file for both GET and HEAD so Content-Length
// is identical for the two. The body is dropped when rendering HEAD.
func (h *Handler) serveFile(method Method, path string) *Response {
	status := StatusOK
	body, err := h.readFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		status = StatusNotFound
		body = []byte(notFoundBody)
	default:
		h.log.Warn("failed to read file", slogfield.String("path", path), slogfield.Error(err))
		status = StatusInternalError
		body = []byte(internalErrorBody)
	}

	headers := []string{
		"Content-Length: " + strconv.Itoa(len(body)),
		"Server: " + ServerName,
	}
	return NewResponse(status, headers, body, method)
}

type closeWriter interface {
	CloseWrite() error
}

// linger half-closes conn and discards whatever the client sent past
// the bytes that were read. Closing a socket with unread data makes
// the kernel reset the connection, which can destroy the response
// before the client has read it.
func linger(conn net.Conn) {
	cw, ok := conn.(closeWriter)
	if !ok {
		return
	}
	if cw.CloseWrite() != nil {
		return
	}
	if conn.SetReadDeadline(time.Now().Add(lingerTimeout)) != nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(conn, lingerLimit))
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
