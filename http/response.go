// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"errors"
	"strconv"
)

// Status is one of the response statuses the server produces.
type Status int

const (
	StatusOK             Status = 200
	StatusNotFound       Status = 404
	StatusInternalError  Status = 500
	StatusNotImplemented Status = 501
)

// Code returns the numeric status code.
func (s Status) Code() int {
	return int(s)
}

// Reason returns the reason phrase sent on the status line.
func (s Status) Reason() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalError:
		return "Internal Server Error"
	case StatusNotImplemented:
		return "Not Implemented"
	default:
		return "Unknown"
	}
}

// String implements the [fmt.Stringer] interface.
func (s Status) String() string {
	return strconv.Itoa(s.Code()) + " " + s.Reason()
}

// ErrResponseConsumed is returned when rendering a Response for a second time.
var ErrResponseConsumed = errors.New("http: response already rendered")

// Response is built by the handler and rendered exactly once.
type Response struct {
	status  Status
	headers []string
	body    []byte
	method  Method

	consumed bool
}

// NewResponse returns a Response. Each header is a pre-formatted
// "Name: Value" line and headers are written in the given order.
// method is the method of the originating request; the body is
// never written for HEAD requests.
func NewResponse(status Status, headers []string, body []byte, method Method) *Response {
	return &Response{
		status:  status,
		headers: headers,
		body:    body,
		method:  method,
	}
}

// Status returns the response status.
func (r *Response) Status() Status {
	return r.status
}

// Headers returns the header lines in wire order.
func (r *Response) Headers() []string {
	return r.headers
}

// String implements the [fmt.Stringer] interface.
func (r *Response) String() string {
	return r.status.String()
}

// Render serializes the response into a single buffer ready to be
// written to the connection:
//
//	HTTP/1.1 <code> <reason> CRLF
//	(<header> CRLF)*
//	CRLF
//	[body]
//
// The body is omitted for HEAD, while any Content-Length header keeps
// the size of the body which would have been sent. Render consumes the
// response: the body is handed off to the returned buffer and any
// further call returns [ErrResponseConsumed].
func (r *Response) Render() ([]byte, error) {
	if r.consumed {
		return nil, ErrResponseConsumed
	}
	r.consumed = true

	body := r.body
	r.body = nil
	if r.method == MethodHead {
		body = nil
	}

	size := len("HTTP/1.1 ") + 3 + 1 + len(r.status.Reason()) + 2 + 2 + len(body)
	for _, h := range r.headers {
		size += len(h) + 2
	}

	b := make([]byte, 0, size)
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(r.status.Code()), 10)
	b = append(b, ' ')
	b = append(b, r.status.Reason()...)
	b = append(b, "\r\n"...)
	for _, h := range r.headers {
		b = append(b, h...)
		b = append(b, "\r\n"...)
	}
	b = append(b, "\r\n"...)
	b = append(b, body...)
	return b, nil
}
