// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Method is the subset of HTTP methods the server acts on.
type Method int

const (
	// MethodUnsupported is every method other than GET and HEAD.
	MethodUnsupported Method = iota
	MethodGet
	MethodHead
)

// String implements the [fmt.Stringer] interface.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	default:
		return "UNKNOWN"
	}
}

func parseMethod(s string) Method {
	switch s {
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	default:
		return MethodUnsupported
	}
}

// Request is the request line of a single HTTP request.
// Headers and body are never parsed.
type Request struct {
	Method Method

	// URI is the request target exactly as sent by the client.
	URI string
}

// String implements the [fmt.Stringer] interface.
func (r Request) String() string {
	return r.Method.String() + " " + r.URI
}

// InvalidRequestError occurs when the raw request is not valid UTF-8 text.
type InvalidRequestError struct{}

// Error implements the [error] interface.
func (InvalidRequestError) Error() string {
	return "request is not valid utf-8"
}

// MissingTargetError occurs when the request line has no request target.
type MissingTargetError struct {
	Line string
}

// Error implements the [error] interface.
func (e MissingTargetError) Error() string {
	return fmt.Sprintf("request line is missing a target: %q", e.Line)
}

var crlf = []byte("\r\n")

// ParseRequest parses the request line found before the first CRLF in b.
// The line is split on single spaces: the first token is the method and
// the second is the target. Everything after the target is ignored.
//
// The parser is intentionally narrow and not hardened against
// adversarial input.
func ParseRequest(b []byte) (Request, error) {
	if !utf8.Valid(b) {
		return Request{}, InvalidRequestError{}
	}

	line, _, _ := bytes.Cut(b, crlf)
	tokens := strings.Split(string(line), " ")
	if len(tokens) < 2 || tokens[1] == "" {
		return Request{}, MissingTargetError{Line: string(line)}
	}

	req := Request{
		Method: parseMethod(tokens[0]),
		URI:    tokens[1],
	}
	return req, nil
}
