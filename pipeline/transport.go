// Package pipeline executes HTTP exchanges as cancellable asynchronous
// sequences. Each exchange runs as a chain of scheduled steps
// (create, send body, await response, transform, receive) against an
// injected Transport.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Transport creates raw requests. Implementations live in the transport
// package.
type Transport interface {
	// NewRequest returns a request handle bound to ctx. Cancelling ctx aborts
	// any blocking call on the handle and on responses obtained from it.
	NewRequest(ctx context.Context, rawURL string) (RawRequest, error)
}

// RawRequest is one in-flight exchange.
type RawRequest interface {
	SetMethod(method string)
	Header() http.Header

	// BodyWriter returns the request body stream. The body is complete once
	// the writer is closed.
	BodyWriter() (io.WriteCloser, error)

	// Response issues the request and blocks until response headers arrive.
	Response() (RawResponse, error)

	// Abort cancels the exchange on a best-effort basis.
	Abort()
}

// RawResponse is the response side of an exchange. Close releases the
// underlying connection.
type RawResponse interface {
	StatusCode() int
	Header() http.Header
	Body() io.Reader
	Close() error
}

// maxErrorBody bounds how much of a failed response is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError reports a response with a non-2xx status code.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, truncateBytes(e.Body, 200))
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
