// Package pipelinetest provides an in-memory pipeline.Transport that records
// requests and serves scripted responses.
package pipelinetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

// Handler serves one request. It may block until req.Context() is done to
// simulate a response that never arrives.
type Handler func(req *Request) (*Response, error)

// Transport is a fake pipeline.Transport.
type Transport struct {
	handler Handler

	mu       sync.Mutex
	requests []*Request

	// NewRequestErr, when set, is returned by NewRequest.
	NewRequestErr error
}

// New returns a Transport serving requests with h.
func New(h Handler) *Transport {
	return &Transport{handler: h}
}

func (t *Transport) NewRequest(ctx context.Context, rawURL string) (pipeline.RawRequest, error) {
	if t.NewRequestErr != nil {
		return nil, t.NewRequestErr
	}
	req := &Request{ctx: ctx, t: t, URL: rawURL, Method: http.MethodGet, header: http.Header{}}
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()
	return req, nil
}

// Requests returns every request created so far.
func (t *Transport) Requests() []*Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Request(nil), t.requests...)
}

// Sent returns the requests whose response was asked for and whose URL
// starts with prefix.
func (t *Transport) Sent(prefix string) []*Request {
	var out []*Request
	for _, r := range t.Requests() {
		if r.WasSent() && strings.HasPrefix(r.URL, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// Request is a recorded raw request.
type Request struct {
	ctx context.Context
	t   *Transport

	Method string
	URL    string

	mu           sync.Mutex
	header       http.Header
	body         bytes.Buffer
	writerOpened bool
	writerClosed bool
	aborted      bool
	sent         bool
}

func (r *Request) SetMethod(m string) {
	r.mu.Lock()
	r.Method = m
	r.mu.Unlock()
}

func (r *Request) Header() http.Header { return r.header }

func (r *Request) BodyWriter() (io.WriteCloser, error) {
	r.mu.Lock()
	r.writerOpened = true
	r.mu.Unlock()
	return &bodyWriter{r: r}, nil
}

func (r *Request) Response() (pipeline.RawResponse, error) {
	r.mu.Lock()
	r.sent = true
	r.mu.Unlock()

	if r.t.handler == nil {
		return Text(http.StatusOK, ""), nil
	}
	resp, err := r.t.handler(r)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = Text(http.StatusOK, "")
	}
	return resp, nil
}

func (r *Request) Abort() {
	r.mu.Lock()
	r.aborted = true
	r.mu.Unlock()
}

// Context is the context the request was created with.
func (r *Request) Context() context.Context { return r.ctx }

// Body returns everything written to the request body.
func (r *Request) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

// Form parses the request body as application/x-www-form-urlencoded.
func (r *Request) Form() url.Values {
	v, _ := url.ParseQuery(r.Body())
	return v
}

// Query returns the parsed URL query.
func (r *Request) Query() url.Values {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil
	}
	return u.Query()
}

func (r *Request) WriterOpened() bool { return r.lockedBool(&r.writerOpened) }
func (r *Request) WriterClosed() bool { return r.lockedBool(&r.writerClosed) }
func (r *Request) Aborted() bool      { return r.lockedBool(&r.aborted) }
func (r *Request) WasSent() bool      { return r.lockedBool(&r.sent) }

func (r *Request) lockedBool(b *bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *b
}

type bodyWriter struct{ r *Request }

func (w *bodyWriter) Write(p []byte) (int, error) {
	w.r.mu.Lock()
	defer w.r.mu.Unlock()
	if w.r.writerClosed {
		return 0, errors.New("pipelinetest: write on closed body")
	}
	return w.r.body.Write(p)
}

func (w *bodyWriter) Close() error {
	w.r.mu.Lock()
	w.r.writerClosed = true
	w.r.mu.Unlock()
	return nil
}

// Response is a scripted response.
type Response struct {
	Status  int
	Headers http.Header
	Reader  io.Reader

	mu     sync.Mutex
	closed bool
}

// Text returns a response with the given status and body.
func Text(status int, body string) *Response {
	return &Response{Status: status, Headers: http.Header{}, Reader: strings.NewReader(body)}
}

func (r *Response) StatusCode() int     { return r.Status }
func (r *Response) Header() http.Header { return r.Headers }
func (r *Response) Body() io.Reader     { return r.Reader }

func (r *Response) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	if c, ok := r.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Closed reports whether the pipeline released the response.
func (r *Response) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Stream is a response body fed by the test. Reads on an empty stream return
// io.EOF without blocking, like a long-lived feed with no new data yet.
type Stream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// WriteLine appends line and a newline terminator.
func (s *Stream) WriteLine(line string) {
	s.Write(line + "\n")
}

// Write appends raw data.
func (s *Stream) Write(data string) {
	s.mu.Lock()
	s.buf.WriteString(data)
	s.mu.Unlock()
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.buf.Len() == 0 {
		return 0, io.EOF
	}
	return s.buf.Read(p)
}

func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether the stream was closed.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
