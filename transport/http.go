// Package transport provides pipeline.Transport implementations: a plain
// net/http transport that supports long-lived streaming responses, and a
// TLS-fingerprinted transport built on go-stealth for REST calls.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

// HTTP is a pipeline.Transport backed by an *http.Client.
type HTTP struct {
	client    *http.Client
	userAgent string
}

// NewHTTP returns an HTTP transport. A nil client uses a client without a
// timeout, since streaming responses stay open indefinitely.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{client: client, userAgent: defaultUserAgent}
}

// WithUserAgent sets the User-Agent sent when a request has none.
func (t *HTTP) WithUserAgent(ua string) *HTTP {
	t.userAgent = ua
	return t
}

func (t *HTTP) NewRequest(ctx context.Context, rawURL string) (pipeline.RawRequest, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &httpRequest{
		transport: t,
		ctx:       ctx,
		cancel:    cancel,
		method:    http.MethodGet,
		url:       rawURL,
		header:    http.Header{},
	}, nil
}

type httpRequest struct {
	transport *HTTP
	ctx       context.Context
	cancel    context.CancelFunc

	method string
	url    string
	header http.Header
	body   *bytes.Buffer
}

func (r *httpRequest) SetMethod(m string)  { r.method = m }
func (r *httpRequest) Header() http.Header { return r.header }
func (r *httpRequest) Abort()              { r.cancel() }

func (r *httpRequest) BodyWriter() (io.WriteCloser, error) {
	r.body = &bytes.Buffer{}
	return nopCloser{r.body}, nil
}

func (r *httpRequest) Response() (pipeline.RawResponse, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body.Bytes())
	}
	req, err := http.NewRequestWithContext(r.ctx, r.method, r.url, body)
	if err != nil {
		return nil, err
	}
	req.Header = r.header.Clone()
	if req.Header.Get("User-Agent") == "" && r.transport.userAgent != "" {
		req.Header.Set("User-Agent", r.transport.userAgent)
	}

	resp, err := r.transport.client.Do(req)
	if err != nil {
		return nil, err
	}
	return httpResponse{resp}, nil
}

type httpResponse struct {
	resp *http.Response
}

func (r httpResponse) StatusCode() int     { return r.resp.StatusCode }
func (r httpResponse) Header() http.Header { return r.resp.Header }
func (r httpResponse) Body() io.Reader     { return r.resp.Body }
func (r httpResponse) Close() error        { return r.resp.Body.Close() }

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
