package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

// StealthConfig configures a Stealth transport.
type StealthConfig struct {
	// Proxy is an optional proxy URL for all requests.
	Proxy string

	// UserAgent overrides the default browser User-Agent.
	UserAgent string
}

// Stealth is a pipeline.Transport that sends requests through a
// TLS-fingerprinted browser client. Response bodies are fully buffered, so it
// cannot serve long-lived streams; use HTTP for those.
type Stealth struct {
	bc      *stealth.BrowserClient
	headers map[string]string
}

// NewStealth builds a Stealth transport.
func NewStealth(cfg StealthConfig) (*Stealth, error) {
	opts := []stealth.ClientOption{
		stealth.WithHeaderOrder(apiHeaderOrder),
	}
	if cfg.Proxy != "" {
		opts = append(opts, stealth.WithProxy(cfg.Proxy))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}
	if cfg.Proxy != "" {
		slog.Info("stealth transport via proxy", slog.String("proxy", stealth.MaskProxy(cfg.Proxy)))
	}
	return &Stealth{bc: bc, headers: apiHeaders(cfg.UserAgent)}, nil
}

func (t *Stealth) NewRequest(ctx context.Context, rawURL string) (pipeline.RawRequest, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &stealthRequest{
		transport: t,
		ctx:       ctx,
		cancel:    cancel,
		method:    http.MethodGet,
		url:       rawURL,
		header:    http.Header{},
	}, nil
}

type stealthRequest struct {
	transport *Stealth
	ctx       context.Context
	cancel    context.CancelFunc

	method string
	url    string
	header http.Header
	body   *bytes.Buffer
}

func (r *stealthRequest) SetMethod(m string)  { r.method = m }
func (r *stealthRequest) Header() http.Header { return r.header }
func (r *stealthRequest) Abort()              { r.cancel() }

func (r *stealthRequest) BodyWriter() (io.WriteCloser, error) {
	r.body = &bytes.Buffer{}
	return nopCloser{r.body}, nil
}

type stealthResult struct {
	body    []byte
	headers map[string]string
	status  int
	err     error
}

// Response runs the browser client call on its own goroutine so that
// cancellation returns promptly; the client itself takes no context.
func (r *stealthRequest) Response() (pipeline.RawResponse, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body.Bytes())
	}
	headers := mergeHeaders(r.transport.headers, r.header)

	done := make(chan stealthResult, 1)
	go func() {
		b, h, status, err := r.transport.bc.DoWithHeaderOrder(r.method, r.url, headers, body, apiHeaderOrder)
		done <- stealthResult{body: b, headers: h, status: status, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return bufferedResponse{
			status: res.status,
			header: toHTTPHeader(res.headers),
			body:   bytes.NewReader(res.body),
		}, nil
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
}

// toHTTPHeader converts the client's lowercase header map to canonical form.
func toHTTPHeader(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

type bufferedResponse struct {
	status int
	header http.Header
	body   *bytes.Reader
}

func (r bufferedResponse) StatusCode() int     { return r.status }
func (r bufferedResponse) Header() http.Header { return r.header }
func (r bufferedResponse) Body() io.Reader     { return r.body }
func (r bufferedResponse) Close() error        { return nil }
