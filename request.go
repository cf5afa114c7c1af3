package twitter

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/anatolykoptev/go-twitterhub/flow"
	"github.com/anatolykoptev/go-twitterhub/oauth1"
	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

const formContentType = "application/x-www-form-urlencoded; charset=utf-8"

// encodeForm percent-encodes form with keys in sorted order, matching the
// encoding used in the OAuth signature base.
func encodeForm(form map[string]string) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(oauth1.PercentEncode(k))
		b.WriteByte('=')
		b.WriteString(oauth1.PercentEncode(form[k]))
	}
	return b.String()
}

// getText performs an authorized GET on rawURL and emits the response body.
func (c *Client) getText(endpoint, rawURL string) flow.Sequence[string] {
	return guarded(c, endpoint, flow.FlatMap(
		c.auth.Authorization(http.MethodGet, rawURL, nil),
		func(authz string) flow.Sequence[string] {
			return c.rest.CreateGet(rawURL, map[string]string{"Authorization": authz}).ReadAllText()
		},
	))
}

// postForm performs an authorized form POST on rawURL and emits the response body.
func (c *Client) postForm(endpoint, rawURL string, form map[string]string) flow.Sequence[string] {
	body := []byte(encodeForm(form))
	return guarded(c, endpoint, flow.FlatMap(
		c.auth.Authorization(http.MethodPost, rawURL, form),
		func(authz string) flow.Sequence[string] {
			return c.rest.CreatePost(rawURL, formContentType, map[string]string{"Authorization": authz}, body).ReadAllText()
		},
	))
}

// guarded fails fast while endpoint is rate limited and turns non-2xx
// responses into *APIError or *RateLimitError. Every subscription is
// reported to the metrics hook once it terminates.
func guarded[T any](c *Client, endpoint string, src flow.Sequence[T]) flow.Sequence[T] {
	return flow.New(func(s *flow.Sink[T]) {
		if c.limiter.IsRateLimited(endpoint) {
			until := c.limiter.AvailableAt(endpoint)
			c.recordAPICall(endpoint, false, true)
			c.log.Debug("endpoint rate limited, failing fast",
				slog.String("endpoint", endpoint), slog.Time("until", until))
			s.Error(&RateLimitError{Endpoint: endpoint, Until: until})
			return
		}
		sub := src.Subscribe(flow.Observer[T]{
			Next: func(v T) { s.Next(v) },
			Error: func(err error) {
				s.Error(c.classify(endpoint, err))
			},
			Complete: func() {
				c.recordAPICall(endpoint, true, false)
				s.Complete()
			},
		})
		s.Defer(sub.Dispose)
	})
}

// classify maps a pipeline failure on endpoint to the client's error types
// and updates the rate limiter.
func (c *Client) classify(endpoint string, err error) error {
	var se *pipeline.StatusError
	if !errors.As(err, &se) {
		c.recordAPICall(endpoint, false, false)
		return err
	}

	apiErr := newAPIError(endpoint, se)
	if errors.Is(apiErr, ErrRateLimited) {
		until := parseRateLimitReset(se.Header.Get("X-Rate-Limit-Reset"), time.Now())
		c.limiter.MarkRateLimited(endpoint, until)
		c.recordAPICall(endpoint, false, true)
		c.log.Warn("rate limited",
			slog.String("endpoint", endpoint), slog.Time("until", until))
		return &RateLimitError{Endpoint: endpoint, Until: until, Err: apiErr}
	}

	c.recordAPICall(endpoint, false, false)
	c.log.Warn("twitter api error",
		slog.String("endpoint", endpoint),
		slog.Int("status", apiErr.StatusCode),
		slog.Int("code", apiErr.Code),
		slog.String("message", apiErr.Message))
	return apiErr
}
