package twitter

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go-twitterhub/flow"
	"github.com/anatolykoptev/go-twitterhub/oauth1"
	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

// TrackKeywords opens the filter stream for query and emits each tweet as it
// arrives. The sequence does not complete on its own. Only one stream may be
// open per client; a second subscription fails with ErrOperationInProgress
// until the first is disposed or fails.
func (c *Client) TrackKeywords(query string) flow.Sequence[*Tweet] {
	if err := c.requireUser(); err != nil {
		return flow.Fail[*Tweet](err)
	}
	rawURL := c.cfg.Endpoints.StatusesFilter + "?track=" + oauth1.PercentEncode(query)

	return flow.New(func(s *flow.Sink[*Tweet]) {
		release, ok := c.streaming.acquire()
		if !ok {
			s.Error(ErrOperationInProgress)
			return
		}
		s.Defer(release)
		c.log.Info("stream open", slog.String("track", query))
		s.Defer(func() { c.log.Info("stream closed", slog.String("track", query)) })

		lines := flow.FlatMap(
			c.auth.Authorization(http.MethodGet, rawURL, nil),
			func(authz string) flow.Sequence[string] {
				return c.stream.CreateGet(rawURL, map[string]string{"Authorization": authz}).
					ReadLines(pipeline.StopAtEOF(false))
			},
		)
		sub := guarded(c, OpFilter, lines).Subscribe(flow.Observer[string]{
			Next: func(line string) {
				t, err := c.decodeStreamLine(line)
				if err != nil {
					s.Error(fmt.Errorf("track %q: %w", query, err))
					return
				}
				if t != nil {
					s.Next(t)
				}
			},
			Error:    s.Error,
			Complete: s.Complete,
		})
		s.Defer(sub.Dispose)
	})
}

// decodeStreamLine returns nil for keep-alive blank lines and control notices.
func (c *Client) decodeStreamLine(line string) (*Tweet, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if isStreamNotice(line) {
		c.log.Debug("stream notice", slog.String("line", line))
		return nil, nil
	}
	return parseTweetJSON(line)
}
