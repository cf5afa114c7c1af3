package twitter

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/anatolykoptev/go-twitterhub/flow"
	"github.com/anatolykoptev/go-twitterhub/oauth1"
)

// Search emits the tweets matching query in reply order, then completes.
func (c *Client) Search(query string) flow.Sequence[*Tweet] {
	return c.SearchSince(query, 0)
}

// SearchSince is Search restricted to tweets with an id above sinceID.
// A zero sinceID sends no lower bound.
func (c *Client) SearchSince(query string, sinceID int64) flow.Sequence[*Tweet] {
	rawURL := c.searchURL(query, sinceID)
	return flow.FlatMap(c.getText(OpSearch, rawURL), func(body string) flow.Sequence[*Tweet] {
		tweets, err := parseSearch(body)
		if err != nil {
			return flow.Fail[*Tweet](fmt.Errorf("search %q: %w", query, err))
		}
		return flow.FromSlice(tweets)
	})
}

func (c *Client) searchURL(query string, sinceID int64) string {
	u := c.cfg.Endpoints.Search + "?q=" + oauth1.PercentEncode(query)
	if sinceID > 0 {
		u += "&since_id=" + strconv.FormatInt(sinceID, 10)
	}
	return u
}

// Poll searches for query right away and then again interval after each
// search completes, asking only for tweets newer than any seen so far. The
// sequence runs until it is disposed or a search fails.
func (c *Client) Poll(query string, interval time.Duration) (flow.Sequence[*Tweet], error) {
	return c.PollSince(query, 0, interval)
}

// PollSince is Poll starting from the watermark sinceID.
func (c *Client) PollSince(query string, sinceID int64, interval time.Duration) (flow.Sequence[*Tweet], error) {
	if interval < MinPollInterval {
		return flow.Sequence[*Tweet]{}, fmt.Errorf("%w: %s is below %s", ErrInvalidInterval, interval, MinPollInterval)
	}
	return flow.New(func(s *flow.Sink[*Tweet]) {
		p := &poller{
			c:         c,
			query:     query,
			interval:  interval,
			watermark: sinceID,
			sink:      s,
		}
		s.Defer(p.timer.Dispose)
		s.Defer(p.search.Dispose)
		p.tick()
	}), nil
}

// poller is one Poll subscription. Ticks never overlap: the next search is
// scheduled only from the completion of the previous one.
type poller struct {
	c         *Client
	query     string
	interval  time.Duration
	watermark int64
	sink      *flow.Sink[*Tweet]

	search flow.Slot // in-flight search
	timer  flow.Slot // next scheduled tick
	batch  int64
}

func (p *poller) tick() {
	if p.sink.Disposed() {
		return
	}
	p.batch = p.watermark
	p.c.log.Debug("poll tick",
		slog.String("query", p.query), slog.Int64("since_id", p.watermark))

	sub := p.c.SearchSince(p.query, p.watermark).Subscribe(flow.Observer[*Tweet]{
		Next: func(t *Tweet) {
			p.batch = max(p.batch, t.ID)
			p.sink.Next(t)
		},
		Error: p.sink.Error,
		Complete: func() {
			p.watermark = max(p.watermark, p.batch)
			p.schedule()
		},
	})
	p.search.Set(sub.Dispose)
}

func (p *poller) schedule() {
	if p.sink.Disposed() {
		return
	}
	cancel := p.c.cfg.Scheduler.Schedule(p.interval, p.tick)
	p.timer.Set(cancel)
}
