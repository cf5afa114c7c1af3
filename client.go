package twitter

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/anatolykoptev/go-stealth/ratelimit"

	"github.com/anatolykoptev/go-twitterhub/oauth1"
	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

// Client is a Twitter API client bound to one Authenticator. Application
// clients can search and poll; user clients can also post, like and track.
type Client struct {
	cfg     ClientConfig
	rest    *pipeline.Service
	stream  *pipeline.Service
	auth    Authenticator
	limiter *ratelimit.Limiter
	log     *slog.Logger

	streaming streamGuard
}

// NewAppClient creates an application-scope client authorized by a bearer
// token fetched on first use.
func NewAppClient(cfg ClientConfig) (*Client, error) {
	if cfg.ConsumerKey == "" {
		return nil, oauth1.ErrMissingConsumerKey
	}
	c := newClient(cfg)
	c.auth = newBearerAuth(c.rest, c.cfg.ConsumerKey, c.cfg.ConsumerSecret, c.cfg.Endpoints, c.log,
		func(endpoint string, success bool) { c.recordAPICall(endpoint, success, false) })
	return c, nil
}

// NewUserClient creates a user-scope client that signs requests with the
// consumer credentials of cfg and the given user token pair.
func NewUserClient(cfg ClientConfig, user UserCredentials) (*Client, error) {
	auth, err := NewSignedAuth(oauth1.New(cfg.ConsumerKey, cfg.ConsumerSecret, user.Token, user.Secret))
	if err != nil {
		return nil, err
	}
	return NewClientWithAuth(cfg, auth), nil
}

// NewClientWithAuth creates a client around a custom Authenticator.
func NewClientWithAuth(cfg ClientConfig, auth Authenticator) *Client {
	c := newClient(cfg)
	c.auth = auth
	return c
}

func newClient(cfg ClientConfig) *Client {
	cfg.defaults()
	log := cfg.Logger.With(slog.String("component", "twitter"))
	return &Client{
		cfg: cfg,
		rest: pipeline.NewService(pipeline.ServiceConfig{
			Transport: cfg.Transport,
			Scheduler: cfg.Scheduler,
			Logger:    log,
		}),
		stream: pipeline.NewService(pipeline.ServiceConfig{
			Transport: cfg.StreamTransport,
			Scheduler: cfg.Scheduler,
			IdleDelay: cfg.StreamIdleDelay,
			Logger:    log,
		}),
		limiter: ratelimit.NewLimiter(cfg.RateLimit),
		log:     log,
	}
}

// UserClient derives a user-scope client that shares this client's consumer
// credentials, transports and rate-limit state.
func (c *Client) UserClient(token, secret string) (*Client, error) {
	auth, err := NewSignedAuth(oauth1.New(c.cfg.ConsumerKey, c.cfg.ConsumerSecret, token, secret))
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:     c.cfg,
		rest:    c.rest,
		stream:  c.stream,
		auth:    auth,
		limiter: c.limiter,
		log:     c.log,
	}, nil
}

// Scope reports whether the client acts for the application or a user.
func (c *Client) Scope() Scope { return c.auth.Scope() }

// Close releases server-side credentials held by the authenticator. For an
// application client this invalidates the bearer token, if one was fetched.
// Subscriptions still running are not disposed.
func (c *Client) Close(ctx context.Context) error {
	return c.auth.Close(ctx)
}

// recordAPICall calls the metrics hook if configured.
func (c *Client) recordAPICall(endpoint string, success, rateLimited bool) {
	if c.cfg.MetricsHook != nil {
		c.cfg.MetricsHook(endpoint, success, rateLimited)
	}
}

func (c *Client) requireUser() error {
	if c.auth.Scope() != UserScope {
		return ErrUserContextRequired
	}
	return nil
}

// streamGuard admits one keyword stream at a time.
type streamGuard struct {
	active atomic.Bool
}

// acquire claims the guard. The returned release is safe to call more than once.
func (g *streamGuard) acquire() (release func(), ok bool) {
	if !g.active.CompareAndSwap(false, true) {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(func() { g.active.Store(false) }) }, true
}
