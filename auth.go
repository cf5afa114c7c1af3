package twitter

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/anatolykoptev/go-twitterhub/flow"
	"github.com/anatolykoptev/go-twitterhub/oauth1"
	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

// Authenticator produces the Authorization header for API requests.
type Authenticator interface {
	// Authorization emits one header value for a request with the given
	// method, URL and form body parameters, then completes.
	Authorization(method, rawURL string, form map[string]string) flow.Sequence[string]

	// Scope reports which operations the authenticator can authorize.
	Scope() Scope

	// Close releases any server-side credential. It is called at most once.
	Close(ctx context.Context) error
}

// SignedAuth signs every request with OAuth 1.0a user credentials.
type SignedAuth struct {
	signer *oauth1.Signer
}

// NewSignedAuth validates signer and wraps it.
func NewSignedAuth(signer *oauth1.Signer) (*SignedAuth, error) {
	if err := signer.Validate(); err != nil {
		return nil, err
	}
	return &SignedAuth{signer: signer}, nil
}

// Authorization signs at subscription time so every attempt gets a fresh
// nonce and timestamp.
func (a *SignedAuth) Authorization(method, rawURL string, form map[string]string) flow.Sequence[string] {
	return flow.Defer(func() flow.Sequence[string] {
		h, err := a.signer.Authorization(method, rawURL, form)
		if err != nil {
			return flow.Fail[string](fmt.Errorf("sign request: %w", err))
		}
		return flow.Just(h)
	})
}

func (a *SignedAuth) Scope() Scope { return UserScope }

func (a *SignedAuth) Close(context.Context) error { return nil }

// BearerAuth authorizes application requests with an OAuth 2 bearer token
// obtained through the client-credentials grant. The token is fetched on
// first use and shared by every later request.
type BearerAuth struct {
	svc       *pipeline.Service
	basic     string
	endpoints Endpoints
	log       *slog.Logger
	onCall    func(endpoint string, success bool)

	mu      sync.Mutex
	token   string
	waiters []*flow.Sink[string]
	fetch   *tokenFetch // in-flight attempt, nil when idle
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

func newBearerAuth(svc *pipeline.Service, key, secret string, endpoints Endpoints, log *slog.Logger, onCall func(string, bool)) *BearerAuth {
	return &BearerAuth{
		svc:       svc,
		basic:     basicCredentials(key, secret),
		endpoints: endpoints,
		log:       log,
		onCall:    onCall,
	}
}

// basicCredentials is the client-credentials Basic authorization value.
func basicCredentials(key, secret string) string {
	raw := oauth1.PercentEncode(key) + ":" + oauth1.PercentEncode(secret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

func (b *BearerAuth) Scope() Scope { return AppScope }

// Authorization emits "Bearer <token>". Subscribers arriving while a fetch
// is in flight wait for that fetch. A failed fetch fails all of its waiters;
// the next subscriber starts a new one.
func (b *BearerAuth) Authorization(string, string, map[string]string) flow.Sequence[string] {
	return flow.New(func(s *flow.Sink[string]) {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			s.Error(ErrClientClosed)
			return
		}
		if b.token != "" {
			tok := b.token
			b.mu.Unlock()
			s.Next("Bearer " + tok)
			s.Complete()
			return
		}
		b.waiters = append(b.waiters, s)
		var f *tokenFetch
		if b.fetch == nil {
			f = &tokenFetch{}
			b.fetch = f
		}
		b.mu.Unlock()

		s.Defer(func() { b.removeWaiter(s) })
		if f != nil {
			b.startFetch(f)
		}
	})
}

func (b *BearerAuth) removeWaiter(s *flow.Sink[string]) {
	b.mu.Lock()
	b.waiters = slices.DeleteFunc(b.waiters, func(w *flow.Sink[string]) bool { return w == s })
	b.mu.Unlock()
}

// tokenFetch is one client-credentials attempt.
type tokenFetch struct {
	sub *flow.Subscription
}

func (b *BearerAuth) startFetch(f *tokenFetch) {
	b.log.Info("bearer token fetch")
	seq := b.svc.CreatePost(b.endpoints.Token, formContentType,
		map[string]string{"Authorization": b.basic},
		[]byte("grant_type=client_credentials"),
	).ReadAllText()

	sub := seq.Subscribe(flow.Observer[string]{
		Next: func(body string) {
			tok, err := parseBearerToken(body)
			b.settle(f, tok, err)
		},
		Error: func(err error) {
			b.settle(f, "", fmt.Errorf("fetch bearer token: %w", err))
		},
	})

	b.mu.Lock()
	f.sub = sub
	b.mu.Unlock()
}

// settle delivers the outcome of f to its waiters. Outcomes of attempts
// abandoned by Close are dropped.
func (b *BearerAuth) settle(f *tokenFetch, tok string, err error) {
	b.mu.Lock()
	if b.fetch != f {
		b.mu.Unlock()
		return
	}
	waiters := b.waiters
	b.waiters = nil
	b.fetch = nil
	if err == nil {
		b.token = tok
	}
	b.mu.Unlock()

	if b.onCall != nil {
		b.onCall(OpToken, err == nil)
	}
	if err != nil {
		b.log.Warn("bearer token fetch failed", slog.Any("error", err))
		for _, w := range waiters {
			w.Error(err)
		}
		return
	}
	for _, w := range waiters {
		w.Next("Bearer " + tok)
		w.Complete()
	}
}

// Close invalidates the cached token, if any, and blocks until the
// invalidation request finishes. Later calls return the first result.
func (b *BearerAuth) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		tok := b.token
		b.token = ""
		var fetchSub *flow.Subscription
		if b.fetch != nil {
			fetchSub = b.fetch.sub
		}
		waiters := b.waiters
		b.fetch = nil
		b.waiters = nil
		b.mu.Unlock()

		if fetchSub != nil {
			fetchSub.Dispose()
		}
		for _, w := range waiters {
			w.Error(ErrClientClosed)
		}
		if tok == "" {
			return
		}

		seq := b.svc.CreatePost(b.endpoints.InvalidateToken, formContentType,
			map[string]string{"Authorization": b.basic},
			[]byte("access_token="+tok),
		).Send()
		if err := flow.Wait(ctx, seq); err != nil {
			b.closeErr = fmt.Errorf("invalidate bearer token: %w", err)
			b.log.Warn("bearer token invalidate failed", slog.Any("error", err))
			if b.onCall != nil {
				b.onCall(OpInvalidateToken, false)
			}
			return
		}
		if b.onCall != nil {
			b.onCall(OpInvalidateToken, true)
		}
		b.log.Info("bearer token invalidated")
	})
	return b.closeErr
}
