package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/text/encoding"

	"github.com/anatolykoptev/go-twitterhub/flow"
	"github.com/anatolykoptev/go-twitterhub/sched"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Transport performs the network I/O. Required.
	Transport Transport

	// Scheduler runs the exchange steps. Default: sched.Default.
	Scheduler sched.Scheduler

	// IdleDelay is how long a streaming read waits at end of stream before
	// trying again when StopAtEOF(false) is set. Default: 250ms.
	IdleDelay time.Duration

	// Logger receives step-level debug logs. Default: slog.Default().
	Logger *slog.Logger
}

func (cfg *ServiceConfig) defaults() {
	if cfg.Scheduler == nil {
		cfg.Scheduler = sched.Default
	}
	if cfg.IdleDelay == 0 {
		cfg.IdleDelay = 250 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Service builds request descriptors and executes them.
type Service struct {
	cfg ServiceConfig
}

// NewService returns a Service. It panics if cfg.Transport is nil.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Transport == nil {
		panic("pipeline: nil transport")
	}
	cfg.defaults()
	return &Service{cfg: cfg}
}

// Scheduler returns the scheduler the service runs its steps on.
func (s *Service) Scheduler() sched.Scheduler { return s.cfg.Scheduler }

// Descriptor describes one exchange. It is consumed by a single
// subscription; subscribing twice runs the exchange twice.
type Descriptor struct {
	URL     string
	Factory func(ctx context.Context) (RawRequest, error)
	Body    []byte
	Service *Service
}

// Send runs the exchange and emits a single value once the response arrives.
func (d Descriptor) Send(opts ...Option) flow.Sequence[struct{}] {
	return d.Service.Send(d, opts...)
}

// ReadBytes runs the exchange and emits the response body byte by byte.
func (d Descriptor) ReadBytes(opts ...Option) flow.Sequence[byte] {
	return d.Service.SendAndReadBytes(d, opts...)
}

// ReadLines runs the exchange and emits the response body line by line.
func (d Descriptor) ReadLines(opts ...Option) flow.Sequence[string] {
	return d.Service.SendAndReadLines(d, opts...)
}

// ReadAllText runs the exchange and emits the whole response body once.
func (d Descriptor) ReadAllText(opts ...Option) flow.Sequence[string] {
	return d.Service.SendAndReadAllText(d, opts...)
}

// Create returns a descriptor for rawURL. modify configures the raw request
// after creation; body, when non-nil, is written before awaiting the response.
func (s *Service) Create(rawURL string, modify func(RawRequest), body []byte) Descriptor {
	return Descriptor{
		URL:     rawURL,
		Body:    body,
		Service: s,
		Factory: func(ctx context.Context) (RawRequest, error) {
			req, err := s.cfg.Transport.NewRequest(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			if modify != nil {
				modify(req)
			}
			return req, nil
		},
	}
}

// CreateGet returns a GET descriptor with the given headers.
func (s *Service) CreateGet(rawURL string, headers map[string]string) Descriptor {
	return s.Create(rawURL, func(r RawRequest) {
		r.SetMethod(http.MethodGet)
		setHeaders(r, headers)
	}, nil)
}

// CreatePost returns a POST descriptor sending body with the given content type.
func (s *Service) CreatePost(rawURL, contentType string, headers map[string]string, body []byte) Descriptor {
	if body == nil {
		body = []byte{}
	}
	return s.Create(rawURL, func(r RawRequest) {
		r.SetMethod(http.MethodPost)
		if contentType != "" {
			r.Header().Set("Content-Type", contentType)
		}
		setHeaders(r, headers)
	}, body)
}

func setHeaders(r RawRequest, headers map[string]string) {
	for k, v := range headers {
		r.Header().Set(k, v)
	}
}

// Option tunes a single exchange.
type Option func(*options)

type options struct {
	stopAtEOF bool
	encoding  encoding.Encoding
	scheduler sched.Scheduler
}

// StopAtEOF controls what streaming modes do at end of stream: complete
// (the default) or wait for more data.
func StopAtEOF(stop bool) Option {
	return func(o *options) { o.stopAtEOF = stop }
}

// WithEncoding decodes text modes with enc instead of UTF-8.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) { o.encoding = enc }
}

// WithScheduler runs this exchange on sch instead of the service scheduler.
func WithScheduler(sch sched.Scheduler) Option {
	return func(o *options) { o.scheduler = sch }
}

func (s *Service) options(opts []Option) options {
	o := options{stopAtEOF: true, scheduler: s.cfg.Scheduler}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
