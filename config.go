package twitter

import (
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"

	"github.com/anatolykoptev/go-twitterhub/pipeline"
	"github.com/anatolykoptev/go-twitterhub/sched"
	"github.com/anatolykoptev/go-twitterhub/transport"
)

// MinPollInterval is the shortest interval Poll accepts.
const MinPollInterval = 10 * time.Second

// ClientConfig holds all configuration for the Twitter client.
type ClientConfig struct {
	// ConsumerKey and ConsumerSecret identify the application.
	ConsumerKey    string
	ConsumerSecret string

	// Transport performs REST requests. Default: transport.NewHTTP(nil).
	Transport pipeline.Transport

	// StreamTransport performs long-lived streaming requests. It must deliver
	// the response body incrementally. Default: Transport.
	StreamTransport pipeline.Transport

	// Scheduler runs pipeline steps and poll timers. Default: sched.Default.
	Scheduler sched.Scheduler

	// Endpoints overrides resource URLs. Zero fields use DefaultEndpoints.
	Endpoints Endpoints

	// RateLimit configures per-endpoint rate limiting.
	RateLimit ratelimit.Config

	// StreamIdleDelay is how long the keyword stream waits before reading
	// again when no data is available. Default: 250ms.
	StreamIdleDelay time.Duration

	// MetricsHook is called on each API request for external metrics collection.
	// endpoint is the operation name, success and rateLimited indicate the outcome.
	MetricsHook func(endpoint string, success, rateLimited bool)

	// Logger receives client logs. Default: slog.Default().
	Logger *slog.Logger
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.Transport == nil {
		cfg.Transport = transport.NewHTTP(nil)
	}
	if cfg.StreamTransport == nil {
		cfg.StreamTransport = cfg.Transport
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = sched.Default
	}
	cfg.Endpoints.defaults()
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
	if cfg.StreamIdleDelay == 0 {
		cfg.StreamIdleDelay = 250 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}
