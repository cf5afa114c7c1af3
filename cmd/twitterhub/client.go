package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	twitter "github.com/anatolykoptev/go-twitterhub"
	"github.com/anatolykoptev/go-twitterhub/internal/config"
	"github.com/anatolykoptev/go-twitterhub/metrics"
	"github.com/anatolykoptev/go-twitterhub/transport"
)

// session is a configured client plus whatever needs shutting down with it.
type session struct {
	cfg     *config.Config
	client  *twitter.Client
	metrics *http.Server
}

// openSession loads configuration and builds a client. user selects the
// user-context client and requires user credentials.
func openSession(user bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if user {
		err = cfg.ValidateForUser()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}

	ccfg := twitter.ClientConfig{Logger: slog.Default()}
	if err := configureTransport(cfg, &ccfg); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	if cfg.MetricsAddr != "" {
		hook, err := metrics.NewHook(nil)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		ccfg.MetricsHook = hook.Record
		s.metrics = serveMetrics(cfg.MetricsAddr)
	}

	acc := cfg.Account()
	if !user {
		acc.User = nil
	}
	s.client, err = acc.Client(ccfg)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func configureTransport(cfg *config.Config, ccfg *twitter.ClientConfig) error {
	hc := &http.Client{}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("invalid TWITTER_PROXY: %w", err)
		}
		hc.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
	streaming := transport.NewHTTP(hc)

	switch cfg.Transport {
	case config.TransportStealth:
		st, err := transport.NewStealth(transport.StealthConfig{Proxy: cfg.Proxy})
		if err != nil {
			return err
		}
		ccfg.Transport = st
	default:
		ccfg.Transport = streaming
	}
	ccfg.StreamTransport = streaming
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return srv
}

// close invalidates credentials and stops the metrics server. It uses its own
// deadline so that it still runs after the command context is cancelled.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.client != nil {
		if err := s.client.Close(ctx); err != nil {
			slog.Warn("client close failed", slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}
}

// interrupted reports whether err only reflects the command being stopped.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
