package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	twitter "github.com/anatolykoptev/go-twitterhub"
	"github.com/anatolykoptev/go-twitterhub/flow"
	"github.com/anatolykoptev/go-twitterhub/internal/config"
	"github.com/anatolykoptev/go-twitterhub/transport"
)

func TestWriteTweet(t *testing.T) {
	var buf bytes.Buffer
	writeTweet(&buf, &twitter.Tweet{ID: 42, Text: "hi", Sender: twitter.Sender{ScreenName: "bob"}})
	assert.Equal(t, "42 @bob: hi\n", buf.String())

	buf.Reset()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	writeTweet(&buf, &twitter.Tweet{ID: 1, Text: "x", Sender: twitter.Sender{ScreenName: "a"}, CreatedAt: at})
	assert.Equal(t, "2024-03-01 12:00:00 1 @a: x\n", buf.String())
}

func TestPrintTweets(t *testing.T) {
	var buf bytes.Buffer
	seq := flow.FromSlice([]*twitter.Tweet{
		{ID: 1, Text: "one", Sender: twitter.Sender{ScreenName: "a"}},
		{ID: 2, Text: "two", Sender: twitter.Sender{ScreenName: "b"}},
	})
	require.NoError(t, printTweets(context.Background(), &buf, seq))
	assert.Equal(t, "1 @a: one\n2 @b: two\n", buf.String())
}

func TestPrintTweetsInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	never := flow.New(func(*flow.Sink[*twitter.Tweet]) {})
	assert.NoError(t, printTweets(ctx, &buf, never))
	assert.Empty(t, buf.String())
}

func TestConfigureTransport(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		stealth bool
		wantErr bool
	}{
		{name: "plain http", cfg: config.Config{Transport: config.TransportHTTP}},
		{name: "http with proxy", cfg: config.Config{Transport: config.TransportHTTP, Proxy: "http://127.0.0.1:8080"}},
		{name: "stealth", cfg: config.Config{Transport: config.TransportStealth}, stealth: true},
		{name: "bad proxy", cfg: config.Config{Proxy: "://nope"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ccfg twitter.ClientConfig
			err := configureTransport(&tt.cfg, &ccfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &transport.HTTP{}, ccfg.StreamTransport)
			if tt.stealth {
				assert.IsType(t, &transport.Stealth{}, ccfg.Transport)
			} else {
				assert.Same(t, ccfg.StreamTransport, ccfg.Transport)
			}
		})
	}
}
