package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "twitterhub",
	Short: "Search, watch and post to Twitter from the command line",
	Long: `twitterhub talks to the Twitter v1.1 API with application (bearer token)
or user (OAuth 1.0a) credentials read from the environment or a .env file.

Read-only commands (search, poll) need TWITTER_CONSUMER_KEY and
TWITTER_CONSUMER_SECRET. Commands acting for a user (post, like, track, watch)
also need TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_SECRET.`,
	SilenceUsage: true,
}

func init() {
	// Load .env file if present
	_ = godotenv.Load()

	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
