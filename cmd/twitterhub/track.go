package main

import (
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var trackCmd = &cobra.Command{
	Use:   "track <keywords>",
	Short: "Stream tweets matching comma-separated keywords",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

var watchCmd = &cobra.Command{
	Use:   "watch <query> <keywords>",
	Short: "Poll a search query and stream keywords at the same time",
	Long: `Run poll for <query> and track for <keywords> side by side, printing
tweets from both until interrupted or either one fails.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Poll interval (default: POLL_INTERVAL)")
	rootCmd.AddCommand(trackCmd, watchCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	return printTweets(cmd.Context(), cmd.OutOrStdout(), s.client.TrackKeywords(args[0]))
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	interval := pollInterval
	if interval == 0 {
		interval = s.cfg.PollInterval
	}
	poll, err := s.client.Poll(args[0], interval)
	if err != nil {
		return err
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return printTweets(ctx, out, poll) })
	g.Go(func() error { return printTweets(ctx, out, s.client.TrackKeywords(args[1])) })
	return g.Wait()
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
