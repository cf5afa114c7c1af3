package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	twitter "github.com/anatolykoptev/go-twitterhub"
	"github.com/anatolykoptev/go-twitterhub/flow"
)

var (
	searchSince  int64
	pollInterval time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Print tweets matching a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var pollCmd = &cobra.Command{
	Use:   "poll <query>",
	Short: "Print new tweets matching a query as they appear",
	Long: `Search for a query right away and then again after every interval,
printing only tweets newer than any seen so far. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPoll,
}

func init() {
	searchCmd.Flags().Int64Var(&searchSince, "since", 0, "Only return tweets with an id above this one")
	pollCmd.Flags().Int64Var(&searchSince, "since", 0, "Initial watermark")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Poll interval (default: POLL_INTERVAL)")
	rootCmd.AddCommand(searchCmd, pollCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	return printTweets(cmd.Context(), cmd.OutOrStdout(), s.client.SearchSince(args[0], searchSince))
}

func runPoll(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	interval := pollInterval
	if interval == 0 {
		interval = s.cfg.PollInterval
	}
	seq, err := s.client.PollSince(args[0], searchSince, interval)
	if err != nil {
		return err
	}
	return printTweets(cmd.Context(), cmd.OutOrStdout(), seq)
}

// printTweets writes every tweet of seq to w until seq ends or ctx is
// cancelled.
func printTweets(ctx context.Context, w io.Writer, seq flow.Sequence[*twitter.Tweet]) error {
	for t, err := range flow.All(ctx, seq) {
		if err != nil {
			if interrupted(err) {
				return nil
			}
			return err
		}
		writeTweet(w, t)
	}
	return nil
}

func writeTweet(w io.Writer, t *twitter.Tweet) {
	ts := ""
	if !t.CreatedAt.IsZero() {
		ts = t.CreatedAt.Local().Format(time.DateTime) + " "
	}
	fmt.Fprintf(w, "%s%d @%s: %s\n", ts, t.ID, t.Sender.ScreenName, t.Text)
}
