package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	twitter "github.com/anatolykoptev/go-twitterhub"
	"github.com/anatolykoptev/go-twitterhub/flow"
)

var (
	postReplyTo   int64
	postReplyUser string
	postTo        string
)

var postCmd = &cobra.Command{
	Use:   "post <text>",
	Short: "Post a tweet as the configured user",
	Long: `Post a tweet. With --reply-to and --reply-user the tweet is threaded
under that status and mentions its author. With --to it is addressed to a user.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPost,
}

var likeCmd = &cobra.Command{
	Use:   "like <tweet-id>",
	Short: "Like a tweet as the configured user",
	Args:  cobra.ExactArgs(1),
	RunE:  runLike,
}

func init() {
	postCmd.Flags().Int64Var(&postReplyTo, "reply-to", 0, "Status id to reply to")
	postCmd.Flags().StringVar(&postReplyUser, "reply-user", "", "Screen name of the author being replied to")
	postCmd.Flags().StringVar(&postTo, "to", "", "Screen name to address the tweet to")
	postCmd.MarkFlagsRequiredTogether("reply-to", "reply-user")
	rootCmd.AddCommand(postCmd, likeCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	text := strings.Join(args, " ")
	var replyTo *twitter.Tweet
	if postReplyTo != 0 {
		replyTo = &twitter.Tweet{ID: postReplyTo, Sender: twitter.Sender{ScreenName: strings.TrimPrefix(postReplyUser, "@")}}
	}

	seq := s.client.PostTweet(text, replyTo)
	if postTo != "" {
		seq = s.client.PostTweetTo(text, strings.TrimPrefix(postTo, "@"), replyTo)
	}
	t, err := flow.First(cmd.Context(), seq)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	writeTweet(cmd.OutOrStdout(), t)
	return nil
}

func runLike(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tweet id %q: %w", args[0], err)
	}

	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	if err := flow.Wait(cmd.Context(), s.client.Like(&twitter.Tweet{ID: id})); err != nil {
		return fmt.Errorf("like: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "liked %d\n", id)
	return nil
}
