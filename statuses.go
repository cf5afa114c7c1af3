package twitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go-twitterhub/flow"
)

// PostTweet posts text as the user and emits the created tweet. When replyTo
// is set the post is threaded under it, and its sender is mentioned unless
// text already does.
func (c *Client) PostTweet(text string, replyTo *Tweet) flow.Sequence[*Tweet] {
	if replyTo != nil && !strings.Contains(text, "@"+replyTo.Sender.ScreenName) {
		return c.PostTweetTo(text, replyTo.Sender.ScreenName, replyTo)
	}
	if err := c.requireUser(); err != nil {
		return flow.Fail[*Tweet](err)
	}

	form := map[string]string{"status": text}
	if replyTo != nil {
		form["in_reply_to_status_id"] = strconv.FormatInt(replyTo.ID, 10)
	}
	return flow.Map(c.postForm(OpUpdate, c.cfg.Endpoints.Update, form), func(body string) (*Tweet, error) {
		t, err := parseTweetJSON(body)
		if err != nil {
			return nil, fmt.Errorf("post status: %w", err)
		}
		return t, nil
	})
}

// PostTweetTo posts text addressed to recipient.
func (c *Client) PostTweetTo(text, recipient string, replyTo *Tweet) flow.Sequence[*Tweet] {
	return c.PostTweet("@"+recipient+" "+text, replyTo)
}

// Like marks tweet as a favorite of the user. It emits once the API has
// acknowledged the request.
func (c *Client) Like(tweet *Tweet) flow.Sequence[struct{}] {
	if err := c.requireUser(); err != nil {
		return flow.Fail[struct{}](err)
	}
	form := map[string]string{"id": strconv.FormatInt(tweet.ID, 10)}
	return flow.Ignore(c.postForm(OpFavoritesCreate, c.cfg.Endpoints.FavoritesCreate, form))
}
