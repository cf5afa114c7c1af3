package twitter

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// createdAtLayout is the v1.1 created_at format, e.g.
// "Wed Aug 27 13:08:45 +0000 2008".
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// parseBearerToken extracts the access token from an oauth2/token response.
func parseBearerToken(body string) (string, error) {
	if !gjson.Valid(body) {
		return "", fmt.Errorf("%w: token response is not JSON", ErrDecode)
	}
	tok := gjson.Get(body, "access_token").String()
	if tok == "" {
		return "", fmt.Errorf("%w: token response has no access_token", ErrDecode)
	}
	if typ := gjson.Get(body, "token_type"); typ.Exists() && !strings.EqualFold(typ.String(), "bearer") {
		return "", fmt.Errorf("%w: unexpected token_type %q", ErrDecode, typ.String())
	}
	return tok, nil
}

// parseSearch decodes the statuses array of a search response, in order.
func parseSearch(body string) ([]*Tweet, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: search response is not JSON", ErrDecode)
	}
	statuses := gjson.Get(body, "statuses")
	if !statuses.IsArray() {
		return nil, fmt.Errorf("%w: search response has no statuses", ErrDecode)
	}

	var tweets []*Tweet
	var err error
	statuses.ForEach(func(_, r gjson.Result) bool {
		var t *Tweet
		t, err = parseTweet(r)
		if err != nil {
			return false
		}
		tweets = append(tweets, t)
		return true
	})
	if err != nil {
		return nil, err
	}
	return tweets, nil
}

// parseTweetJSON decodes a single status object.
func parseTweetJSON(body string) (*Tweet, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: status is not JSON", ErrDecode)
	}
	return parseTweet(gjson.Parse(body))
}

func parseTweet(r gjson.Result) (*Tweet, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: status is not an object", ErrDecode)
	}
	id := r.Get("id")
	if !id.Exists() {
		id = r.Get("id_str")
	}
	if !id.Exists() {
		return nil, fmt.Errorf("%w: status has no id", ErrDecode)
	}

	t := &Tweet{
		ID:   id.Int(),
		Text: r.Get("text").String(),
		Sender: Sender{
			ID:         r.Get("user.id").Int(),
			ScreenName: r.Get("user.screen_name").String(),
			Name:       r.Get("user.name").String(),
		},
	}
	if full := r.Get("full_text"); t.Text == "" && full.Exists() {
		t.Text = full.String()
	}
	if ca := r.Get("created_at").String(); ca != "" {
		ts, err := time.Parse(createdAtLayout, ca)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at %q: %v", ErrDecode, ca, err)
		}
		t.CreatedAt = ts
	}
	return t, nil
}

// streamNotices are the non-status messages a filter stream interleaves
// with statuses.
var streamNotices = []string{"limit", "delete", "scrub_geo", "status_withheld", "user_withheld", "warning"}

// isStreamNotice reports whether line is a control message rather than a status.
func isStreamNotice(line string) bool {
	if !gjson.Valid(line) {
		return false
	}
	r := gjson.Parse(line)
	if r.Get("id").Exists() {
		return false
	}
	for _, k := range streamNotices {
		if r.Get(k).Exists() {
			return true
		}
	}
	return false
}
