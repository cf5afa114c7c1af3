package twitter

import (
	"fmt"
	"strings"
	"time"
)

// Account is a set of API credentials: the application's consumer pair and,
// optionally, one user's access token pair.
type Account struct {
	ConsumerKey    string
	ConsumerSecret string
	User           *UserCredentials
}

// ParseAccount parses a colon-separated credential string.
// Format: "consumer_key:consumer_secret" or
// "consumer_key:consumer_secret:access_token:access_secret".
func ParseAccount(raw string) (Account, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 2, 4:
	default:
		return Account{}, fmt.Errorf("parse account: want 2 or 4 colon-separated fields, got %d", len(parts))
	}
	if parts[0] == "" {
		return Account{}, fmt.Errorf("parse account: empty consumer key")
	}

	acc := Account{ConsumerKey: parts[0], ConsumerSecret: parts[1]}
	if len(parts) == 4 {
		if parts[2] == "" {
			return Account{}, fmt.Errorf("parse account: empty access token")
		}
		acc.User = &UserCredentials{Token: parts[2], Secret: parts[3]}
	}
	return acc, nil
}

// Apply copies the consumer credentials into cfg.
func (a Account) Apply(cfg *ClientConfig) {
	cfg.ConsumerKey = a.ConsumerKey
	cfg.ConsumerSecret = a.ConsumerSecret
}

// Client builds a user client when the account carries user credentials and
// an application client otherwise.
func (a Account) Client(cfg ClientConfig) (*Client, error) {
	a.Apply(&cfg)
	if a.User != nil {
		return NewUserClient(cfg, *a.User)
	}
	return NewAppClient(cfg)
}

// IsEndpointRateLimited returns true if the endpoint is currently blocked.
func (c *Client) IsEndpointRateLimited(endpoint string) bool {
	return c.limiter.IsRateLimited(endpoint)
}

// EndpointAvailableAt returns when the given endpoint may be called again.
func (c *Client) EndpointAvailableAt(endpoint string) time.Time {
	return c.limiter.AvailableAt(endpoint)
}
