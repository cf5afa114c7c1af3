package twitter

import "time"

// Tweet is a single status.
type Tweet struct {
	ID        int64
	Text      string
	Sender    Sender
	CreatedAt time.Time
}

// Sender is the author of a tweet.
type Sender struct {
	ID         int64
	ScreenName string // handle without the leading @
	Name       string
}

// UserCredentials is the per-user OAuth token pair.
type UserCredentials struct {
	Token  string
	Secret string
}

// Scope tells which operations an Authenticator can authorize.
type Scope int

const (
	// AppScope authorizes read-only application requests.
	AppScope Scope = iota
	// UserScope authorizes requests on behalf of a user.
	UserScope
)

func (s Scope) String() string {
	if s == UserScope {
		return "user"
	}
	return "app"
}
