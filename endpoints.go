package twitter

const (
	twitterAPIURL    = "https://api.twitter.com"
	twitterStreamURL = "https://stream.twitter.com"
)

// Operation names reported to MetricsHook and used as rate-limit keys.
const (
	OpToken           = "oauth2/token"
	OpInvalidateToken = "oauth2/invalidate_token"
	OpSearch          = "search/tweets"
	OpUpdate          = "statuses/update"
	OpFavoritesCreate = "favorites/create"
	OpFilter          = "statuses/filter"
)

// Endpoints holds the absolute URLs of every REST and streaming resource the
// client talks to. Zero fields fall back to DefaultEndpoints.
type Endpoints struct {
	Token           string
	InvalidateToken string
	Search          string
	Update          string
	FavoritesCreate string
	StatusesFilter  string
}

// DefaultEndpoints are the public Twitter v1.1 resources.
var DefaultEndpoints = Endpoints{
	Token:           twitterAPIURL + "/oauth2/token",
	InvalidateToken: twitterAPIURL + "/oauth2/invalidate_token",
	Search:          twitterAPIURL + "/1.1/search/tweets.json",
	Update:          twitterAPIURL + "/1.1/statuses/update.json",
	FavoritesCreate: twitterAPIURL + "/1.1/favorites/create.json",
	StatusesFilter:  twitterStreamURL + "/1.1/statuses/filter.json",
}

// WithBase returns endpoints rooted at base for both REST and streaming
// resources. Useful against a local stub server.
func WithBase(base string) Endpoints {
	return Endpoints{
		Token:           base + "/oauth2/token",
		InvalidateToken: base + "/oauth2/invalidate_token",
		Search:          base + "/1.1/search/tweets.json",
		Update:          base + "/1.1/statuses/update.json",
		FavoritesCreate: base + "/1.1/favorites/create.json",
		StatusesFilter:  base + "/1.1/statuses/filter.json",
	}
}

func (e *Endpoints) defaults() {
	set := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	set(&e.Token, DefaultEndpoints.Token)
	set(&e.InvalidateToken, DefaultEndpoints.InvalidateToken)
	set(&e.Search, DefaultEndpoints.Search)
	set(&e.Update, DefaultEndpoints.Update)
	set(&e.FavoritesCreate, DefaultEndpoints.FavoritesCreate)
	set(&e.StatusesFilter, DefaultEndpoints.StatusesFilter)
}
