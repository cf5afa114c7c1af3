// Package oauth1 signs HTTP requests with OAuth 1.0a HMAC-SHA1 signatures.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HMACSHA1 is the only supported signature method.
const HMACSHA1 = "HMAC-SHA1"

var (
	ErrMissingConsumerKey         = errors.New("oauth1: missing consumer key")
	ErrMissingSignatureMethod     = errors.New("oauth1: missing signature method")
	ErrUnsupportedSignatureMethod = errors.New("oauth1: unsupported signature method")
)

// Signer produces Authorization header values for a fixed consumer and,
// optionally, a user token. Nonce and timestamp are generated per call, so a
// Signer can be shared between goroutines.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string

	// SignatureMethod must be HMAC-SHA1.
	SignatureMethod string
	// Version is rendered as oauth_version when non-empty.
	Version string
	// Callback is rendered as oauth_callback when non-empty.
	Callback string
	// Realm prefixes the header parameters when non-empty. It is never signed.
	Realm string

	// Nonce returns a fresh nonce. Defaults to a random 32-char alphanumeric string.
	Nonce func() string
	// Now returns the signing time. Defaults to time.Now.
	Now func() time.Time
}

// New returns a Signer for the given consumer and user credentials.
// token and tokenSecret may be empty for application-only signing.
func New(consumerKey, consumerSecret, token, tokenSecret string) *Signer {
	return &Signer{
		ConsumerKey:     consumerKey,
		ConsumerSecret:  consumerSecret,
		Token:           token,
		TokenSecret:     tokenSecret,
		SignatureMethod: HMACSHA1,
		Version:         "1.0",
	}
}

// Validate reports configuration errors that would make every signature invalid.
func (s *Signer) Validate() error {
	switch {
	case s.ConsumerKey == "":
		return ErrMissingConsumerKey
	case s.SignatureMethod == "":
		return ErrMissingSignatureMethod
	case s.SignatureMethod != HMACSHA1:
		return fmt.Errorf("%w: %s", ErrUnsupportedSignatureMethod, s.SignatureMethod)
	}
	return nil
}

// Authorization signs one request and returns the complete header value.
// params are the form body parameters; query parameters are taken from rawURL.
func (s *Signer) Authorization(method, rawURL string, params map[string]string) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	oauth := s.oauthParams()
	base, err := SignatureBase(method, rawURL, oauth, params)
	if err != nil {
		return "", err
	}
	oauth["oauth_signature"] = s.sign(base)

	return s.header(oauth), nil
}

// oauthParams returns the non-secret protocol parameters for a single request.
func (s *Signer) oauthParams() map[string]string {
	nonce := s.Nonce
	if nonce == nil {
		nonce = newNonce
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	p := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            nonce(),
		"oauth_signature_method": s.SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(now().Unix(), 10),
	}
	optional := map[string]string{
		"oauth_token":    s.Token,
		"oauth_version":  s.Version,
		"oauth_callback": s.Callback,
	}
	for k, v := range optional {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

func (s *Signer) sign(base string) string {
	key := PercentEncode(s.ConsumerSecret) + "&" + PercentEncode(s.TokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Signer) header(oauth map[string]string) string {
	keys := make([]string, 0, len(oauth))
	for k, v := range oauth {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	if s.Realm != "" {
		parts = append(parts, `realm="`+PercentEncode(s.Realm)+`"`)
	}
	for _, k := range keys {
		parts = append(parts, k+`="`+PercentEncode(oauth[k])+`"`)
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// SignatureBase builds the OAuth 1.0a signature base string from the request
// method, URL (including its query), protocol parameters and body parameters.
func SignatureBase(method, rawURL string, oauth, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("oauth1: parse url: %w", err)
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("oauth1: parse query: %w", err)
	}

	pairs := make([][2]string, 0, len(query)+len(oauth)+len(params))
	for k, vs := range query {
		for _, v := range vs {
			pairs = append(pairs, [2]string{PercentEncode(k), PercentEncode(v)})
		}
	}
	for k, v := range oauth {
		if k == "oauth_signature" {
			continue
		}
		pairs = append(pairs, [2]string{PercentEncode(k), PercentEncode(v)})
	}
	for k, v := range params {
		pairs = append(pairs, [2]string{PercentEncode(k), PercentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	joined := make([]string, len(pairs))
	for i, p := range pairs {
		joined[i] = p[0] + "=" + p[1]
	}

	return strings.ToUpper(method) + "&" +
		PercentEncode(normalizeURL(u)) + "&" +
		PercentEncode(strings.Join(joined, "&")), nil
}

// NormalizeURL returns scheme://host[:port]/path with default ports and the
// query string removed.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("oauth1: parse url: %w", err)
	}
	return normalizeURL(u), nil
}

func normalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		if !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
			host += ":" + port
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// PercentEncode escapes every byte of s except A-Z a-z 0-9 - _ . ~ as %XX with
// uppercase hex digits.
func PercentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' ||
		'a' <= c && c <= 'z' ||
		'0' <= c && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
