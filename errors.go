package twitter

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

var (
	// ErrOperationInProgress is returned when a second keyword stream is
	// started while one is active on the same client.
	ErrOperationInProgress = errors.New("twitter: operation in progress")

	// ErrInvalidInterval is returned for poll intervals under MinPollInterval.
	ErrInvalidInterval = errors.New("twitter: poll interval too short")

	// ErrUserContextRequired is returned by user operations on an
	// application-scope client.
	ErrUserContextRequired = errors.New("twitter: user context required")

	// ErrClientClosed is returned by authenticated operations after Close.
	ErrClientClosed = errors.New("twitter: client closed")

	// ErrDecode wraps malformed response bodies.
	ErrDecode = errors.New("twitter: decode response")

	ErrRateLimited     = errors.New("twitter: rate limited")
	ErrUnauthorized    = errors.New("twitter: unauthorized")
	ErrDuplicateStatus = errors.New("twitter: duplicate status")
)

// errorClass categorizes Twitter API error responses for targeted handling.
type errorClass int

const (
	errNone          errorClass = iota
	errRateLimited              // 88 or HTTP 429
	errSuspended                // 64: account suspended
	errLocked                   // 326: account locked
	errAuthExpired              // 32, 89, 135: could not authenticate
	errBlocked                  // 161: blocked from performing action
	errNotAuthorized            // 179, 219: not authorized
	errInternal                 // 131: Twitter internal error
	errDuplicate                // 187: status is a duplicate
)

// classifyError inspects a response body for known Twitter error codes.
func classifyError(body []byte) errorClass {
	if !gjson.ValidBytes(body) {
		return errNone
	}
	class := errNone
	gjson.GetBytes(body, "errors.#.code").ForEach(func(_, code gjson.Result) bool {
		switch code.Int() {
		case 88:
			class = errRateLimited
		case 64:
			class = errSuspended
		case 326:
			class = errLocked
		case 32, 89, 135:
			class = errAuthExpired
		case 161:
			class = errBlocked
		case 179, 219:
			class = errNotAuthorized
		case 131:
			class = errInternal
		case 187:
			class = errDuplicate
		default:
			return true
		}
		return false
	})
	return class
}

// APIError is a non-2xx response from the Twitter API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Code       int    // first Twitter error code, 0 when absent
	Message    string // first Twitter error message, raw body prefix when absent

	class  errorClass
	status *pipeline.StatusError
}

func newAPIError(endpoint string, se *pipeline.StatusError) *APIError {
	e := &APIError{
		Endpoint:   endpoint,
		StatusCode: se.StatusCode,
		class:      classifyError(se.Body),
		status:     se,
	}
	if first := gjson.GetBytes(se.Body, "errors.0"); first.Exists() {
		e.Code = int(first.Get("code").Int())
		e.Message = first.Get("message").String()
	} else {
		e.Message = truncateBytes(se.Body, 200)
	}
	if e.class == errNone {
		switch se.StatusCode {
		case 429:
			e.class = errRateLimited
		case 401:
			e.class = errAuthExpired
		}
	}
	return e
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s HTTP %d: code %d: %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.status }

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.class == errRateLimited
	case ErrUnauthorized:
		return e.class == errAuthExpired || e.class == errNotAuthorized
	case ErrDuplicateStatus:
		return e.class == errDuplicate
	}
	return false
}

// RateLimitError is returned while an endpoint is rate limited. Err is the
// API error that triggered the limit, nil when the call failed fast.
type RateLimitError struct {
	Endpoint string
	Until    time.Time
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited until %s", e.Endpoint, e.Until.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// parseRateLimitReset parses the X-Rate-Limit-Reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string, now time.Time) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return now.Add(15 * time.Minute)
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
