package twitter

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/anatolykoptev/go-twitterhub/pipeline"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected errorClass
	}{
		{"no errors", `{"statuses":[]}`, errNone},
		{"empty errors", `{"errors":[]}`, errNone},
		{"rate limited 88", `{"errors":[{"code":88}]}`, errRateLimited},
		{"suspended 64", `{"errors":[{"code":64}]}`, errSuspended},
		{"locked 326", `{"errors":[{"code":326}]}`, errLocked},
		{"auth expired 32", `{"errors":[{"code":32}]}`, errAuthExpired},
		{"invalid token 89", `{"errors":[{"code":89}]}`, errAuthExpired},
		{"timestamp 135", `{"errors":[{"code":135}]}`, errAuthExpired},
		{"blocked 161", `{"errors":[{"code":161}]}`, errBlocked},
		{"not authorized 179", `{"errors":[{"code":179}]}`, errNotAuthorized},
		{"not authorized 219", `{"errors":[{"code":219}]}`, errNotAuthorized},
		{"internal 131", `{"errors":[{"code":131}]}`, errInternal},
		{"duplicate 187", `{"errors":[{"code":187}]}`, errDuplicate},
		{"first known wins", `{"errors":[{"code":999},{"code":187}]}`, errDuplicate},
		{"unknown code", `{"errors":[{"code":999}]}`, errNone},
		{"invalid json", `{invalid`, errNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyError([]byte(tt.body))
			if result != tt.expected {
				t.Fatalf("classifyError(%s) = %d, want %d", tt.body, result, tt.expected)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		target  error
		message string
	}{
		{"rate limit code", 400, `{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`, ErrRateLimited, "search/tweets HTTP 400: code 88: Rate limit exceeded"},
		{"rate limit status", 429, `Too Many Requests`, ErrRateLimited, "search/tweets HTTP 429: Too Many Requests"},
		{"unauthorized status", 401, ``, ErrUnauthorized, "search/tweets HTTP 401: "},
		{"duplicate", 403, `{"errors":[{"code":187,"message":"Status is a duplicate."}]}`, ErrDuplicateStatus, "search/tweets HTTP 403: code 187: Status is a duplicate."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := &pipeline.StatusError{StatusCode: tt.status, Header: http.Header{}, Body: []byte(tt.body)}
			err := newAPIError(OpSearch, se)
			if !errors.Is(err, tt.target) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tt.target)
			}
			if err.Error() != tt.message {
				t.Fatalf("Error() = %q, want %q", err.Error(), tt.message)
			}
			var got *pipeline.StatusError
			if !errors.As(err, &got) || got != se {
				t.Fatal("expected StatusError in chain")
			}
		})
	}
}

func TestRateLimitError(t *testing.T) {
	err := error(&RateLimitError{Endpoint: OpSearch, Until: time.Unix(1700000000, 0)})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("expected ErrRateLimited")
	}
	if err.Error() != "search/tweets rate limited until 2023-11-14T22:13:20Z" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestParseRateLimitReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if got := parseRateLimitReset("1700000000", now); !got.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("expected header timestamp, got %s", got)
	}
	if got := parseRateLimitReset("", now); !got.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expected 15min fallback for missing header, got %s", got)
	}
	if got := parseRateLimitReset("not-a-number", now); !got.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expected 15min fallback for invalid input, got %s", got)
	}
}
