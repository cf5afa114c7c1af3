package twitter

import (
	"errors"
	"testing"
	"time"
)

func TestParseSearch(t *testing.T) {
	body := `{
		"statuses": [
			{
				"id": 1354124376329359361,
				"id_str": "1354124376329359361",
				"text": "hello #golang",
				"created_at": "Tue Jan 26 17:32:00 +0000 2021",
				"user": {"id": 42, "screen_name": "alice", "name": "Alice"}
			},
			{
				"id": 7,
				"text": "second",
				"user": {"screen_name": "bob"}
			}
		],
		"search_metadata": {"max_id": 1354124376329359361}
	}`

	tweets, err := parseSearch(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(tweets) != 2 {
		t.Fatalf("expected 2 tweets, got %d", len(tweets))
	}
	first := tweets[0]
	if first.ID != 1354124376329359361 {
		t.Fatalf("expected exact 64-bit id, got %d", first.ID)
	}
	if first.Text != "hello #golang" {
		t.Fatalf("unexpected text %q", first.Text)
	}
	if first.Sender.ScreenName != "alice" || first.Sender.Name != "Alice" || first.Sender.ID != 42 {
		t.Fatalf("unexpected sender %+v", first.Sender)
	}
	want := time.Date(2021, 1, 26, 17, 32, 0, 0, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Fatalf("expected created_at %s, got %s", want, first.CreatedAt)
	}
	if tweets[1].ID != 7 || !tweets[1].CreatedAt.IsZero() {
		t.Fatalf("unexpected second tweet %+v", tweets[1])
	}
}

func TestParseSearch_Empty(t *testing.T) {
	tweets, err := parseSearch(`{"statuses":[]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(tweets) != 0 {
		t.Fatalf("expected no tweets, got %d", len(tweets))
	}
}

func TestParseSearch_Malformed(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"errors":[{"code":32}]}`,
		`{"statuses":[{"text":"no id"}]}`,
		`{"statuses":[{"id":1,"created_at":"yesterday"}]}`,
		`{"statuses":[42]}`,
	} {
		_, err := parseSearch(body)
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("parseSearch(%s): expected ErrDecode, got %v", body, err)
		}
	}
}

func TestParseTweetJSON_IDString(t *testing.T) {
	tw, err := parseTweetJSON(`{"id_str":"99","text":"x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if tw.ID != 99 {
		t.Fatalf("expected id 99, got %d", tw.ID)
	}
}

func TestParseBearerToken(t *testing.T) {
	tok, err := parseBearerToken(`{"token_type":"bearer","access_token":"AAAA%2FAAA%3DAAAAAAAA"}`)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "AAAA%2FAAA%3DAAAAAAAA" {
		t.Fatalf("unexpected token %q", tok)
	}

	for _, body := range []string{``, `{}`, `{"token_type":"mac","access_token":"x"}`} {
		if _, err := parseBearerToken(body); !errors.Is(err, ErrDecode) {
			t.Fatalf("parseBearerToken(%q): expected ErrDecode, got %v", body, err)
		}
	}
}

func TestIsStreamNotice(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{`{"limit":{"track":12}}`, true},
		{`{"delete":{"status":{"id":1}}}`, true},
		{`{"id":1,"text":"hi"}`, false},
		{`{"id":1,"limit":"x"}`, false},
		{`garbage`, false},
	}
	for _, tt := range tests {
		if got := isStreamNotice(tt.line); got != tt.want {
			t.Fatalf("isStreamNotice(%s) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
