package feed

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"x2discord/internal/model"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>foo</title>
<item>
<guid>p2</guid>
<link>https://x.com/foo/2</link>
<description>&lt;p&gt;hello &amp; welcome&lt;/p&gt;</description>
</item>
<item>
<guid>p1</guid>
<link>https://x.com/foo/1</link>
<description>first post</description>
</item>
</channel>
</rss>`

func TestFetchParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	client := New(srv.URL, 0)
	entries, err := client.Fetch("foo", 5)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ID != "p2" || entries[0].Link != "https://x.com/foo/2" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[0].Text != "hello & welcome" {
		t.Errorf("entries[0].Text = %q, want stripped+unescaped text", entries[0].Text)
	}
}

func TestFetchRespectsMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	client := New(srv.URL, 0)
	entries, err := client.Fetch("foo", 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
}

func TestFetchClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(srv.URL, 0)
	_, err := client.Fetch("foo", 5)
	if err == nil {
		t.Fatal("expected an error for a 429 response")
	}
	fe, ok := err.(*model.FetchError)
	if !ok {
		t.Fatalf("error type = %T, want *model.FetchError", err)
	}
	if fe.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", fe.StatusCode)
	}
	if !fe.HasRetryAfter || fe.RetryAfterSeconds != 120 {
		t.Errorf("RetryAfter = (%d, %v), want (120, true)", fe.RetryAfterSeconds, fe.HasRetryAfter)
	}
}

func TestFetchAppendsRefreshParam(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	client := New(srv.URL, 30)
	if _, err := client.Fetch("foo", 5); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotQuery != "refresh="+strconv.Itoa(30) {
		t.Errorf("query = %q, want refresh=30", gotQuery)
	}
}
