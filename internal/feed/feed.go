// Package feed implements model.FeedClient against a self-hosted RSS
// producer using github.com/mmcdole/gofeed.
package feed

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"x2discord/internal/model"
)

const (
	userAgent      = "x2discord/1.0"
	fetchTimeout   = 30 * time.Second
	accountPathFmt = "%s/twitter/user/%s"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Client fetches per-account timelines from the configured feed base URL.
type Client struct {
	baseURL        string
	refreshSeconds int
	httpClient     *http.Client
	parser         *gofeed.Parser
}

// New constructs a Client. refreshSeconds of 0 omits the refresh query
// parameter entirely.
func New(baseURL string, refreshSeconds int) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		refreshSeconds: refreshSeconds,
		httpClient:     &http.Client{Timeout: fetchTimeout},
		parser:         gofeed.NewParser(),
	}
}

// Fetch retrieves up to maxResults entries for account, newest-first. HTTP
// 429/403 responses are surfaced as *model.FetchError so the poll engine
// can apply the rate-limit/backoff policy; it never blocks beyond
// fetchTimeout.
func (c *Client) Fetch(account string, maxResults int) ([]model.Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	endpoint := fmt.Sprintf(accountPathFmt, c.baseURL, url.PathEscape(account))
	if c.refreshSeconds > 0 {
		endpoint += "?refresh=" + strconv.Itoa(c.refreshSeconds)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &model.FetchError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.FetchError{Err: fmt.Errorf("feed: request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		fe := &model.FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("feed: rate limited")}
		if retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			fe.RetryAfterSeconds = retryAfter
			fe.HasRetryAfter = true
		}
		return nil, fe
	}
	if resp.StatusCode == http.StatusForbidden {
		return nil, &model.FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("feed: forbidden")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("feed: unexpected status %d", resp.StatusCode)}
	}

	parsed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, &model.FetchError{Err: fmt.Errorf("feed: parse failed: %w", err)}
	}

	entries := make([]model.Entry, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		if maxResults > 0 && len(entries) >= maxResults {
			break
		}
		entries = append(entries, toEntry(account, item, i))
	}
	return entries, nil
}

func toEntry(account string, item *gofeed.Item, index int) model.Entry {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	if id == "" {
		id = fmt.Sprintf("%s-%d", account, index)
	}

	rawText := item.Description
	if rawText == "" {
		rawText = item.Content
	}
	if rawText == "" {
		rawText = item.Title
	}

	link := item.Link
	if link == "" {
		link = fmt.Sprintf("https://x.com/%s", account)
	}

	return model.Entry{
		ID:      id,
		Link:    link,
		Text:    stripHTML(rawText),
		RawText: rawText,
	}
}

// stripHTML unescapes HTML entities and removes tag spans, mirroring the
// original fetcher's entity-decode-then-strip-tags approach.
func stripHTML(s string) string {
	unescaped := html.UnescapeString(s)
	stripped := htmlTag.ReplaceAllString(unescaped, "")
	return strings.TrimSpace(stripped)
}

func parseRetryAfter(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}
