// Package normalize implements the account-handle and keyword-text
// normalization rules shared by the subscription store and the filter
// engine.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCase = cases.Fold()

// keywordSplit matches runs of commas and/or newlines separating
// user-supplied keyword entries.
var keywordSplit = regexp.MustCompile(`[,\n]+`)

// Account applies the five-step handle normalization: trim, strip trailing
// slashes, collapse a URL down to its final path segment, strip a leading
// "@", and reject an empty result.
func Account(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimRight(value, "/")

	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if idx := strings.LastIndex(value, "/"); idx >= 0 {
			value = value[idx+1:]
		}
	}

	value = strings.TrimPrefix(value, "@")

	if value == "" {
		return "", fmt.Errorf("normalize: account handle is empty after normalization")
	}
	return value, nil
}

// Text performs NFKC compatibility normalization, full Unicode case
// folding, and outer-whitespace trimming. It is idempotent:
// Text(Text(x)) == Text(x).
func Text(s string) string {
	folded := foldCase.String(norm.NFKC.String(s))
	return strings.TrimSpace(folded)
}

// ParseKeywordInput splits a user-supplied string on runs of commas and/or
// newlines, normalizes each piece, drops empties, and preserves order.
func ParseKeywordInput(raw string) []string {
	pieces := keywordSplit.Split(raw, -1)
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		normalized := Text(p)
		if normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}
