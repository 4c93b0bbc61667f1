// Package filter implements the pure, store-free predicate deciding
// whether a fetched Entry is eligible for delivery under a Subscription's
// repost/quote flags and keyword lists.
package filter

import (
	"regexp"
	"strings"
	"unicode"

	"x2discord/internal/model"
	"x2discord/internal/normalize"
)

const (
	repostMarkerJA = "リツイート"
	quoteMarkerJA  = "引用"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// ShouldInclude evaluates the ordered predicates of §4.2: the first
// failing predicate decides. It never touches a store and is deterministic
// for identical inputs.
func ShouldInclude(entry model.Entry, sub model.Subscription) bool {
	if !sub.IncludeReposts && isRepost(entry.Text) {
		return false
	}
	if !sub.IncludeQuotes && isQuote(entry.Text, entry.RawText) {
		return false
	}

	normalized := normalizedEntry(entry)

	for _, kw := range sub.ExcludeKeywords {
		if kw != "" && strings.Contains(normalized, kw) {
			return false
		}
	}

	if len(sub.IncludeKeywords) > 0 {
		matched := false
		for _, kw := range sub.IncludeKeywords {
			if kw != "" && strings.Contains(normalized, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// normalizedEntry joins the normalized plain text with the normalized,
// markup-stripped raw text, single-space separated, matching the spec's
// normalized(entry) definition used for keyword containment checks.
func normalizedEntry(entry model.Entry) string {
	a := normalize.Text(entry.Text)
	b := normalize.Text(stripMarkup(entry.RawText))
	return strings.TrimSpace(a + " " + b)
}

// stripMarkup replaces tag spans with a single space, preserving word
// boundaries, rather than collapsing them to nothing.
func stripMarkup(s string) string {
	return markupTag.ReplaceAllString(s, " ")
}

func isRepost(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(line, " \t\r")
		if trimmed == "" {
			continue
		}
		folded := normalize.Text(trimmed)
		if strings.HasPrefix(folded, repostMarkerJA) {
			return true
		}
		if strings.HasPrefix(folded, "rt") {
			rest := folded[2:]
			if rest == "" {
				return true
			}
			r := []rune(rest)[0]
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}

func isQuote(text, rawText string) bool {
	folded := normalize.Text(text)
	if strings.Contains(folded, "quote tweet") ||
		strings.Contains(folded, quoteMarkerJA) ||
		strings.Contains(folded, "quoted tweet") {
		return true
	}
	return strings.Contains(normalize.Text(rawText), "rsshub-quote")
}
