package reranker

import (
	"strings"
	"unicode/utf8"
)

// WindowOptions bounds the text sent to the cross-encoder for one document.
type WindowOptions struct {
	// Radius is the number of runes kept on each side of the first matching query term.
	Radius int
	// PrefixLength is the number of leading runes kept when no query term matches.
	PrefixLength int
}

// DefaultWindowOptions keeps about 4000 runes either way.
var DefaultWindowOptions = WindowOptions{Radius: 2000, PrefixLength: 4000}

// queryTerms returns the lowercased whitespace-separated words of query longer than two runes,
// in query order.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// SelectWindow picks the slice of text scored against query. The first query term (in query
// order) that occurs in the text, compared case-insensitively, anchors a window of opts.Radius
// runes on each side of the match. When no term occurs, the first opts.PrefixLength runes are used.
func SelectWindow(text, query string, opts WindowOptions) string {
	if text == "" {
		return ""
	}

	runes := []rune(text)
	// unicode.ToLower maps rune to rune, so indexes into lower line up with runes.
	lower := strings.ToLower(text)

	for _, term := range queryTerms(query) {
		byteIdx := strings.Index(lower, term)
		if byteIdx < 0 {
			continue
		}

		pos := utf8.RuneCountInString(lower[:byteIdx])
		start := max(0, pos-opts.Radius)
		end := min(len(runes), pos+opts.Radius)

		return string(runes[start:end])
	}

	if len(runes) <= opts.PrefixLength {
		return text
	}

	return string(runes[:opts.PrefixLength])
}
