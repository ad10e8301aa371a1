package service

import (
	"strings"
	"unicode/utf8"
)

const snippetLength = 200

// MakeSnippet returns about snippetLength characters of text around the earliest occurrence of any
// query word, with "..." marking cut edges. Without a match the head of the text is used.
func MakeSnippet(text, query string) string {
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}

	lower := strings.ToLower(text)

	best := -1

	for _, term := range strings.Fields(strings.ToLower(query)) {
		if idx := strings.Index(lower, term); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}

	if best < 0 {
		return string(runes[:snippetLength]) + "..."
	}

	pos := runePosition(lower, best)

	start := max(0, pos-snippetLength/2)
	end := min(len(runes), start+snippetLength)
	start = max(0, end-snippetLength)

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}

	if end < len(runes) {
		out += "..."
	}

	return out
}

// headSnippet is the first snippetLength characters of text, with "..." when cut.
func headSnippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}

	return string(runes[:snippetLength]) + "..."
}

// truncateRunes cuts text to n characters and appends "..." when it was longer.
func truncateRunes(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	return string([]rune(text)[:n]) + "..."
}

func runePosition(s string, byteIdx int) int {
	return utf8.RuneCountInString(s[:byteIdx])
}
