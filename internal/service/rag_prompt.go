package service

import (
	"fmt"
	"strings"
)

const (
	contextTranscriptLimit = 3000
	untitled               = "Untitled"

	noResultAnswer       = "I couldn't find any relevant information in the video database to answer your question."
	emptyGenerationReply = "Failed to generate answer."
)

// contextSource is one numbered source in the generation context.
type contextSource struct {
	Title string
	Text  string
}

// buildContext renders sources as "[Source N] <title>\n<text>\n" blocks joined by blank lines.
// Text is capped at 3000 characters.
func buildContext(sources []contextSource) string {
	parts := make([]string, 0, len(sources))

	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = untitled
		}

		parts = append(parts, fmt.Sprintf("[Source %d] %s\n%s\n", i+1, title, truncateRunes(src.Text, contextTranscriptLimit)))
	}

	return strings.Join(parts, "\n\n")
}

func buildPrompt(query, context string) string {
	return `You are a helpful assistant that answers questions based on video transcripts.

Question: ` + query + `

Context (from video transcripts):
` + context + `

Instructions:
- Answer the question using ONLY information from the provided sources
- Cite sources using inline references like [1], [2], etc.
- Be concise but informative
- If the sources don't contain enough information, say so
- Use natural language and proper formatting

Answer:`
}
