package reranker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSelectWindow(t *testing.T) {
	opts := WindowOptions{Radius: 10, PrefixLength: 15}

	t.Run("centers on the first matching query term", func(t *testing.T) {
		text := strings.Repeat("x", 30) + "PASTA" + strings.Repeat("y", 30)

		got := SelectWindow(text, "cook pasta", opts)

		assert.Equal(t, strings.Repeat("x", 10)+"PASTAyyyyy", got)
	})

	t.Run("uses query order, not text order", func(t *testing.T) {
		text := "boots come first, then the trail at the end"

		got := SelectWindow(text, "trail boots", WindowOptions{Radius: 3, PrefixLength: 100})

		assert.Equal(t, "he tra", got)
	})

	t.Run("ignores terms of two runes or fewer", func(t *testing.T) {
		text := strings.Repeat("a", 20) + " to " + strings.Repeat("b", 20)

		got := SelectWindow(text, "to", opts)

		assert.Equal(t, strings.Repeat("a", 15), got, "falls back to prefix")
	})

	t.Run("uses prefix when nothing matches", func(t *testing.T) {
		got := SelectWindow(strings.Repeat("z", 40), "hiking boots", opts)
		assert.Equal(t, strings.Repeat("z", 15), got)
	})

	t.Run("short text without match is returned whole", func(t *testing.T) {
		assert.Equal(t, "short", SelectWindow("short", "hiking", opts))
	})

	t.Run("window is clamped at the text boundaries", func(t *testing.T) {
		got := SelectWindow("pasta al dente", "pasta", opts)
		assert.Equal(t, "pasta al d", got)
	})

	t.Run("counts runes, not bytes", func(t *testing.T) {
		text := strings.Repeat("é", 30) + "Ramen" + strings.Repeat("ü", 30)

		got := SelectWindow(text, "ramen", WindowOptions{Radius: 5, PrefixLength: 100})

		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, strings.Repeat("é", 5)+"Ramen", got)
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, SelectWindow("", "pasta", opts))
	})
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"how", "cook", "pasta"}, queryTerms("How to COOK pasta"))
	assert.Empty(t, queryTerms("a to of"))
}
