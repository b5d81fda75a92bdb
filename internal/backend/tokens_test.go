// ABOUTME: Tests for token counting and the character-count fallback
// ABOUTME: Counting must be deterministic and must never fail

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"four chars", "abcd", 1},
		{"five chars", "abcde", 2},
		{"eight chars", "abcdefgh", 2},
		{"sentence", "hello world, how are you?", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, heuristicTokens(tt.text))
		})
	}
}

func TestTokenCounter_HeuristicFallback(t *testing.T) {
	// No encoding loaded: every count must go through the heuristic.
	c := &tokenCounter{}

	assert.Equal(t, heuristicTokens("some text here"), c.count("some text here"))
	assert.Equal(t, 0, c.count(""))
}

func TestTokenCounter_CountMessage_ImageCost(t *testing.T) {
	c := &tokenCounter{}

	msg := &Message{
		Role: RoleUser,
		Text: "look at this",
		Images: []ImageRef{
			{URL: "https://example.com/a.png"},
			{URL: "https://example.com/b.png"},
		},
	}

	want := heuristicTokens("look at this") + 2*lowDetailImageTokens
	assert.Equal(t, want, c.countMessage(msg))
}

func TestTokenCounter_CountMessage_VideosFree(t *testing.T) {
	c := &tokenCounter{}

	msg := &Message{
		Role:   RoleUser,
		Text:   "watch",
		Videos: []VideoRef{{URL: "https://example.com/clip.mp4"}},
	}

	assert.Equal(t, heuristicTokens("watch"), c.countMessage(msg))
}
