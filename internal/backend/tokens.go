// ABOUTME: Token counting with tiktoken and a character-count fallback
// ABOUTME: Counting never fails - a miscount must not abort a response

package backend

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// lowDetailImageTokens is the flat provider cost of a low-detail image.
// Images are not run through the text tokenizer.
const lowDetailImageTokens = 85

// fallbackEncoding is used when a model has no registered tiktoken encoding.
const fallbackEncoding = "o200k_base"

// tokenCounter wraps a tiktoken encoding for one model. When no encoding can
// be loaded at all, enc stays nil and every count uses the heuristic.
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func newTokenCounter(model string, logger *slog.Logger) *tokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		logger.Warn("tokenizer unavailable, using character heuristic", "model", model, "error", err)
		return &tokenCounter{}
	}
	return &tokenCounter{enc: enc}
}

// count returns the token count for text, falling back to the character
// heuristic when the tokenizer is unavailable.
func (c *tokenCounter) count(text string) int {
	if c.enc == nil {
		return heuristicTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// countMessage counts a message's text plus the flat per-image cost.
// Videos have no token cost on the providers supported here.
func (c *tokenCounter) countMessage(msg *Message) int {
	return c.count(msg.Text) + len(msg.Images)*lowDetailImageTokens
}

// heuristicTokens estimates tokens at roughly four characters per token,
// rounding up. Not billing-accurate, but consistent and deterministic.
func heuristicTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
