// ABOUTME: Corpus loading and saving between the chain and a sentence store
// ABOUTME: Also splits raw text into learnable sentences

package markov

import (
	"context"
	"fmt"
	"strings"
)

// corpusLimit caps how many stored sentences feed the chain at startup.
const corpusLimit = 50000

// SentenceSource yields persisted corpus sentences, newest first.
type SentenceSource interface {
	Sentences(ctx context.Context, limit int) ([]string, error)
}

// SentenceSink persists new corpus sentences.
type SentenceSink interface {
	SaveSentences(ctx context.Context, sentences []string) error
}

// LoadFrom feeds the persisted corpus into the chain.
func (c *Chain) LoadFrom(ctx context.Context, src SentenceSource) error {
	sentences, err := src.Sentences(ctx, corpusLimit)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	c.Learn(sentences)
	return nil
}

// SaveTo persists sentences after learning them, so the corpus survives
// restarts.
func (c *Chain) SaveTo(ctx context.Context, sink SentenceSink, sentences []string) error {
	c.Learn(sentences)
	if err := sink.SaveSentences(ctx, sentences); err != nil {
		return fmt.Errorf("saving corpus: %w", err)
	}
	return nil
}

// SplitSentences breaks raw text into candidate sentences on line breaks and
// terminal punctuation. Empty candidates are dropped; Learn applies its own
// filtering on top.
func SplitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, sentence := range splitTerminals(line) {
			sentence = strings.TrimSpace(sentence)
			if sentence != "" {
				out = append(out, sentence)
			}
		}
	}
	return out
}

func splitTerminals(line string) []string {
	var out []string
	var b strings.Builder
	for _, r := range line {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
