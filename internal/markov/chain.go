// ABOUTME: Word-bigram Markov chain for fallback sentence generation
// ABOUTME: Generate never fails; a static sentence covers every dead end

package markov

import (
	"math/rand/v2"
	"strings"
	"sync"
	"unicode"
)

// fallbackSentence is returned when the chain cannot produce anything.
const fallbackSentence = "I have absolutely nothing to say about that."

// maxWords bounds a generated sentence.
const maxWords = 50

// endToken marks a sentence terminus in the transition table.
const endToken = "\x00end"

// Chain is a word-bigram Markov chain. Safe for concurrent use: Learn takes
// the write lock, Generate the read lock.
type Chain struct {
	mu          sync.RWMutex
	transitions map[string][]string
	starts      []string
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{transitions: make(map[string][]string)}
}

// Learn feeds sentences into the chain. Empty sentences, sentences starting
// with punctuation (usually commands), and sentences containing mentions are
// skipped.
func (c *Chain) Learn(sentences []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) == 0 || !learnable(sentence) {
			continue
		}
		c.starts = append(c.starts, words[0])
		for i, word := range words {
			next := endToken
			if i+1 < len(words) {
				next = words[i+1]
			}
			c.transitions[word] = append(c.transitions[word], next)
		}
	}
}

// Size returns the number of distinct words in the transition table.
func (c *Chain) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.transitions)
}

// Generate produces a sentence, seeded on the given word when the chain
// knows it. Never fails and never returns an empty string.
func (c *Chain) Generate(seed string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.starts) == 0 {
		return fallbackSentence
	}

	current := c.pickStart(seed)
	words := []string{current}
	for len(words) < maxWords {
		options := c.transitions[current]
		if len(options) == 0 {
			break
		}
		next := options[rand.IntN(len(options))]
		if next == endToken {
			break
		}
		words = append(words, next)
		current = next
	}

	return strings.Join(words, " ")
}

// pickStart chooses the first word of the walk: the seed when the chain has
// a transition for it, otherwise a random learned sentence start.
func (c *Chain) pickStart(seed string) string {
	if seed != "" {
		if _, ok := c.transitions[seed]; ok {
			return seed
		}
	}
	return c.starts[rand.IntN(len(c.starts))]
}

// learnable filters out sentences that would poison the chain.
func learnable(sentence string) bool {
	if strings.Contains(sentence, "@") {
		return false
	}
	first := []rune(sentence)[0]
	return !unicode.IsPunct(first) && !unicode.IsSymbol(first)
}
