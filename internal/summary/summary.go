// ABOUTME: Rolling token-windowed history of observed messages plus summarization
// ABOUTME: Separate budget from active conversations, FIFO eviction, no pinned entry

package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/murmurhq/murmur/internal/backend"
)

// Entry is one observed channel message.
type Entry struct {
	User   string
	Text   string
	Tokens int
}

// Summarizer maintains the observed history for one channel. Observation
// happens on every inbound message while generation is user-triggered, so
// the history is guarded by its own mutex.
type Summarizer struct {
	mu            sync.Mutex
	history       []Entry
	tokenWindow   int
	currentTokens int
	backend       backend.Backend
	prompt        string
	logger        *slog.Logger
}

// New creates a summarizer with the given token window and summarization
// system prompt.
func New(tokenWindow int, prompt string, b backend.Backend, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		tokenWindow: tokenWindow,
		backend:     b,
		prompt:      prompt,
		logger:      logger.With("component", "summary"),
	}
}

// AddObserved appends a message to the history, counts its tokens, and
// evicts oldest-first until the window is satisfied or one entry remains.
func (s *Summarizer) AddObserved(user, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		User:   user,
		Text:   text,
		Tokens: s.backend.CountTokens(text),
	}
	s.history = append(s.history, entry)
	s.currentTokens += entry.Tokens

	for s.currentTokens > s.tokenWindow && len(s.history) > 1 {
		s.currentTokens -= s.history[0].Tokens
		s.history = s.history[1:]
	}
}

// History returns the most recent entries, all of them when limit <= 0.
// The returned slice is a copy.
func (s *Summarizer) History(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if limit > 0 && limit < len(s.history) {
		start = len(s.history) - limit
	}
	out := make([]Entry, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// Len returns the number of retained entries.
func (s *Summarizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// CurrentTokens returns the running token total of the retained history.
func (s *Summarizer) CurrentTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTokens
}

// SetBackend swaps the backend used for counting and generation.
func (s *Summarizer) SetBackend(b backend.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = b
}

// Generate produces a summary of the retained history through the backend.
// The history itself is not mutated. When requestingUser is set, the summary
// addresses that user in the second person.
func (s *Summarizer) Generate(ctx context.Context, requestingUser string) (string, error) {
	s.mu.Lock()
	transcript := s.transcript()
	b := s.backend
	s.mu.Unlock()

	if transcript == "" {
		return "", fmt.Errorf("no messages observed yet")
	}

	text := "Summarise the following conversation between multiple users:\n" + transcript
	if requestingUser != "" {
		text += fmt.Sprintf(
			".\nPlease refer to me, %s, as 'you' in the summary like we were having a conversation.",
			requestingUser,
		)
	}

	req := b.BuildRequest([]backend.Message{{Role: backend.RoleUser, Text: text}}, s.prompt)
	resp, err := b.Send(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}

	s.logger.Debug("summary generated", "transcript_entries", s.Len(), "tokens_used", resp.TokensUsed)
	return resp.Text, nil
}

// transcript flattens the history into "user: text" lines. Caller holds the
// lock.
func (s *Summarizer) transcript() string {
	lines := make([]string, len(s.history))
	for i, e := range s.history {
		lines[i] = fmt.Sprintf("%s: %s", e.User, e.Text)
	}
	return strings.Join(lines, "\n")
}
