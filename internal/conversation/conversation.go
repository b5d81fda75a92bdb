// ABOUTME: Conversation state - pinned system prompt, ordered history, token window
// ABOUTME: Token totals are updated atomically within every mutating call

package conversation

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/murmurhq/murmur/internal/backend"
)

// Conversation is the ordered session state for one chat scope. It owns the
// system prompt and message history and keeps currentTokens equal to the sum
// of all retained message token counts.
type Conversation struct {
	systemPrompt  backend.Message
	history       []backend.Message
	tokenWindow   int
	currentTokens int
	backend       backend.Backend
	logger        *slog.Logger
}

// New creates a conversation containing only the system prompt. The token
// window bounds the retained history; the prompt itself always fits.
func New(systemPrompt string, tokenWindow int, b backend.Backend, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conversation{
		tokenWindow: tokenWindow,
		backend:     b,
		logger:      logger.With("component", "conversation"),
	}
	c.setSystemPrompt(systemPrompt)
	return c
}

// AddOption configures an AddMessage call.
type AddOption func(*addOptions)

type addOptions struct {
	images         []backend.ImageRef
	videos         []backend.VideoRef
	explicitTokens int
	hasExplicit    bool
}

// WithImages attaches images to the message.
func WithImages(images []backend.ImageRef) AddOption {
	return func(o *addOptions) { o.images = images }
}

// WithVideos attaches videos to the message.
func WithVideos(videos []backend.VideoRef) AddOption {
	return func(o *addOptions) { o.videos = videos }
}

// WithTokens supplies an already-known token count, skipping the tokenizer.
// Used when the count comes from a prior provider response.
func WithTokens(n int) AddOption {
	return func(o *addOptions) {
		o.explicitTokens = n
		o.hasExplicit = true
	}
}

// AddMessage appends a message to the history, counts its tokens with the
// active backend (unless an explicit count is supplied), updates the running
// total, and trims the history back inside the token window.
func (c *Conversation) AddMessage(role backend.Role, text string, opts ...AddOption) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	msg := backend.Message{
		ID:     uuid.New().String(),
		Role:   role,
		Text:   text,
		Images: o.images,
		Videos: o.videos,
	}
	if o.hasExplicit {
		msg.Tokens = o.explicitTokens
	} else {
		msg.Tokens = c.backend.CountMessageTokens(&msg)
	}

	c.history = append(c.history, msg)
	c.currentTokens += msg.Tokens

	evicted := 0
	c.history, c.currentTokens, evicted = trimToWindow(c.history, c.currentTokens, c.tokenWindow)
	if evicted > 0 {
		c.logger.Debug("history trimmed to token window",
			"evicted", evicted,
			"current_tokens", c.currentTokens,
			"window", c.tokenWindow,
		)
	}
}

// Window returns the messages for the next request: the system prompt first,
// then history oldest to newest. The returned slice is a copy.
func (c *Conversation) Window() []backend.Message {
	window := make([]backend.Message, 0, len(c.history)+1)
	window = append(window, c.systemPrompt)
	window = append(window, c.history...)
	return window
}

// ResetHistory clears the history back to just the system prompt.
func (c *Conversation) ResetHistory() {
	c.history = nil
	c.currentTokens = c.systemPrompt.Tokens
}

// SetSystemPrompt replaces the system prompt and clears the history.
// Changing the prompt invalidates the prior context.
func (c *Conversation) SetSystemPrompt(text string) {
	c.setSystemPrompt(text)
}

func (c *Conversation) setSystemPrompt(text string) {
	c.systemPrompt = backend.Message{
		ID:   uuid.New().String(),
		Role: backend.RoleSystem,
		Text: text,
	}
	c.systemPrompt.Tokens = c.backend.CountMessageTokens(&c.systemPrompt)
	c.history = nil
	c.currentTokens = c.systemPrompt.Tokens
}

// SetModel swaps the active backend. Token counts computed under the old
// model are not recomputed; only new messages use the new tokenizer.
func (c *Conversation) SetModel(b backend.Backend) {
	c.backend = b
	c.logger.Debug("model switched", "model", b.Model())
}

// Backend returns the active backend.
func (c *Conversation) Backend() backend.Backend { return c.backend }

// Model returns the active model id.
func (c *Conversation) Model() string { return c.backend.Model() }

// SystemPrompt returns the current system prompt text.
func (c *Conversation) SystemPrompt() string { return c.systemPrompt.Text }

// CurrentTokens returns the running token total, system prompt included.
func (c *Conversation) CurrentTokens() int { return c.currentTokens }

// Len returns the number of history messages, excluding the system prompt.
func (c *Conversation) Len() int { return len(c.history) }
