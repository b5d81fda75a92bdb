// ABOUTME: Core types and the Backend interface for generation providers
// ABOUTME: Messages, requests, and responses are provider-agnostic

package backend

import "context"

// Role identifies the author of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ImageRef points at an image attached to a message. Either URL or Base64
// is set; Base64 carries inline data with its MIME type.
type ImageRef struct {
	URL      string
	MIMEType string
	Base64   string
}

// VideoRef points at a video attached to a message.
type VideoRef struct {
	URL      string
	MIMEType string
}

// Message is one entry in a conversation. The token count is computed once
// when the message is inserted and cached for the life of the message.
type Message struct {
	ID     string
	Role   Role
	Text   string
	Images []ImageRef
	Videos []VideoRef
	Tokens int
}

// GenerationRequest is everything a backend needs to produce a completion.
// Temperature is a pointer so an explicit 0 (deterministic sampling) is
// distinguishable from unset.
type GenerationRequest struct {
	Model            string
	SystemPrompt     string
	Messages         []Message
	MaxOutputTokens  int
	Temperature      *float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// HasAttachments reports whether any request message carries images or videos.
func (r *GenerationRequest) HasAttachments() bool {
	for i := range r.Messages {
		if len(r.Messages[i].Images) > 0 || len(r.Messages[i].Videos) > 0 {
			return true
		}
	}
	return false
}

// StripAttachments returns a copy of the request with all images and videos
// removed. Used for the one retry after ErrUnsupportedContent.
func (r *GenerationRequest) StripAttachments() *GenerationRequest {
	stripped := *r
	stripped.Messages = make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		m.Images = nil
		m.Videos = nil
		stripped.Messages[i] = m
	}
	return &stripped
}

// GenerationResponse is the parsed provider response. TokensUsed is the
// provider's total for the whole exchange; PromptTokens and CompletionTokens
// break it down when the provider reports them.
type GenerationResponse struct {
	Text             string
	TokensUsed       int
	PromptTokens     int
	CompletionTokens int
}

// Backend is the generation-provider contract. Implementations are safe for
// concurrent use and hold no conversation state.
type Backend interface {
	// Model returns the model id this backend serves.
	Model() string

	// SupportsVision reports whether the model accepts image content.
	SupportsVision() bool

	// CountTokens counts tokens in text with the provider's tokenizer.
	// It never fails; a character-count heuristic covers tokenizer errors.
	CountTokens(text string) int

	// CountMessageTokens counts tokens for a full message, including the
	// flat per-image cost.
	CountMessageTokens(msg *Message) int

	// BuildRequest assembles a provider request from a message window.
	BuildRequest(messages []Message, systemPrompt string) *GenerationRequest

	// Send performs the network call. Errors wrap ErrBackendUnavailable or
	// ErrUnsupportedContent.
	Send(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)
}
