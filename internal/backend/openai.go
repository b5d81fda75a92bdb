// ABOUTME: OpenAI-compatible backend built on the official openai-go SDK
// ABOUTME: A base URL override serves any provider speaking the same API

package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// defaultRequestTimeout bounds a single provider call when the config does
// not set one. Expiry surfaces as ErrBackendUnavailable.
const defaultRequestTimeout = 90 * time.Second

// OpenAIConfig configures one OpenAI-compatible backend instance.
type OpenAIConfig struct {
	Model            string
	APIKey           string
	BaseURL          string // optional OpenAI-compatible endpoint override
	Vision           bool   // whether the model accepts image content
	MaxOutputTokens  int
	Temperature      *float64 // nil leaves the provider default; 0 is deterministic
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	RequestTimeout   time.Duration
}

// OpenAI implements Backend against the OpenAI chat completions API.
type OpenAI struct {
	cfg     OpenAIConfig
	client  openai.Client
	counter *tokenCounter
	logger  *slog.Logger
}

// NewOpenAI creates a backend for the configured model. The tokenizer is
// loaded eagerly so tokenization failures are known (and logged) up front.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "backend", "model", cfg.Model)

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		cfg:     cfg,
		client:  openai.NewClient(opts...),
		counter: newTokenCounter(cfg.Model, logger),
		logger:  logger,
	}
}

// Model returns the model id this backend serves.
func (b *OpenAI) Model() string { return b.cfg.Model }

// SupportsVision reports whether the model accepts image content.
func (b *OpenAI) SupportsVision() bool { return b.cfg.Vision }

// CountTokens counts tokens in text. Never fails.
func (b *OpenAI) CountTokens(text string) int { return b.counter.count(text) }

// CountMessageTokens counts a message's text plus flat image costs.
func (b *OpenAI) CountMessageTokens(msg *Message) int { return b.counter.countMessage(msg) }

// BuildRequest assembles a generation request from a message window, carrying
// the backend's configured sampling parameters.
func (b *OpenAI) BuildRequest(messages []Message, systemPrompt string) *GenerationRequest {
	return &GenerationRequest{
		Model:            b.cfg.Model,
		SystemPrompt:     systemPrompt,
		Messages:         messages,
		MaxOutputTokens:  b.cfg.MaxOutputTokens,
		Temperature:      b.cfg.Temperature,
		TopP:             b.cfg.TopP,
		FrequencyPenalty: b.cfg.FrequencyPenalty,
		PresencePenalty:  b.cfg.PresencePenalty,
	}
}

// Send performs the chat completion call. Image content on a non-vision model
// fails fast with ErrUnsupportedContent before any network traffic; all
// transport and provider failures wrap ErrBackendUnavailable.
func (b *OpenAI) Send(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error) {
	if req.HasAttachments() && !b.cfg.Vision {
		return nil, fmt.Errorf("%w: model %s has no vision support", ErrUnsupportedContent, b.cfg.Model)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: b.apiMessages(req),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(req.PresencePenalty)
	}

	start := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %v", ErrBackendUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from model", ErrBackendUnavailable)
	}

	b.logger.Debug("completion received",
		"duration", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return &GenerationResponse{
		Text:             resp.Choices[0].Message.Content,
		TokensUsed:       int(resp.Usage.TotalTokens),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// apiMessages converts the provider-agnostic window into SDK message params.
// The system prompt always leads; images become low-detail image parts.
func (b *OpenAI) apiMessages(req *GenerationRequest) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		out = append(out, openai.SystemMessage(req.SystemPrompt))
	}
	for i := range req.Messages {
		msg := &req.Messages[i]
		switch msg.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text))
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text))
		default:
			if len(msg.Images) == 0 {
				out = append(out, openai.UserMessage(msg.Text))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(msg.Text),
			}
			for _, img := range msg.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    imageURL(img),
					Detail: "low",
				}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

// imageURL renders an ImageRef as an API image URL, inlining base64 data
// as a data URL when present.
func imageURL(img ImageRef) string {
	if img.Base64 != "" {
		return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, img.Base64)
	}
	return img.URL
}
