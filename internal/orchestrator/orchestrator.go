// ABOUTME: Generation orchestrator - rate limiting, conversations, fallback
// ABOUTME: Owns the scope-to-session map and serializes each scope's mutations

package orchestrator

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/murmurhq/murmur/internal/backend"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/conversation"
	"github.com/murmurhq/murmur/internal/prompts"
	"github.com/murmurhq/murmur/internal/ratelimit"
	"github.com/murmurhq/murmur/internal/store"
	"github.com/murmurhq/murmur/internal/summary"
)

// rateLimitedReply is the user-visible back-off message. Rate limiting is a
// deliberate branch, not an error path.
const rateLimitedReply = "You're sending messages too quickly. Give it a minute."

// sessionSweepPeriod is how often idle sessions are checked against the TTL.
const sessionSweepPeriod = time.Minute

// SentenceGenerator is the guaranteed-success fallback reply source.
type SentenceGenerator interface {
	Generate(seed string) string
}

// ResolvedMessage is a referenced (replied-to) message fetched by the
// platform adapter.
type ResolvedMessage struct {
	Author string
	Text   string
	Images []backend.ImageRef
	Videos []backend.VideoRef
}

// ReferenceResolver fetches referenced messages. Implemented by the platform
// adapter; the core performs no platform I/O itself.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, scopeID, eventID string) (*ResolvedMessage, error)
}

// UsageRecorder persists token-usage accounting. Optional and best effort.
type UsageRecorder interface {
	SaveUsage(ctx context.Context, usage *store.Usage) error
}

// Deps are the orchestrator's collaborators. Registry, Prompts, and Fallback
// are required; Resolver and Usage are optional.
type Deps struct {
	Registry *backend.Registry
	Prompts  *prompts.Registry
	Fallback SentenceGenerator
	Resolver ReferenceResolver
	Usage    UsageRecorder
	Logger   *slog.Logger
}

// session bundles one scope's conversation and observed-message history.
// mu serializes the scope's generate-and-append sequence.
type session struct {
	mu       sync.Mutex
	conv     *conversation.Conversation
	summ     *summary.Summarizer
	lastUsed time.Time
	elem     *list.Element
}

// Orchestrator drives conversations for every chat scope.
type Orchestrator struct {
	cfg            *config.Config
	registry       *backend.Registry
	prompts        *prompts.Registry
	fallback       SentenceGenerator
	resolver       ReferenceResolver
	usage          UsageRecorder
	limiter        *ratelimit.Limiter
	defaultBackend backend.Backend
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	order    *list.List // scope ids, least recently used at the front
	done     chan struct{}
	closed   bool
}

// New constructs an orchestrator. The default model must resolve to a
// registered backend; a bad model configuration fails here, never per-request.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Prompts == nil || deps.Fallback == nil {
		return nil, fmt.Errorf("registry, prompts, and fallback are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaultBackend, err := deps.Registry.Resolve(cfg.Model.Default)
	if err != nil {
		return nil, fmt.Errorf("default model: %w", err)
	}

	o := &Orchestrator{
		cfg:            cfg,
		registry:       deps.Registry,
		prompts:        deps.Prompts,
		fallback:       deps.Fallback,
		resolver:       deps.Resolver,
		usage:          deps.Usage,
		limiter:        ratelimit.New(cfg.RateLimit.Count, cfg.RateLimit.Interval),
		defaultBackend: defaultBackend,
		logger:         logger.With("component", "orchestrator"),
		sessions:       make(map[string]*session),
		order:          list.New(),
		done:           make(chan struct{}),
	}
	go o.sweepSessions()
	return o, nil
}

// SetResolver installs the reference resolver. The adapter that implements
// it is constructed after the orchestrator, so wiring happens here during
// startup, before any messages flow.
func (o *Orchestrator) SetResolver(r ReferenceResolver) {
	o.resolver = r
}

// Reply is the outcome of one inbound event.
type Reply struct {
	Text         string
	RateLimited  bool
	FromFallback bool
}

// HandleMessage produces a reply for an inbound event. It always returns a
// usable reply: backend failures fall back to the sentence generator.
func (o *Orchestrator) HandleMessage(ctx context.Context, ev *InboundEvent) *Reply {
	if o.limiter.CheckAndRecord(ev.AuthorID) {
		o.logger.Debug("rate limited", "author", ev.AuthorID, "scope", ev.ScopeID)
		return &Reply{Text: rateLimitedReply, RateLimited: true}
	}

	text, images, videos := o.buildPayload(ctx, ev)

	s := o.session(ev.ScopeID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.conv
	b := conv.Backend()

	userMsg := backend.Message{
		Role:   backend.RoleUser,
		Text:   text,
		Images: images,
		Videos: videos,
	}
	window := conv.Window()
	req := b.BuildRequest(append(window[1:], userMsg), conv.SystemPrompt())

	resp, err := b.Send(ctx, req)
	if errors.Is(err, backend.ErrUnsupportedContent) {
		o.logger.Warn("content unsupported by model, retrying stripped",
			"scope", ev.ScopeID, "model", conv.Model())
		images, videos = nil, nil
		resp, err = b.Send(ctx, req.StripAttachments())
	}
	if err != nil {
		// The conversation is left unmodified: a failed turn costs no
		// context budget.
		o.logger.Warn("generation failed, using fallback",
			"scope", ev.ScopeID, "model", conv.Model(), "error", err)
		return &Reply{Text: o.fallback.Generate(seedWord(text)), FromFallback: true}
	}

	conv.AddMessage(backend.RoleUser, text,
		conversation.WithImages(images), conversation.WithVideos(videos))
	conv.AddMessage(backend.RoleAssistant, resp.Text,
		conversation.WithTokens(assistantTokens(resp, b)))

	o.recordUsage(ctx, ev.ScopeID, conv.Model(), resp)

	return &Reply{Text: resp.Text}
}

// assistantTokens prefers the provider-reported completion count and falls
// back to counting the response text.
func assistantTokens(resp *backend.GenerationResponse, b backend.Backend) int {
	if resp.CompletionTokens > 0 {
		return resp.CompletionTokens
	}
	return b.CountTokens(resp.Text)
}

// ResetConversation clears a scope's history back to its system prompt.
func (o *Orchestrator) ResetConversation(scope string) {
	s := o.session(scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.ResetHistory()
}

// SetConversationPrompt replaces a scope's system prompt, clearing history.
func (o *Orchestrator) SetConversationPrompt(scope, text string) {
	s := o.session(scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.SetSystemPrompt(text)
}

// UsePrompt switches a scope to a named prompt from the registry.
func (o *Orchestrator) UsePrompt(scope, name string) error {
	text, ok := o.prompts.Get(name)
	if !ok {
		return fmt.Errorf("unknown prompt %q", name)
	}
	o.SetConversationPrompt(scope, text)
	return nil
}

// SetConversationModel swaps a scope's backend. Fails with
// ErrModelNotSupported when no backend serves the model.
func (o *Orchestrator) SetConversationModel(scope, model string) error {
	b, err := o.registry.Resolve(model)
	if err != nil {
		return err
	}
	s := o.session(scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.SetModel(b)
	s.summ.SetBackend(b)
	return nil
}

// ReloadPrompt replaces a named prompt. Invoked by the external file-watch
// collaborator; existing conversations keep their prompt until switched.
func (o *Orchestrator) ReloadPrompt(name, text string) {
	o.prompts.Reload(name, text)
	o.logger.Info("prompt reloaded", "name", name, "length", len(text))
}

// ObserveMessage records a message into a scope's passive summary history.
// Every observed message is recorded, not only ones addressed to the agent.
func (o *Orchestrator) ObserveMessage(scope, user, text string) {
	o.session(scope).summ.AddObserved(user, text)
}

// Summarize produces a summary of a scope's observed history.
func (o *Orchestrator) Summarize(ctx context.Context, scope, requestingUser string) (string, error) {
	return o.session(scope).summ.Generate(ctx, requestingUser)
}

// Models returns the selectable model ids.
func (o *Orchestrator) Models() []string {
	return o.registry.Models()
}

// Sessions returns the number of live scopes.
func (o *Orchestrator) Sessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Close stops background work. In-flight requests finish normally.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.done)
	}
	o.limiter.Close()
}

// session returns the scope's session, creating it on first use with the
// default prompt and budgets, and maintains the LRU bound.
func (o *Orchestrator) session(scope string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.sessions[scope]; ok {
		s.lastUsed = time.Now()
		o.order.MoveToBack(s.elem)
		return s
	}

	s := &session{
		conv: conversation.New(o.prompts.Default(), o.cfg.Model.TokenWindowSize, o.defaultBackend, o.logger),
		summ: summary.New(o.cfg.Summary.TokenWindowSize, o.prompts.Summary(), o.defaultBackend, o.logger),

		lastUsed: time.Now(),
	}
	s.elem = o.order.PushBack(scope)
	o.sessions[scope] = s

	for len(o.sessions) > o.cfg.Conversations.Max {
		o.evictOldestLocked()
	}
	return s
}

// evictOldestLocked drops the least recently used scope. Caller holds o.mu.
func (o *Orchestrator) evictOldestLocked() {
	front := o.order.Front()
	if front == nil {
		return
	}
	scope := front.Value.(string)
	o.order.Remove(front)
	delete(o.sessions, scope)
	o.logger.Debug("session evicted", "scope", scope, "live", len(o.sessions))
}

// sweepSessions expires scopes idle past the TTL.
func (o *Orchestrator) sweepSessions() {
	ticker := time.NewTicker(sessionSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.expireIdle()
		case <-o.done:
			return
		}
	}
}

func (o *Orchestrator) expireIdle() {
	o.mu.Lock()
	defer o.mu.Unlock()

	cutoff := time.Now().Add(-o.cfg.Conversations.TTL)
	for e := o.order.Front(); e != nil; {
		scope := e.Value.(string)
		s := o.sessions[scope]
		if s == nil || !s.lastUsed.Before(cutoff) {
			// The list is ordered by recency; the first live entry ends
			// the scan.
			break
		}
		next := e.Next()
		o.order.Remove(e)
		delete(o.sessions, scope)
		o.logger.Debug("session expired", "scope", scope)
		e = next
	}
}

// recordUsage persists an accounting row. Best effort; failures are logged
// and never affect the reply.
func (o *Orchestrator) recordUsage(ctx context.Context, scope, model string, resp *backend.GenerationResponse) {
	if o.usage == nil {
		return
	}
	err := o.usage.SaveUsage(ctx, &store.Usage{
		ID:               uuid.New().String(),
		Scope:            scope,
		Model:            model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TokensUsed,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		o.logger.Warn("failed to record usage", "scope", scope, "error", err)
	}
}
