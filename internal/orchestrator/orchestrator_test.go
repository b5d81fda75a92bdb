// ABOUTME: Tests for the generation orchestrator
// ABOUTME: Covers success, fallback, rate limiting, retries, and the LRU bound

package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurhq/murmur/internal/backend"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/prompts"
	"github.com/murmurhq/murmur/internal/store"
)

// fakeBackend is a scriptable backend recording every request it sends.
type fakeBackend struct {
	mu       sync.Mutex
	model    string
	tokens   int
	sendFn   func(req *backend.GenerationRequest) (*backend.GenerationResponse, error)
	requests []*backend.GenerationRequest
}

func (f *fakeBackend) Model() string          { return f.model }
func (f *fakeBackend) SupportsVision() bool   { return false }
func (f *fakeBackend) CountTokens(string) int { return f.tokens }

func (f *fakeBackend) CountMessageTokens(msg *backend.Message) int {
	if msg.Text == "" {
		return 0
	}
	return f.tokens
}

func (f *fakeBackend) BuildRequest(messages []backend.Message, systemPrompt string) *backend.GenerationRequest {
	return &backend.GenerationRequest{Model: f.model, SystemPrompt: systemPrompt, Messages: messages}
}

func (f *fakeBackend) Send(_ context.Context, req *backend.GenerationRequest) (*backend.GenerationResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.sendFn(req)
}

func (f *fakeBackend) sentRequests() []*backend.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*backend.GenerationRequest(nil), f.requests...)
}

// fakeFallback records the seed it was asked for.
type fakeFallback struct {
	mu    sync.Mutex
	seeds []string
}

func (f *fakeFallback) Generate(seed string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seed)
	return "markov says hello"
}

// fakeRecorder collects usage rows.
type fakeRecorder struct {
	mu   sync.Mutex
	rows []*store.Usage
}

func (f *fakeRecorder) SaveUsage(_ context.Context, u *store.Usage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, u)
	return nil
}

type fakeResolver struct {
	msg *ResolvedMessage
	err error
}

func (f *fakeResolver) ResolveReference(context.Context, string, string) (*ResolvedMessage, error) {
	return f.msg, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Model:         config.ModelConfig{Default: "fake", TokenWindowSize: 1000},
		RateLimit:     config.RateLimitConfig{Count: 50, Interval: time.Minute},
		Summary:       config.SummaryConfig{TokenWindowSize: 1000},
		Conversations: config.ConversationsConfig{Max: 16, TTL: time.Hour},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, fb *fakeBackend, deps Deps) *Orchestrator {
	t.Helper()

	reg := backend.NewRegistry()
	reg.Register(fb)
	deps.Registry = reg

	if deps.Prompts == nil {
		pr, err := prompts.NewRegistry()
		require.NoError(t, err)
		deps.Prompts = pr
	}
	if deps.Fallback == nil {
		deps.Fallback = &fakeFallback{}
	}

	o, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func okSend(text string, prompt, completion int) func(*backend.GenerationRequest) (*backend.GenerationResponse, error) {
	return func(*backend.GenerationRequest) (*backend.GenerationResponse, error) {
		return &backend.GenerationResponse{
			Text:             text,
			TokensUsed:       prompt + completion,
			PromptTokens:     prompt,
			CompletionTokens: completion,
		}, nil
	}
}

func TestNew_UnknownDefaultModel(t *testing.T) {
	reg := backend.NewRegistry()
	pr, err := prompts.NewRegistry()
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Model.Default = "missing"

	_, err = New(cfg, Deps{Registry: reg, Prompts: pr, Fallback: &fakeFallback{}})
	assert.ErrorIs(t, err, backend.ErrModelNotSupported)
}

func TestHandleMessage_Success_AppendsBothMessages(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 2, sendFn: okSend("the answer", 20, 10)}
	rec := &fakeRecorder{}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{Usage: rec})

	reply := o.HandleMessage(context.Background(), &InboundEvent{
		AuthorID: "alice", ScopeID: "room", Text: "the question",
	})

	assert.Equal(t, "the answer", reply.Text)
	assert.False(t, reply.RateLimited)
	assert.False(t, reply.FromFallback)

	s := o.session("room")
	assert.Equal(t, 2, s.conv.Len())
	// user message 2 tokens + assistant 10 (provider-reported) + prompt tokens
	promptTokens := s.conv.Window()[0].Tokens
	assert.Equal(t, promptTokens+2+10, s.conv.CurrentTokens())

	require.Len(t, rec.rows, 1)
	assert.Equal(t, "room", rec.rows[0].Scope)
	assert.Equal(t, 30, rec.rows[0].TotalTokens)
}

func TestHandleMessage_BackendFailure_LeavesConversationUntouched(t *testing.T) {
	calls := 0
	fb := &fakeBackend{model: "fake", tokens: 2}
	fb.sendFn = func(req *backend.GenerationRequest) (*backend.GenerationResponse, error) {
		calls++
		if calls == 1 {
			return okSend("first", 5, 5)(req)
		}
		return nil, backend.ErrBackendUnavailable
	}
	fall := &fakeFallback{}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{Fallback: fall})

	ev := &InboundEvent{AuthorID: "alice", ScopeID: "room", Text: "hello there"}
	o.HandleMessage(context.Background(), ev)

	s := o.session("room")
	lenBefore := s.conv.Len()
	tokensBefore := s.conv.CurrentTokens()

	reply := o.HandleMessage(context.Background(), ev)
	assert.True(t, reply.FromFallback)
	assert.Equal(t, "markov says hello", reply.Text)

	assert.Equal(t, lenBefore, s.conv.Len())
	assert.Equal(t, tokensBefore, s.conv.CurrentTokens())

	require.Len(t, fall.seeds, 1)
	assert.Equal(t, "hello", fall.seeds[0])
}

func TestHandleMessage_RateLimited(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	cfg := testConfig()
	cfg.RateLimit.Count = 1
	o := newTestOrchestrator(t, cfg, fb, Deps{})

	ev := &InboundEvent{AuthorID: "spammer", ScopeID: "room", Text: "hi"}
	assert.False(t, o.HandleMessage(context.Background(), ev).RateLimited)
	assert.False(t, o.HandleMessage(context.Background(), ev).RateLimited)

	reply := o.HandleMessage(context.Background(), ev)
	assert.True(t, reply.RateLimited)
	assert.NotEmpty(t, reply.Text)

	// The limited turn must not have reached the backend or the history.
	assert.Len(t, fb.sentRequests(), 2)
	assert.Equal(t, 4, o.session("room").conv.Len())
}

func TestHandleMessage_UnsupportedContent_RetriesStripped(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1}
	fb.sendFn = func(req *backend.GenerationRequest) (*backend.GenerationResponse, error) {
		if req.HasAttachments() {
			return nil, backend.ErrUnsupportedContent
		}
		return okSend("stripped reply", 5, 5)(req)
	}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{})

	reply := o.HandleMessage(context.Background(), &InboundEvent{
		AuthorID: "alice",
		ScopeID:  "room",
		Text:     "describe this",
		Images:   []backend.ImageRef{{URL: "https://example.com/x.png"}},
	})

	assert.Equal(t, "stripped reply", reply.Text)
	assert.False(t, reply.FromFallback)

	reqs := fb.sentRequests()
	require.Len(t, reqs, 2)
	assert.True(t, reqs[0].HasAttachments())
	assert.False(t, reqs[1].HasAttachments())

	// The stored user message is the stripped one.
	window := o.session("room").conv.Window()
	assert.Empty(t, window[1].Images)
}

func TestHandleMessage_ReferenceQuoted(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	resolver := &fakeResolver{msg: &ResolvedMessage{Author: "bob", Text: "the original"}}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{Resolver: resolver})

	o.HandleMessage(context.Background(), &InboundEvent{
		AuthorID:          "alice",
		ScopeID:           "room",
		Text:              "what did he mean",
		ReferencedEventID: "$evt",
	})

	reqs := fb.sentRequests()
	require.Len(t, reqs, 1)
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Equal(t, "> bob: the original\n\nwhat did he mean", last.Text)
}

func TestHandleMessage_ReferenceFailure_Degrades(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	resolver := &fakeResolver{err: context.DeadlineExceeded}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{Resolver: resolver})

	reply := o.HandleMessage(context.Background(), &InboundEvent{
		AuthorID:          "alice",
		ScopeID:           "room",
		Text:              "plain question",
		ReferencedEventID: "$evt",
	})

	assert.False(t, reply.FromFallback)
	reqs := fb.sentRequests()
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Equal(t, "plain question", last.Text)
}

func TestSetConversationModel_Unknown(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{})

	err := o.SetConversationModel("room", "missing-model")
	assert.ErrorIs(t, err, backend.ErrModelNotSupported)
}

func TestResetConversation(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{})

	o.HandleMessage(context.Background(), &InboundEvent{AuthorID: "a", ScopeID: "room", Text: "hi"})
	require.Equal(t, 2, o.session("room").conv.Len())

	o.ResetConversation("room")
	assert.Equal(t, 0, o.session("room").conv.Len())
}

func TestUsePrompt(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{})

	assert.Error(t, o.UsePrompt("room", "no-such-prompt"))

	o.ReloadPrompt("pirate", "Answer like a pirate.")
	require.NoError(t, o.UsePrompt("room", "pirate"))
	assert.Equal(t, "Answer like a pirate.", o.session("room").conv.SystemPrompt())
}

func TestReloadPrompt_AffectsNewScopes(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{})

	o.ReloadPrompt(prompts.DefaultName, "Be brand new.")
	assert.Equal(t, "Be brand new.", o.session("fresh-room").conv.SystemPrompt())
}

func TestSessionMap_LRUBound(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1, sendFn: okSend("ok", 1, 1)}
	cfg := testConfig()
	cfg.Conversations.Max = 2
	o := newTestOrchestrator(t, cfg, fb, Deps{})

	o.session("one")
	o.session("two")
	o.session("one") // touch: "two" is now the least recently used
	o.session("three")

	assert.Equal(t, 2, o.Sessions())

	o.mu.Lock()
	_, hasOne := o.sessions["one"]
	_, hasTwo := o.sessions["two"]
	_, hasThree := o.sessions["three"]
	o.mu.Unlock()

	assert.True(t, hasOne)
	assert.False(t, hasTwo, "least recently used scope should be evicted")
	assert.True(t, hasThree)
}

func TestObserveAndSummarize(t *testing.T) {
	fb := &fakeBackend{model: "fake", tokens: 1}
	fb.sendFn = func(req *backend.GenerationRequest) (*backend.GenerationResponse, error) {
		return &backend.GenerationResponse{Text: "a summary", TokensUsed: 5}, nil
	}
	o := newTestOrchestrator(t, testConfig(), fb, Deps{})

	o.ObserveMessage("room", "alice", "we decided to ship friday")
	o.ObserveMessage("room", "bob", "sounds right")

	got, err := o.Summarize(context.Background(), "room", "alice")
	require.NoError(t, err)
	assert.Equal(t, "a summary", got)

	reqs := fb.sentRequests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Text, "alice: we decided to ship friday")
}
