// ABOUTME: Matrix sync loop and message routing to the orchestrator
// ABOUTME: Handles mentions, bang commands, replies, and attachments

package matrix

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/murmurhq/murmur/internal/backend"
	"github.com/murmurhq/murmur/internal/dedupe"
	"github.com/murmurhq/murmur/internal/orchestrator"
)

// seenTTL is how long handled event IDs are remembered. Sync reconnects can
// redeliver recent events.
const seenTTL = 10 * time.Minute

// seenMax bounds the dedupe cache.
const seenMax = 4096

// typingTimeout is the duration the typing indicator shows.
const typingTimeout = 30 * time.Second

// networkTimeout is the timeout for auxiliary Matrix API calls.
const networkTimeout = 10 * time.Second

// sendTimeout is the timeout for sending reply events.
const sendTimeout = 30 * time.Second

// Orchestrator is the conversational core the adapter drives.
type Orchestrator interface {
	HandleMessage(ctx context.Context, ev *orchestrator.InboundEvent) *orchestrator.Reply
	ObserveMessage(scope, user, text string)
	ResetConversation(scope string)
	SetConversationPrompt(scope, text string)
	UsePrompt(scope, name string) error
	SetConversationModel(scope, model string) error
	Summarize(ctx context.Context, scope, requestingUser string) (string, error)
	Models() []string
}

// Frontend bridges Matrix rooms to the orchestrator.
type Frontend struct {
	config *Config
	client *mautrix.Client
	orch   Orchestrator
	logger *slog.Logger

	// Track rooms with an in-flight response to avoid duplicate handling
	processing sync.Map
	seen       *dedupe.Cache

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the adapter. It does not connect; Run starts the sync loop.
func New(cfg *Config, orch Orchestrator, logger *slog.Logger) (*Frontend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return &Frontend{
		config: cfg,
		client: client,
		orch:   orch,
		logger: logger.With("component", "matrix"),
		seen:   dedupe.New(seenTTL, seenMax),
	}, nil
}

// Client exposes the underlying mautrix client for crypto setup.
func (f *Frontend) Client() *mautrix.Client { return f.client }

// Run starts the sync loop and blocks until the context is cancelled or the
// sync fails.
func (f *Frontend) Run(ctx context.Context) error {
	f.logger.Info("starting matrix adapter",
		"homeserver", f.config.Matrix.Homeserver,
		"user_id", f.config.Matrix.UserID,
	)

	f.ctx, f.cancel = context.WithCancel(ctx)
	defer f.cancel()
	defer f.seen.Close()

	syncer, ok := f.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", f.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, f.handleMessageEvent)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- f.client.SyncWithContext(f.ctx)
	}()

	f.logger.Info("matrix adapter running")

	select {
	case <-ctx.Done():
		f.logger.Info("shutting down matrix adapter")
		f.cancel()
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// selfAuthor is how the bot's own messages are named in the observed
// history. The summary prompt tells the model its contributions appear as
// "me" in the transcript.
const selfAuthor = "me"

// handleMessageEvent routes one inbound room message.
func (f *Frontend) handleMessageEvent(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}
	roomID := evt.RoomID.String()
	if !f.isRoomAllowed(roomID) {
		return
	}
	if content.MsgType != event.MsgText {
		return
	}
	if f.seen.CheckAndMark(evt.ID.String()) {
		f.logger.Debug("dropping redelivered event", "event", evt.ID.String())
		return
	}

	body := stripReplyFallback(content.Body)
	if body == "" {
		return
	}

	// Every allowed-room message feeds the passive channel history, the
	// bot's own replies included; sync echoes them back after sending.
	self := evt.Sender == id.UserID(f.config.Matrix.UserID)
	author := evt.Sender.String()
	if self {
		author = selfAuthor
	}
	f.orch.ObserveMessage(roomID, author, body)
	if self {
		return
	}

	prefix := f.config.Bridge.CommandPrefix
	switch {
	case strings.HasPrefix(body, prefix):
		go f.runCommand(f.ctx, evt, strings.TrimPrefix(body, prefix))
	case mentionsUser(body, f.config.Matrix.UserID):
		go f.respond(f.ctx, evt, stripMention(body, f.config.Matrix.UserID))
	}
}

// respond generates and sends a reply for an addressed message.
func (f *Frontend) respond(ctx context.Context, evt *event.Event, prompt string) {
	roomID := evt.RoomID.String()
	if _, loaded := f.processing.LoadOrStore(roomID, true); loaded {
		f.logger.Debug("already responding in room, dropping", "room", roomID)
		return
	}
	defer f.processing.Delete(roomID)

	if f.config.Bridge.TypingIndicator {
		f.setTyping(evt.RoomID, true)
		defer f.setTyping(evt.RoomID, false)
	}

	inbound := &orchestrator.InboundEvent{
		AuthorID: evt.Sender.String(),
		ScopeID:  roomID,
		Text:     prompt,
	}
	if content, ok := evt.Content.Parsed.(*event.MessageEventContent); ok {
		if rel := content.RelatesTo; rel != nil {
			if replyTo := rel.GetReplyTo(); replyTo != "" {
				inbound.ReferencedEventID = replyTo.String()
			}
		}
	}

	reply := f.orch.HandleMessage(ctx, inbound)
	f.sendReply(evt.RoomID, reply.Text)
}

// runCommand dispatches a bang command to the orchestrator.
func (f *Frontend) runCommand(ctx context.Context, evt *event.Event, cmdline string) {
	roomID := evt.RoomID.String()
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], strings.TrimSpace(strings.TrimPrefix(cmdline, fields[0]))

	f.logger.Info("command received", "room", roomID, "sender", evt.Sender.String(), "command", cmd)

	switch cmd {
	case "reset":
		f.orch.ResetConversation(roomID)
		f.sendReply(evt.RoomID, "Conversation reset.")
	case "summary":
		text, err := f.orch.Summarize(ctx, roomID, evt.Sender.String())
		if err != nil {
			f.sendReply(evt.RoomID, "Nothing to summarise yet.")
			return
		}
		f.sendReply(evt.RoomID, text)
	case "prompt":
		if args == "" {
			f.sendReply(evt.RoomID, fmt.Sprintf("Usage: %sprompt <name or text>", f.config.Bridge.CommandPrefix))
			return
		}
		// A known prompt name selects it; anything else becomes the literal
		// system prompt for this room.
		if err := f.orch.UsePrompt(roomID, args); err != nil {
			f.orch.SetConversationPrompt(roomID, args)
		}
		f.sendReply(evt.RoomID, "System prompt updated. History cleared.")
	case "model":
		if args == "" {
			f.sendReply(evt.RoomID, "Available models: "+strings.Join(f.orch.Models(), ", "))
			return
		}
		if err := f.orch.SetConversationModel(roomID, args); err != nil {
			f.sendReply(evt.RoomID, fmt.Sprintf("Unknown model %q. Available: %s",
				args, strings.Join(f.orch.Models(), ", ")))
			return
		}
		f.sendReply(evt.RoomID, "Model switched to "+args+".")
	}
}

// ResolveReference fetches a replied-to event so the orchestrator can quote
// it and pick up its attachments.
func (f *Frontend) ResolveReference(ctx context.Context, scopeID, eventID string) (*orchestrator.ResolvedMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	evt, err := f.client.GetEvent(ctx, id.RoomID(scopeID), id.EventID(eventID))
	if err != nil {
		return nil, fmt.Errorf("fetching referenced event: %w", err)
	}
	if err := evt.Content.ParseRaw(event.EventMessage); err != nil {
		return nil, fmt.Errorf("parsing referenced event: %w", err)
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return nil, fmt.Errorf("referenced event is not a message")
	}

	resolved := &orchestrator.ResolvedMessage{
		Author: evt.Sender.String(),
		Text:   stripReplyFallback(content.Body),
	}
	resolved.Images, resolved.Videos = f.attachmentRefs(ctx, content)
	return resolved, nil
}

// attachmentRefs extracts image and video references from a message.
// Images are passed by download URL when prefer_image_urls is set, otherwise
// downloaded and inlined as base64.
func (f *Frontend) attachmentRefs(ctx context.Context, content *event.MessageEventContent) ([]backend.ImageRef, []backend.VideoRef) {
	if content.URL == "" {
		return nil, nil
	}
	uri, err := content.URL.Parse()
	if err != nil {
		f.logger.Warn("unparseable attachment URL", "url", string(content.URL), "error", err)
		return nil, nil
	}
	mimeType := ""
	if content.Info != nil {
		mimeType = content.Info.MimeType
	}

	switch content.MsgType {
	case event.MsgImage:
		if f.config.Bridge.PreferImageURLs {
			return []backend.ImageRef{{URL: f.mediaDownloadURL(uri), MIMEType: mimeType}}, nil
		}
		data, err := f.client.DownloadBytes(ctx, uri)
		if err != nil {
			f.logger.Warn("image download failed, passing URL instead", "error", err)
			return []backend.ImageRef{{URL: f.mediaDownloadURL(uri), MIMEType: mimeType}}, nil
		}
		return []backend.ImageRef{{Base64: base64.StdEncoding.EncodeToString(data), MIMEType: mimeType}}, nil
	case event.MsgVideo:
		return nil, []backend.VideoRef{{URL: f.mediaDownloadURL(uri), MIMEType: mimeType}}
	}
	return nil, nil
}

// mediaDownloadURL builds the unauthenticated media endpoint for an mxc URI.
func (f *Frontend) mediaDownloadURL(uri id.ContentURI) string {
	return fmt.Sprintf("%s/_matrix/media/v3/download/%s/%s",
		strings.TrimSuffix(f.config.Matrix.Homeserver, "/"), uri.Homeserver, uri.FileID)
}

// isRoomAllowed checks the room against the allow list. An empty list
// allows every room.
func (f *Frontend) isRoomAllowed(roomID string) bool {
	if len(f.config.Bridge.AllowedRooms) == 0 {
		return true
	}
	for _, allowed := range f.config.Bridge.AllowedRooms {
		if allowed == roomID {
			return true
		}
	}
	return false
}

// setTyping sends the typing indicator to a room.
func (f *Frontend) setTyping(roomID id.RoomID, typing bool) {
	var timeout time.Duration
	if typing {
		timeout = typingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()
	if _, err := f.client.UserTyping(ctx, roomID, typing, timeout); err != nil {
		f.logger.Debug("failed to set typing indicator", "room", roomID.String(), "error", err)
	}
}

// sendReply sends a reply as plain text plus a rendered HTML body.
func (f *Frontend) sendReply(roomID id.RoomID, text string) {
	if text == "" {
		return
	}
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if html := renderHTML(text); html != "" && html != "<p>"+text+"</p>" {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if _, err := f.client.SendMessageEvent(ctx, roomID, event.EventMessage, content); err != nil {
		f.logger.Error("failed to send message", "room", roomID.String(), "error", err)
	}
}
