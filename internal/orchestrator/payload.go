// ABOUTME: Inbound event type and payload construction
// ABOUTME: Reply references become a quoted prefix plus merged attachments

package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/murmurhq/murmur/internal/backend"
)

// InboundEvent is the abstract inbound prompt produced by a platform
// adapter. Attachment bytes and referenced messages are the adapter's
// responsibility; the core only sees refs and ids.
type InboundEvent struct {
	AuthorID          string
	ScopeID           string
	Text              string
	Images            []backend.ImageRef
	Videos            []backend.VideoRef
	ReferencedEventID string
}

// buildPayload assembles the prompt text and attachments for an event. When
// the event replies to another message, that message is resolved and quoted
// above the prompt and its attachments merged in. Resolution failure
// degrades to the bare prompt; payload construction never aborts a request.
func (o *Orchestrator) buildPayload(ctx context.Context, ev *InboundEvent) (string, []backend.ImageRef, []backend.VideoRef) {
	text := strings.TrimSpace(ev.Text)
	images := ev.Images
	videos := ev.Videos

	if ev.ReferencedEventID == "" || o.resolver == nil {
		return text, images, videos
	}

	ref, err := o.resolver.ResolveReference(ctx, ev.ScopeID, ev.ReferencedEventID)
	if err != nil {
		o.logger.Warn("failed to resolve referenced message",
			"scope", ev.ScopeID, "event", ev.ReferencedEventID, "error", err)
		return text, images, videos
	}

	text = fmt.Sprintf("> %s: %s\n\n%s", ref.Author, ref.Text, text)
	images = append(images, ref.Images...)
	videos = append(videos, ref.Videos...)
	return text, images, videos
}

// seedWord picks a seed for the fallback generator from the prompt text.
func seedWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[0], ".,!?:;\"'"))
}
