// ABOUTME: Outbound message formatting and inbound body cleanup
// ABOUTME: Markdown replies become Matrix HTML formatted bodies

package matrix

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
)

// renderHTML converts a markdown reply to the HTML used for the event's
// formatted_body. A conversion failure falls back to the plain body.
func renderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// stripReplyFallback removes the quoted fallback lines that Matrix clients
// prepend to reply bodies, leaving only the new text.
func stripReplyFallback(body string) string {
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "> ") {
		i++
	}
	// The fallback block is separated from the reply text by a blank line.
	if i > 0 && i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	return strings.TrimSpace(strings.Join(lines[i:], "\n"))
}

// mentionsUser reports whether the message body addresses the given user,
// either by full Matrix ID or by localpart.
func mentionsUser(body, userID string) bool {
	if strings.Contains(body, userID) {
		return true
	}
	localpart := strings.TrimPrefix(userID, "@")
	if idx := strings.IndexByte(localpart, ':'); idx >= 0 {
		localpart = localpart[:idx]
	}
	if localpart == "" {
		return false
	}
	return containsWord(strings.ToLower(body), strings.ToLower(localpart))
}

// containsWord reports whether word appears in text bounded by non-letters.
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || !isWordByte(text[idx-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// stripMention removes the bot's ID and localpart from the prompt so the
// model does not see its own address.
func stripMention(body, userID string) string {
	out := strings.ReplaceAll(body, userID, "")
	localpart := strings.TrimPrefix(userID, "@")
	if idx := strings.IndexByte(localpart, ':'); idx >= 0 {
		localpart = localpart[:idx]
	}
	if localpart != "" {
		out = strings.ReplaceAll(out, "@"+localpart, "")
	}
	return strings.TrimSpace(out)
}
