// ABOUTME: Pure eviction function keeping a history inside its token window
// ABOUTME: Strict FIFO with a hard floor of one retained history entry

package conversation

import "github.com/murmurhq/murmur/internal/backend"

// trimToWindow removes the oldest history entries until the running total
// fits inside the window or exactly one entry remains. The system prompt is
// not part of history and is therefore never a candidate. Returns the
// trimmed history, the new total, and the number of evicted messages.
//
// Policy is strict FIFO: no relevance scoring, no pinning beyond the system
// prompt. Deterministic so tests can assert exact post-eviction totals.
func trimToWindow(history []backend.Message, currentTokens, window int) ([]backend.Message, int, int) {
	evicted := 0
	for currentTokens > window && len(history) > 1 {
		currentTokens -= history[0].Tokens
		history = history[1:]
		evicted++
	}
	return history, currentTokens, evicted
}
