// Package conversation holds one chat scope's session state: the pinned
// system prompt, the ordered message history, and the token accounting that
// keeps the history inside its token window.
//
// # Invariant
//
// After every mutation,
//
//	currentTokens == systemPrompt.Tokens + sum(history[i].Tokens)
//
// and the invariant is re-established within the mutating call, so no caller
// ever observes an inconsistent total.
//
// # Eviction
//
// When the total exceeds the token window, the oldest history entries are
// dropped first (strict FIFO) until the total fits or exactly one history
// entry remains. The system prompt is never evicted.
//
// # Concurrency
//
// A Conversation is not internally locked. The orchestrator owns one
// conversation per scope and serializes the whole generate-and-append
// sequence per scope, which is the locking discipline this type expects.
package conversation
