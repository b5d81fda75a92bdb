// Package summary keeps a rolling, passively observed history of channel
// messages and produces on-demand condensed summaries through a backend.
//
// The history is independent of any active conversation: every observed
// message is appended, not only ones addressed to the agent, and it has its
// own token window. Eviction is strict FIFO with no pinned entry. Generating
// a summary is a one-shot request and never mutates the history.
package summary
