// Package orchestrator is the facade invoked by the presentation layer. It
// turns inbound chat events into model-generated replies.
//
// # Request flow
//
// Each request moves through fixed phases: rate check, payload building
// (reply-reference resolution and attachment merging), backend call, then
// either success or fallback. On success both the user message and the
// assistant response are appended to the scope's conversation; on any
// backend failure the reply comes from the sentence generator and the
// conversation is left untouched, so a failed turn costs no context budget.
//
// Unsupported content (images on a text-only model) gets exactly one retry
// with the offending content stripped before the failure path is taken.
//
// # Concurrency
//
// One conversation exists per scope. The whole generate-and-append sequence
// holds that scope's lock, so two concurrent prompts to the same scope
// cannot interleave their appends. Different scopes proceed in parallel.
//
// # Bounded state
//
// The scope-to-session map is bounded: past the configured maximum the least
// recently used scope is dropped, and a background sweep expires scopes idle
// past their TTL. Dropping a scope discards only in-memory context, which is
// rebuilt with the default prompt on the scope's next message.
package orchestrator
