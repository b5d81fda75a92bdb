// Package matrix connects the orchestrator to Matrix rooms. It runs a
// mautrix sync loop, observes every allowed-room message for the passive
// summarizer, and answers messages that mention the bot or carry the
// command prefix. Bang commands map onto orchestrator operations.
//
// The adapter owns all Matrix I/O: fetching replied-to events, extracting
// attachment URLs or bytes, rendering outbound markdown to Matrix HTML,
// and optional end-to-end encryption.
package matrix
