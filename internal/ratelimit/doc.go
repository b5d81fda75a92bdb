// Package ratelimit provides a fixed-window per-identity request limiter.
//
// Each identity gets a lazily created cooldown counter. Once the count
// exceeds the allowed number within the interval, further requests are
// limited until the interval elapses, at which point the window resets.
//
// This is a fixed-window counter, not a token bucket or sliding log: bursts
// exactly at window boundaries are allowed. That is a documented property of
// the design, not a bug.
//
// Stale cooldown state is swept by a background goroutine so the per-identity
// map stays bounded over the life of the process.
package ratelimit
