// Package markov implements the guaranteed-success fallback sentence
// generator: a word-bigram Markov chain learned from a sentence corpus.
//
// Generate never fails. When the chain is empty, a seed has no continuation,
// or a random walk dies early, a static sentence is returned instead, so the
// orchestrator always has a usable reply even when every provider is down.
package markov
