// Package store provides SQLite persistence for the pieces of state that
// survive a restart: token-usage accounting records and the markov sentence
// corpus.
//
// Conversation state itself deliberately lives only in memory and is never
// persisted here.
package store
