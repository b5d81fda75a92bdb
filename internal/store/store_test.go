// ABOUTME: Tests for the SQLite store against a real temporary database
// ABOUTME: Covers usage round trips, totals, and the sentence corpus

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveUsage_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	usage := &Usage{
		ID:               uuid.New().String(),
		Scope:            "!room:example.org",
		Model:            "gpt-4o-mini",
		PromptTokens:     120,
		CompletionTokens: 30,
		TotalTokens:      150,
		CreatedAt:        time.Now(),
	}
	require.NoError(t, s.SaveUsage(ctx, usage))

	got, err := s.ScopeUsage(ctx, "!room:example.org")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, usage.ID, got[0].ID)
	assert.Equal(t, "gpt-4o-mini", got[0].Model)
	assert.Equal(t, 120, got[0].PromptTokens)
	assert.Equal(t, 30, got[0].CompletionTokens)
	assert.Equal(t, 150, got[0].TotalTokens)
}

func TestStore_ScopeUsage_Isolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, scope := range []string{"a", "a", "b"} {
		require.NoError(t, s.SaveUsage(ctx, &Usage{
			ID:          uuid.New().String(),
			Scope:       scope,
			Model:       "m",
			TotalTokens: 10,
			CreatedAt:   time.Now(),
		}))
	}

	a, err := s.ScopeUsage(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, a, 2)

	b, err := s.ScopeUsage(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestStore_TotalTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	total, err := s.TotalTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	for _, n := range []int{10, 25} {
		require.NoError(t, s.SaveUsage(ctx, &Usage{
			ID:          uuid.New().String(),
			Scope:       "s",
			Model:       "m",
			TotalTokens: n,
			CreatedAt:   time.Now(),
		}))
	}

	total, err = s.TotalTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(35), total)
}

func TestStore_Sentences_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSentences(ctx, []string{
		"the cat sat on the mat",
		"", // skipped
		"the dog barked",
		"the cat sat on the mat", // duplicate, ignored
	}))

	got, err := s.Sentences(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"the cat sat on the mat", "the dog barked"}, got)

	limited, err := s.Sentences(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"the cat sat on the mat"}, limited)
}
