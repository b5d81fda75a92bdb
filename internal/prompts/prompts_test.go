// ABOUTME: Tests for the prompt registry and prompt file parsing
// ABOUTME: Embedded defaults must always include default and summary prompts

package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_EmbeddedDefaults(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	assert.NotEmpty(t, r.Default())
	assert.NotEmpty(t, r.Summary())
	assert.Contains(t, r.Names(), DefaultName)
	assert.Contains(t, r.Names(), SummaryName)
}

func TestRegistry_Reload(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	r.Reload("pirate", "Answer like a pirate.")
	text, ok := r.Get("pirate")
	require.True(t, ok)
	assert.Equal(t, "Answer like a pirate.", text)

	// Reloading the default changes what new conversations see.
	r.Reload(DefaultName, "Be terse.")
	assert.Equal(t, "Be terse.", r.Default())
}

func TestRegistry_GetUnknown(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pirate.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"pirate","prompt":"Arr."}`), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pirate", p.Name)
	assert.Equal(t, "Arr.", p.Prompt)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.json")
	_, err := LoadFile(missing)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x"}`), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}
