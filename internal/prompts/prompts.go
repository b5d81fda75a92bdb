// ABOUTME: Named system prompt registry with embedded defaults
// ABOUTME: Prompts are replaceable at runtime; the core does no file I/O

package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

// Well-known prompt names.
const (
	DefaultName = "default"
	SummaryName = "summary"
)

// Prompt is the on-disk prompt format.
type Prompt struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// Registry holds named prompts. Reads vastly outnumber reloads.
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]string
}

// NewRegistry creates a registry seeded with the embedded defaults.
func NewRegistry() (*Registry, error) {
	r := &Registry{prompts: make(map[string]string)}

	entries, err := fs.ReadDir(defaultsFS, "defaults")
	if err != nil {
		return nil, fmt.Errorf("reading embedded prompts: %w", err)
	}
	for _, entry := range entries {
		data, err := defaultsFS.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading embedded prompt %s: %w", entry.Name(), err)
		}
		var p Prompt
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parsing embedded prompt %s: %w", entry.Name(), err)
		}
		r.prompts[p.Name] = p.Prompt
	}

	if _, ok := r.prompts[DefaultName]; !ok {
		return nil, fmt.Errorf("embedded prompts missing %q", DefaultName)
	}
	if _, ok := r.prompts[SummaryName]; !ok {
		return nil, fmt.Errorf("embedded prompts missing %q", SummaryName)
	}
	return r, nil
}

// Get returns the prompt text for a name.
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.prompts[name]
	return text, ok
}

// Default returns the default conversation system prompt.
func (r *Registry) Default() string {
	text, _ := r.Get(DefaultName)
	return text
}

// Summary returns the summarization system prompt.
func (r *Registry) Summary() string {
	text, _ := r.Get(SummaryName)
	return text
}

// Reload replaces (or adds) a named prompt.
func (r *Registry) Reload(name, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[name] = text
}

// Names returns the known prompt names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile parses a prompt JSON file. Used by the external file-watch
// collaborator, not by the registry itself.
func LoadFile(path string) (*Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}
	var p Prompt
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing prompt file %s: %w", path, err)
	}
	if p.Name == "" || p.Prompt == "" {
		return nil, fmt.Errorf("prompt file %s must set both name and prompt", path)
	}
	return &p, nil
}
