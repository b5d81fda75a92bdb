// ABOUTME: Prompt directory loading and fsnotify hot reload
// ABOUTME: JSON prompt files become named system prompts at runtime

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/murmurhq/murmur/internal/orchestrator"
	"github.com/murmurhq/murmur/internal/prompts"
)

// loadPromptDir registers every prompt JSON file in dir, overriding embedded
// defaults with the same name.
func loadPromptDir(dir string, reg *prompts.Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading prompt directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		p, err := prompts.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("loading prompt %s: %w", entry.Name(), err)
		}
		reg.Reload(p.Name, p.Prompt)
	}
	return nil
}

// watchPrompts hot-reloads prompt files as they change on disk. Reloads only
// affect conversations that select the prompt afterwards.
func watchPrompts(dir string, orch *orchestrator.Orchestrator, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	log := logger.With("component", "prompt-watcher")
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				p, err := prompts.LoadFile(event.Name)
				if err != nil {
					log.Warn("ignoring unreadable prompt file", "path", event.Name, "error", err)
					continue
				}
				orch.ReloadPrompt(p.Name, p.Prompt)
				log.Info("prompt reloaded", "name", p.Name, "path", event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", "error", err)
			}
		}
	}()

	log.Info("watching prompt directory", "dir", dir)
	return watcher, nil
}
