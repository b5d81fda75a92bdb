// ABOUTME: The serve command - wires config, backends, store, and frontend
// ABOUTME: Blocks until signalled, shutting everything down in order

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/fatih/color"

	"github.com/murmurhq/murmur/internal/backend"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/frontend/matrix"
	"github.com/murmurhq/murmur/internal/markov"
	"github.com/murmurhq/murmur/internal/orchestrator"
	"github.com/murmurhq/murmur/internal/prompts"
	"github.com/murmurhq/murmur/internal/store"
)

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.Model.Default)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	if cfg.Matrix.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Matrix:   %s\n", cfg.Matrix.Config)
	}
	fmt.Println()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.New(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	registry := buildRegistry(cfg, logger)

	promptReg, err := prompts.NewRegistry()
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}
	if cfg.Prompts.Directory != "" {
		if err := loadPromptDir(cfg.Prompts.Directory, promptReg); err != nil {
			return fmt.Errorf("loading prompt directory: %w", err)
		}
	}

	chain := markov.NewChain()
	if err := chain.LoadFrom(ctx, st); err != nil {
		logger.Warn("failed to load sentence corpus", "error", err)
	}
	logger.Info("fallback corpus loaded", "transitions", chain.Size())

	orch, err := orchestrator.New(cfg, orchestrator.Deps{
		Registry: registry,
		Prompts:  promptReg,
		Fallback: chain,
		Usage:    st,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	defer orch.Close()

	if cfg.Prompts.Directory != "" {
		watcher, err := watchPrompts(cfg.Prompts.Directory, orch, logger)
		if err != nil {
			logger.Warn("prompt hot reload disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	if !cfg.Matrix.Enabled {
		logger.Info("no frontend enabled, idling until signalled")
		<-ctx.Done()
		return nil
	}

	mcfg, err := matrix.LoadConfig(cfg.Matrix.Config)
	if err != nil {
		return fmt.Errorf("loading matrix config: %w", err)
	}
	front, err := matrix.New(mcfg, orch, logger)
	if err != nil {
		return fmt.Errorf("creating matrix adapter: %w", err)
	}
	orch.SetResolver(front)

	if mcfg.Matrix.RecoveryKey != "" {
		cryptoMgr, err := front.SetupCrypto(ctx)
		if err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		defer cryptoMgr.Close()
	} else {
		logger.Info("encryption disabled (no recovery key)")
	}

	return front.Run(ctx)
}

// buildRegistry registers the default model plus any extras. A model is
// vision-capable when listed under vision_models.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *backend.Registry {
	registry := backend.NewRegistry()
	seen := make(map[string]bool)
	for _, model := range append([]string{cfg.Model.Default}, cfg.Model.Extra...) {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		registry.Register(backend.NewOpenAI(backend.OpenAIConfig{
			Model:            model,
			APIKey:           cfg.Model.APIKey,
			BaseURL:          cfg.Model.BaseURL,
			Vision:           slices.Contains(cfg.Model.VisionModels, model),
			MaxOutputTokens:  cfg.Model.MaxOutputTokens,
			Temperature:      cfg.Model.Temperature,
			TopP:             cfg.Model.TopP,
			FrequencyPenalty: cfg.Model.FrequencyPenalty,
			PresencePenalty:  cfg.Model.PresencePenalty,
			RequestTimeout:   cfg.Model.RequestTimeout,
		}, logger))
	}
	return registry
}
