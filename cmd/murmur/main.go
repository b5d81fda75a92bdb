// ABOUTME: Entry point for the murmur chat agent
// ABOUTME: Commands for serving the bot, seeding the corpus, and usage reports

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/murmurhq/murmur/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _ __ ___  _   _ _ __ _ __ ___  _   _ _ __
| '_ ' _ \| | | | '__| '_ ' _ \| | | | '__|
| | | | | | |_| | |  | | | | | | |_| | |
|_| |_| |_|\__,_|_|  |_| |_| |_|\__,_|_|
`

// getConfigPath returns the path to the murmur config file.
// Priority: MURMUR_CONFIG env var > XDG_CONFIG_HOME/murmur/murmur.yaml > ~/.config/murmur/murmur.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MURMUR_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "murmur.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "murmur", "murmur.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: murmur <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve          Start the chat agent")
		fmt.Println("  learn FILE     Feed a text file into the fallback sentence corpus")
		fmt.Println("  usage [SCOPE]  Show token usage totals")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "learn":
		err = runLearn(ctx, os.Args[2:])
	case "usage":
		err = runUsage(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
