// ABOUTME: The learn and usage commands
// ABOUTME: Corpus seeding from text files and token accounting reports

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/markov"
	"github.com/murmurhq/murmur/internal/store"
)

// runLearn feeds a text file's sentences into the fallback corpus.
func runLearn(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: murmur learn FILE")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading corpus file: %w", err)
	}
	sentences := markov.SplitSentences(string(data))
	if len(sentences) == 0 {
		return fmt.Errorf("no sentences found in %s", args[0])
	}

	st, err := store.New(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	chain := markov.NewChain()
	if err := chain.SaveTo(ctx, st, sentences); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Learned %d sentences (%d transitions)\n", len(sentences), chain.Size())
	return nil
}

// runUsage prints token usage totals, or per-request rows for one scope.
func runUsage(ctx context.Context, args []string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	st, err := store.New(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if len(args) == 0 {
		total, err := st.TotalTokens(ctx)
		if err != nil {
			return fmt.Errorf("querying usage: %w", err)
		}
		fmt.Printf("Total tokens: %d\n", total)
		return nil
	}

	rows, err := st.ScopeUsage(ctx, args[0])
	if err != nil {
		return fmt.Errorf("querying usage: %w", err)
	}
	if len(rows) == 0 {
		fmt.Printf("No usage recorded for %s\n", args[0])
		return nil
	}
	for _, row := range rows {
		fmt.Printf("%s  %-16s prompt=%-6d completion=%-6d total=%d\n",
			row.CreatedAt.Format("2006-01-02 15:04"), row.Model,
			row.PromptTokens, row.CompletionTokens, row.TotalTokens)
	}
	return nil
}
