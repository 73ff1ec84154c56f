// Package cmd provides the ragchat CLI commands.
//
// Commands:
//   - (root): interactive chat with streamed answers
//   - ask: one-shot question
//   - search: raw index retrieval
//   - serve: HTTP API server with SSE streaming
//   - agent create: provision the Azure AI Foundry search agent
//   - eval quality, eval safety: pipeline evaluation
//   - version: build information
//
// Every command loads configuration, assembles the application, and
// releases it on exit. Graceful shutdown is driven by context
// cancellation.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragchat/internal/app"
	"github.com/koopa0/ragchat/internal/config"
	"github.com/koopa0/ragchat/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Chat with your documents over Azure AI Search",
	Long: `ragchat answers questions grounded in an Azure AI Search index,
using hybrid vector + semantic retrieval and Azure OpenAI generation.

Running ragchat without arguments starts the interactive chat.`,
	RunE: runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newApp loads configuration, builds the logger, and assembles the
// application. The caller owns the returned App and releases it with
// closeApp.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

// closeApp releases a, logging rather than failing on cleanup errors.
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn("shutdown error", "error", err)
	}
}
