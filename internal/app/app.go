// Package app assembles the application from configuration.
//
// Setup builds the dependency graph in one pass: tracing, the shared Azure
// credential, the search and generation adapters, and the engine on top of
// them. Adapters whose endpoint is not configured stay nil; the engine
// reports a configuration error when an operation first needs one, so a
// partially configured process still starts and serves health checks.
package app

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/koopa0/ragchat/internal/config"
	"github.com/koopa0/ragchat/internal/foundry"
	"github.com/koopa0/ragchat/internal/log"
	"github.com/koopa0/ragchat/internal/rag"
)

// tracingShutdownTimeout bounds the final span flush during Close.
const tracingShutdownTimeout = 5 * time.Second

// App is the assembled application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Engine is the chat pipeline. Non-nil after Setup even when its
	// adapters are absent.
	Engine *rag.Engine

	// credential builds the shared Entra ID credential on first use.
	// Only keyless adapters and Foundry ever invoke it.
	credential func() (azcore.TokenCredential, error)

	tracingShutdown func(context.Context) error
}

// SearchConfigured reports whether a retrieval backend is wired.
func (a *App) SearchConfigured() bool {
	return a.Config != nil && a.Config.SearchEndpoint != ""
}

// OpenAIConfigured reports whether a generation backend is wired.
func (a *App) OpenAIConfigured() bool {
	return a.Config != nil && a.Config.OpenAIEndpoint != ""
}

// Foundry builds an agent-provisioning client for the configured Azure AI
// project. The project endpoint is keyless only, so this always goes
// through the shared credential.
func (a *App) Foundry() (*foundry.Client, error) {
	if err := a.Config.RequireProject(); err != nil {
		return nil, err
	}
	cred, err := a.credential()
	if err != nil {
		return nil, err
	}
	return foundry.New(foundry.Config{
		Endpoint:   a.Config.ProjectEndpoint,
		APIVersion: a.Config.ProjectAPIVersion,
		Credential: cred,
		Logger:     a.Logger,
	})
}

// Close flushes pending traces and releases resources. Safe to call on a
// partially built App.
func (a *App) Close() error {
	logger := a.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	logger.Debug("shutting down application")

	if a.tracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := a.tracingShutdown(ctx); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}
	return nil
}
