package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/koopa0/ragchat/internal/azsearch"
	"github.com/koopa0/ragchat/internal/config"
	"github.com/koopa0/ragchat/internal/log"
	"github.com/koopa0/ragchat/internal/observability"
	"github.com/koopa0/ragchat/internal/openai"
	"github.com/koopa0/ragchat/internal/rag"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.tracingShutdown = provideTracing(ctx, cfg, logger)

	// One credential for every keyless adapter. DefaultAzureCredential
	// probes env vars, workload identity, managed identity, and the az
	// CLI, so it is built only when something actually needs it.
	a.credential = sync.OnceValues(newDefaultCredential)

	search, err := provideSearch(cfg, a.credential, logger)
	if err != nil {
		return nil, err
	}
	generator, err := provideGenerator(cfg, a.credential, logger)
	if err != nil {
		return nil, err
	}

	a.Engine = rag.New(rag.Config{
		Search:      search,
		Generator:   generator,
		Logger:      logger,
		Model:       cfg.ChatDeployment,
		TopK:        cfg.SearchTopK,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})

	logger.Debug("application assembled",
		"search_configured", search != nil,
		"openai_configured", generator != nil,
	)
	return a, nil
}

// provideTracing installs the OTLP tracer provider. Failures degrade to a
// noop shutdown; the process runs untraced.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func(context.Context) error {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Warn("setting up tracing, continuing without", "error", err)
		return func(context.Context) error { return nil }
	}
	return shutdown
}

func newDefaultCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}
	return cred, nil
}

// provideSearch builds the retrieval adapter, or nil when the search
// endpoint is not configured.
func provideSearch(cfg *config.Config, credential func() (azcore.TokenCredential, error), logger log.Logger) (rag.SearchClient, error) {
	if cfg.SearchEndpoint == "" {
		logger.Debug("search endpoint not configured, retrieval disabled")
		return nil, nil
	}

	sc := azsearch.Config{
		Endpoint:    cfg.SearchEndpoint,
		Index:       cfg.SearchIndex,
		APIKey:      cfg.SearchAPIKey,
		VectorField: cfg.VectorField,
		Logger:      logger,
	}
	if cfg.UseSemanticRanker {
		sc.SemanticConfiguration = cfg.SemanticConfiguration
	}
	if cfg.SearchAPIKey == "" {
		cred, err := credential()
		if err != nil {
			return nil, err
		}
		sc.Credential = cred
	}

	client, err := azsearch.New(sc)
	if err != nil {
		return nil, fmt.Errorf("building search client: %w", err)
	}
	return client, nil
}

// provideGenerator builds the generation adapter, or nil when the OpenAI
// endpoint is not configured.
func provideGenerator(cfg *config.Config, credential func() (azcore.TokenCredential, error), logger log.Logger) (rag.Generator, error) {
	if cfg.OpenAIEndpoint == "" {
		logger.Debug("OpenAI endpoint not configured, generation disabled")
		return nil, nil
	}

	oc := openai.Config{
		Endpoint:   cfg.OpenAIEndpoint,
		Deployment: cfg.ChatDeployment,
		APIVersion: cfg.APIVersion,
		APIKey:     cfg.OpenAIAPIKey,
		Logger:     logger,
	}
	if cfg.OpenAIAPIKey == "" {
		cred, err := credential()
		if err != nil {
			return nil, err
		}
		oc.Credential = cred
	}

	client, err := openai.New(oc)
	if err != nil {
		return nil, fmt.Errorf("building OpenAI client: %w", err)
	}
	return client, nil
}
