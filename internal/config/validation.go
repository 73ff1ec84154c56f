package config

import (
	"fmt"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// Validate checks static ranges only. Endpoint presence is checked by
// RequireChat/RequireRetrieval at the point a surface actually needs
// the service, so commands that never touch Azure (version, help) and
// a server answering /health keep working without any endpoints set.
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Azure OpenAI configuration
	if c.ChatDeployment == "" {
		return fmt.Errorf("%w: chat_deployment cannot be empty", ErrInvalidDeployment)
	}
	if c.APIVersion == "" {
		return fmt.Errorf("%w: api_version cannot be empty", ErrInvalidAPIVersion)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum randomness)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("%w: must be between %d and %d, got %d",
			ErrInvalidMaxTokens, MinMaxTokens, MaxMaxTokens, c.MaxTokens)
	}

	// 2. Retrieval configuration
	if c.SearchTopK < MinTopK || c.SearchTopK > MaxTopK {
		return fmt.Errorf("%w: must be between %d and %d, got %d",
			ErrInvalidTopK, MinTopK, MaxTopK, c.SearchTopK)
	}

	if c.SearchIndex == "" {
		return fmt.Errorf("%w: search_index cannot be empty", ErrInvalidSearchIndex)
	}

	if c.VectorField == "" {
		return fmt.Errorf("%w: vector_field cannot be empty", ErrInvalidVectorField)
	}

	if c.UseSemanticRanker && c.SemanticConfiguration == "" {
		return fmt.Errorf("%w: semantic_configuration cannot be empty when use_semantic_ranker is on",
			ErrInvalidSemanticConfiguration)
	}

	// 3. Serve configuration
	if c.RateBurst < 0 {
		return fmt.Errorf("%w: must be >= 0, got %d", ErrInvalidRateBurst, c.RateBurst)
	}

	// 4. Logging configuration
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: %q is not valid, must be \"text\" or \"json\"", ErrInvalidLogFormat, c.LogFormat)
	}

	return nil
}

// RequireChat checks that the Azure OpenAI endpoint is configured.
// Called before any surface that generates completions.
func (c *Config) RequireChat() error {
	if c.OpenAIEndpoint == "" {
		return fmt.Errorf("%w: set AZURE_OPENAI_ENDPOINT (e.g. https://myaccount.openai.azure.com)",
			ErrMissingOpenAIEndpoint)
	}
	return nil
}

// RequireRetrieval checks that the Azure AI Search endpoint is
// configured. Called before any surface that retrieves documents.
func (c *Config) RequireRetrieval() error {
	if c.SearchEndpoint == "" {
		return fmt.Errorf("%w: set AZURE_AI_SEARCH_ENDPOINT (e.g. https://myservice.search.windows.net)",
			ErrMissingSearchEndpoint)
	}
	return nil
}

// RequireProject checks that the Azure AI project endpoint is
// configured. Called before agent provisioning.
func (c *Config) RequireProject() error {
	if c.ProjectEndpoint == "" {
		return fmt.Errorf("%w: set AZURE_AI_PROJECT_ENDPOINT", ErrMissingProjectEndpoint)
	}
	return nil
}
