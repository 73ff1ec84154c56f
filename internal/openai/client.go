// Package openai adapts Azure OpenAI chat completions to the rag.Generator
// port, over the official openai-go SDK with its Azure transport.
package openai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/koopa0/ragchat/internal/log"
	"github.com/koopa0/ragchat/internal/rag"
)

// defaultAPIVersion is the Azure OpenAI data-plane version used when Config
// leaves APIVersion empty.
const defaultAPIVersion = "2024-10-21"

// Config describes the Azure OpenAI connection.
type Config struct {
	// Endpoint is the resource URL, e.g. https://myaccount.openai.azure.com.
	Endpoint string

	// Deployment is the chat model deployment name.
	Deployment string

	// APIVersion overrides the data-plane API version.
	APIVersion string

	// APIKey authenticates with a resource key. When empty, Credential must
	// be set and requests carry Entra ID tokens instead.
	APIKey string

	// Credential issues Entra ID tokens for keyless auth.
	Credential azcore.TokenCredential

	Logger log.Logger
}

// Client generates chat completions against one Azure OpenAI deployment.
// Safe for concurrent use; satisfies rag.Generator.
type Client struct {
	client     oai.Client
	deployment string
	logger     log.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: openai endpoint is required", rag.ErrConfiguration)
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("%w: chat deployment is required", rag.ErrConfiguration)
	}
	if cfg.APIKey == "" && cfg.Credential == nil {
		return nil, fmt.Errorf("%w: openai api key or credential is required", rag.ErrConfiguration)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	opts := []option.RequestOption{azure.WithEndpoint(cfg.Endpoint, apiVersion)}
	if cfg.APIKey != "" {
		opts = append(opts, azure.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, azure.WithTokenCredential(cfg.Credential))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		client:     oai.NewClient(opts...),
		deployment: cfg.Deployment,
		logger:     logger,
	}, nil
}

// Generate implements rag.Generator.
func (c *Client) Generate(ctx context.Context, req rag.GenerateRequest) (*rag.Generation, error) {
	completion, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("creating chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := completion.Choices[0]
	gen := &rag.Generation{
		Text:         choice.Message.Content,
		Model:        completion.Model,
		FinishReason: string(choice.FinishReason),
		Usage: rag.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}

	c.logger.Debug("completion finished",
		"model", gen.Model,
		"finish_reason", gen.FinishReason,
		"total_tokens", gen.Usage.TotalTokens,
	)

	return gen, nil
}

// GenerateStream implements rag.Generator. The sequence yields content deltas
// in arrival order and stops after yielding the first error.
func (c *Client) GenerateStream(ctx context.Context, req rag.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("streaming chat completion: %w", err))
		}
	}
}

// params converts a rag request into SDK params. The deployment name rides in
// the Model field; the Azure transport routes it into the deployment path.
func (c *Client) params(req rag.GenerateRequest) oai.ChatCompletionNewParams {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case rag.RoleSystem:
			messages = append(messages, oai.SystemMessage(m.Content))
		case rag.RoleAssistant:
			messages = append(messages, oai.AssistantMessage(m.Content))
		default:
			messages = append(messages, oai.UserMessage(m.Content))
		}
	}

	params := oai.ChatCompletionNewParams{
		Messages: messages,
		Model:    oai.ChatModel(c.deployment),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = oai.Int(int64(req.MaxTokens))
	}
	if req.Temperature >= 0 {
		params.Temperature = oai.Float(req.Temperature)
	}
	return params
}
