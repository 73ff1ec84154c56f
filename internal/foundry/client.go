// Package foundry provisions agents in an Azure AI Foundry project over the
// agents REST API. The one agent shape this module creates is a chat agent
// bound to an Azure AI Search tool, so answers are grounded in the same index
// the rest of the pipeline retrieves from.
package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/koopa0/ragchat/internal/log"
	"github.com/koopa0/ragchat/internal/rag"
)

// defaultAPIVersion is the agents REST version used when Config leaves
// APIVersion empty.
const defaultAPIVersion = "2025-05-01"

// projectScope is the Entra ID scope for Azure AI Foundry data-plane calls.
// The agents API has no key auth; requests always carry a bearer token.
const projectScope = "https://ai.azure.com/.default"

// refreshMargin renews tokens this long before expiry so in-flight requests
// never carry a token about to lapse.
const refreshMargin = 2 * time.Minute

// maxErrorBody caps how much of an error response lands in error messages.
const maxErrorBody = 2048

// DefaultAgentName is used when AgentParams leaves Name empty.
const DefaultAgentName = "search-agent"

// defaultTopK is how many documents the search tool returns per call.
const defaultTopK = 5

// queryTypeVectorSemanticHybrid runs the vector, keyword and semantic
// ranking legs together, matching how the pipeline itself queries the index.
const queryTypeVectorSemanticHybrid = "vector_semantic_hybrid"

// defaultInstructions is the system prompt baked into the search agent.
const defaultInstructions = `You are a helpful assistant that answers questions using the search tool.
When asked a question, use the search tool to find relevant information from the documents.
Always cite your sources and provide accurate information based on the search results.
If you cannot find relevant information, say so clearly.`

// Config describes the project connection.
type Config struct {
	// Endpoint is the project endpoint, e.g.
	// https://myproject.services.ai.azure.com/api/projects/myproject.
	Endpoint string

	// APIVersion overrides the REST API version.
	APIVersion string

	// Credential issues Entra ID tokens.
	Credential azcore.TokenCredential

	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client

	Logger log.Logger
}

// Client is an Azure AI Foundry agents REST client. Safe for concurrent use.
type Client struct {
	endpoint   string
	apiVersion string
	credential azcore.TokenCredential
	httpClient *http.Client
	logger     log.Logger

	mu    sync.Mutex
	token azcore.AccessToken
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: project endpoint is required", rag.ErrConfiguration)
	}
	if cfg.Credential == nil {
		return nil, fmt.Errorf("%w: project credential is required", rag.ErrConfiguration)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiVersion: apiVersion,
		credential: cfg.Credential,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// AgentParams describes the agent to create. Model, SearchConnectionID and
// SearchIndex are required; Name, Instructions and TopK fall back to the
// package defaults.
type AgentParams struct {
	Name               string
	Model              string
	Instructions       string
	SearchConnectionID string
	SearchIndex        string
	TopK               int
}

// Agent is the provisioned agent identity as reported by the service.
type Agent struct {
	ID    string
	Name  string
	Model string
}

// createAgentRequest is the assistants POST body.
type createAgentRequest struct {
	Model         string        `json:"model"`
	Name          string        `json:"name"`
	Instructions  string        `json:"instructions"`
	Tools         []tool        `json:"tools"`
	ToolResources toolResources `json:"tool_resources"`
}

type tool struct {
	Type string `json:"type"`
}

type toolResources struct {
	AzureAISearch searchResource `json:"azure_ai_search"`
}

type searchResource struct {
	Indexes []searchIndex `json:"indexes"`
}

// searchIndex binds the tool to one index through a project connection.
type searchIndex struct {
	IndexConnectionID string `json:"index_connection_id"`
	IndexName         string `json:"index_name"`
	QueryType         string `json:"query_type"`
	TopK              int    `json:"top_k"`
}

// agentObject is the service's agent representation; only the identity
// fields are read.
type agentObject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// CreateAgent provisions an agent with the Azure AI Search tool attached.
func (c *Client) CreateAgent(ctx context.Context, p AgentParams) (*Agent, error) {
	if p.Model == "" {
		return nil, fmt.Errorf("%w: agent model is required", rag.ErrConfiguration)
	}
	if p.SearchConnectionID == "" {
		return nil, fmt.Errorf("%w: search connection ID is required", rag.ErrConfiguration)
	}
	if p.SearchIndex == "" {
		return nil, fmt.Errorf("%w: search index is required", rag.ErrConfiguration)
	}

	name := p.Name
	if name == "" {
		name = DefaultAgentName
	}
	instructions := p.Instructions
	if instructions == "" {
		instructions = defaultInstructions
	}
	topK := p.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	body := createAgentRequest{
		Model:        p.Model,
		Name:         name,
		Instructions: instructions,
		Tools:        []tool{{Type: "azure_ai_search"}},
		ToolResources: toolResources{
			AzureAISearch: searchResource{
				Indexes: []searchIndex{{
					IndexConnectionID: p.SearchConnectionID,
					IndexName:         p.SearchIndex,
					QueryType:         queryTypeVectorSemanticHybrid,
					TopK:              topK,
				}},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling agent request: %w", err)
	}

	url := fmt.Sprintf("%s/assistants?api-version=%s", c.endpoint, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling agents service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("agents service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var obj agentObject
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decoding agent response: %w", err)
	}

	c.logger.Debug("agent created", "id", obj.ID, "name", obj.Name, "model", obj.Model)

	return &Agent{ID: obj.ID, Name: obj.Name, Model: obj.Model}, nil
}

// bearer returns a valid project token, renewing the cached one when it is
// missing or within refreshMargin of expiry.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Token != "" && time.Until(c.token.ExpiresOn) > refreshMargin {
		return c.token.Token, nil
	}

	token, err := c.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{projectScope}})
	if err != nil {
		return "", fmt.Errorf("acquiring project token: %w", err)
	}
	c.token = token

	return token.Token, nil
}
