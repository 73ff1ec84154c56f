// Package azsearch queries an Azure AI Search index over its REST API.
//
// The client runs hybrid queries: full-text search plus a text-to-vector leg
// resolved by the index's integrated vectorizer, with optional semantic
// reranking. It satisfies rag.SearchClient.
package azsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/koopa0/ragchat/internal/log"
	"github.com/koopa0/ragchat/internal/rag"
)

// defaultAPIVersion is the search data-plane REST version used when Config
// leaves APIVersion empty.
const defaultAPIVersion = "2024-07-01"

// maxErrorBody caps how much of an error response lands in error messages.
const maxErrorBody = 2048

// selectFields are the index columns returned for each hit.
const selectFields = "content,title,source,page_number"

// Config describes the search service connection.
type Config struct {
	// Endpoint is the service URL, e.g. https://myservice.search.windows.net.
	Endpoint string

	// Index is the index to query.
	Index string

	// APIVersion overrides the REST API version.
	APIVersion string

	// APIKey authenticates with a query or admin key. When empty, Credential
	// must be set and requests carry Entra ID bearer tokens instead.
	APIKey string

	// Credential issues Entra ID tokens for keyless auth.
	Credential azcore.TokenCredential

	// VectorField is the vector column covered by the index's integrated
	// vectorizer. Empty disables the vector leg, leaving keyword search.
	VectorField string

	// SemanticConfiguration names the semantic ranking configuration.
	// Empty disables semantic reranking.
	SemanticConfiguration string

	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client

	Logger log.Logger
}

// Client is an Azure AI Search REST client. Safe for concurrent use.
type Client struct {
	endpoint       string
	index          string
	apiVersion     string
	vectorField    string
	semanticConfig string

	apiKey string
	tokens *tokenSource

	httpClient *http.Client
	logger     log.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: search endpoint is required", rag.ErrConfiguration)
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("%w: search index is required", rag.ErrConfiguration)
	}
	if cfg.APIKey == "" && cfg.Credential == nil {
		return nil, fmt.Errorf("%w: search api key or credential is required", rag.ErrConfiguration)
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

	c := &Client{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		index:          cfg.Index,
		apiVersion:     apiVersion,
		vectorField:    cfg.VectorField,
		semanticConfig: cfg.SemanticConfiguration,
		apiKey:         cfg.APIKey,
		httpClient:     httpClient,
		logger:         logger,
	}
	if c.apiKey == "" {
		c.tokens = newTokenSource(cfg.Credential, searchScope)
	}
	return c, nil
}

// searchRequest is the docs/search POST body.
type searchRequest struct {
	Search                string        `json:"search"`
	Top                   int           `json:"top"`
	Select                string        `json:"select"`
	VectorQueries         []vectorQuery `json:"vectorQueries,omitempty"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
}

// vectorQuery asks the service to vectorize text server-side and run
// nearest-neighbor search over the given vector fields.
type vectorQuery struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Fields string `json:"fields"`
	K      int    `json:"k"`
}

// searchResponse is the docs/search result page.
type searchResponse struct {
	Value []searchHit `json:"value"`
}

// searchHit is one result document with its service-assigned scores.
type searchHit struct {
	Content     string  `json:"content"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	PageNumber  int     `json:"page_number"`
	Score       float64 `json:"@search.score"`
	RerankScore float64 `json:"@search.rerankerScore"`
}

// Search implements rag.SearchClient. Hits come back in service ranking
// order, most relevant first.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]rag.Document, error) {
	body := searchRequest{
		Search: query,
		Top:    topK,
		Select: selectFields,
	}
	if c.vectorField != "" {
		body.VectorQueries = []vectorQuery{{
			Kind:   "text",
			Text:   query,
			Fields: c.vectorField,
			K:      topK,
		}}
	}
	if c.semanticConfig != "" {
		body.QueryType = "semantic"
		body.SemanticConfiguration = c.semanticConfig
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.endpoint, c.index, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("search service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	docs := make([]rag.Document, 0, len(result.Value))
	for _, hit := range result.Value {
		docs = append(docs, rag.Document{
			Content:        hit.Content,
			Title:          hit.Title,
			Source:         hit.Source,
			PageNumber:     hit.PageNumber,
			RelevanceScore: hit.Score,
			RerankScore:    hit.RerankScore,
		})
	}

	c.logger.Debug("search completed", "index", c.index, "hits", len(docs))

	return docs, nil
}

// authorize attaches either the api-key header or a bearer token.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
		return nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquiring search token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
