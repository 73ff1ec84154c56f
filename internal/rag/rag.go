package rag

import (
	"context"
	"errors"
	"iter"
)

// Role values for chat messages, matching the Azure OpenAI wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors for pipeline failures. Callers use errors.Is to map them to
// HTTP statuses and exit codes.
var (
	// ErrConfiguration indicates a required collaborator or setting is missing.
	// Returned before any backend call is made.
	ErrConfiguration = errors.New("configuration error")

	// ErrRetrieval indicates the document search failed.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the model call failed.
	ErrGeneration = errors.New("generation failed")
)

// Document is a single hit returned from the search index.
type Document struct {
	Content        string  `json:"content"`
	Title          string  `json:"title"`
	Source         string  `json:"source"`
	PageNumber     int     `json:"page_number"`
	RelevanceScore float64 `json:"relevance_score"`
	RerankScore    float64 `json:"rerank_score"`
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for a model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the complete outcome of one chat turn: the answer plus everything
// that shaped it, so callers can render citations and audit the prompt.
type Result struct {
	Answer           string     `json:"answer"`
	Documents        []Document `json:"documents"`
	FormattedSources string     `json:"formatted_sources"`
	SystemPrompt     string     `json:"system_prompt"`
	Model            string     `json:"model,omitempty"`
	Usage            Usage      `json:"usage"`
	FinishReason     string     `json:"finish_reason,omitempty"`
}

// StreamValue is one element of a ChatStream sequence. Exactly one variant is
// populated: a text fragment while the answer is being produced (Done false),
// or the final Result (Done true). The Done value is the only completion
// signal; a sequence that ends without one was interrupted.
type StreamValue struct {
	Done     bool
	Fragment string
	Result   *Result
}

// SearchClient retrieves documents relevant to a query, most relevant first.
// Implemented by azsearch.Client.
type SearchClient interface {
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}

// GenerateRequest carries one model invocation.
type GenerateRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Generation is the outcome of a non-streaming model call.
type Generation struct {
	Text         string
	Model        string
	Usage        Usage
	FinishReason string
}

// Generator produces model completions. Implemented by openai.Client.
type Generator interface {
	// Generate returns the complete response for the request.
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)

	// GenerateStream yields response text incrementally. The sequence stops
	// after yielding a non-nil error; it never yields values afterwards.
	GenerateStream(ctx context.Context, req GenerateRequest) iter.Seq2[string, error]
}
