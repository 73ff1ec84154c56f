package testutil

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/koopa0/ragchat/internal/rag"
)

var (
	_ rag.SearchClient = (*MockSearch)(nil)
	_ rag.Generator    = (*MockGenerator)(nil)
)

// MockSearch is an in-memory rag.SearchClient that returns a fixed
// document set and records every request.
//
// Thread-safe for concurrent use.
type MockSearch struct {
	mu    sync.Mutex
	docs  []rag.Document
	err   error
	calls []SearchCall
}

// SearchCall records a single retrieval request.
type SearchCall struct {
	Query string
	TopK  int
}

// NewMockSearch creates a search double returning the given documents.
func NewMockSearch(docs ...rag.Document) *MockSearch {
	return &MockSearch{docs: docs}
}

// Fail makes every subsequent Search call return err.
func (m *MockSearch) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Search implements rag.SearchClient.
func (m *MockSearch) Search(_ context.Context, query string, topK int) ([]rag.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, SearchCall{Query: query, TopK: topK})
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.docs), nil
}

// Calls returns a copy of all recorded retrieval requests.
func (m *MockSearch) Calls() []SearchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// MockGenerator is an in-memory rag.Generator producing a scripted
// answer and recording every request. By default GenerateStream yields
// the whole answer as a single fragment; SetFragments scripts the
// exact fragment sequence instead.
//
// Thread-safe for concurrent use.
type MockGenerator struct {
	mu        sync.Mutex
	answer    string
	model     string
	usage     rag.Usage
	fragments []string
	err       error
	streamErr error
	requests  []rag.GenerateRequest
}

// NewMockGenerator creates a generator double that answers with the
// given text under the model name "mock-model".
func NewMockGenerator(answer string) *MockGenerator {
	return &MockGenerator{answer: answer, model: "mock-model"}
}

// SetFragments scripts the fragment sequence GenerateStream yields.
func (m *MockGenerator) SetFragments(fragments ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fragments = fragments
}

// SetUsage sets the token usage reported by Generate.
func (m *MockGenerator) SetUsage(usage rag.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = usage
}

// Fail makes Generate return err and GenerateStream yield it before
// any fragment.
func (m *MockGenerator) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailStream makes GenerateStream yield err after its fragments,
// simulating a connection dropped mid-generation.
func (m *MockGenerator) FailStream(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErr = err
}

// Requests returns a copy of all recorded generation requests, from
// both Generate and GenerateStream.
func (m *MockGenerator) Requests() []rag.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// Generate implements rag.Generator.
func (m *MockGenerator) Generate(_ context.Context, req rag.GenerateRequest) (*rag.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &rag.Generation{
		Text:         m.answer,
		Model:        m.model,
		Usage:        m.usage,
		FinishReason: "stop",
	}, nil
}

// GenerateStream implements rag.Generator.
func (m *MockGenerator) GenerateStream(_ context.Context, req rag.GenerateRequest) iter.Seq2[string, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fragments := slices.Clone(m.fragments)
	answer := m.answer
	err := m.err
	streamErr := m.streamErr
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		if err != nil {
			yield("", err)
			return
		}
		if len(fragments) == 0 && answer != "" {
			fragments = []string{answer}
		}
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
		if streamErr != nil {
			yield("", streamErr)
		}
	}
}
