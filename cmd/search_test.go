package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/koopa0/ragchat/internal/log"
	"github.com/koopa0/ragchat/internal/rag"
	"github.com/koopa0/ragchat/internal/testutil"
)

func TestRunSearchWith(t *testing.T) {
	t.Parallel()

	search := testutil.NewMockSearch(policyDoc(), rag.Document{
		Content:        "Vision coverage starts after 90 days.",
		Title:          "Vision Rider",
		Source:         "rider.pdf",
		PageNumber:     1,
		RelevanceScore: 0.77,
	})
	engine := rag.New(rag.Config{Search: search, Generator: testutil.NewMockGenerator("x"), Logger: log.NewNop()})

	var out bytes.Buffer
	if err := runSearchWith(context.Background(), engine, &out, "coverage", 5); err != nil {
		t.Fatalf("runSearchWith() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "2 documents:") {
		t.Errorf("output missing count header:\n%s", got)
	}
	if !strings.Contains(got, "Benefit Summary") || !strings.Contains(got, "Vision Rider") {
		t.Errorf("output missing document titles:\n%s", got)
	}

	calls := search.Calls()
	if len(calls) != 1 {
		t.Fatalf("search called %d times, want 1", len(calls))
	}
	if calls[0].TopK != 5 {
		t.Errorf("search TopK = %d, want 5", calls[0].TopK)
	}
}

func TestRunSearchWithDefaultTopK(t *testing.T) {
	t.Parallel()

	search := testutil.NewMockSearch(policyDoc())
	engine := rag.New(rag.Config{Search: search, Generator: testutil.NewMockGenerator("x"), Logger: log.NewNop(), TopK: 7})

	var out bytes.Buffer
	if err := runSearchWith(context.Background(), engine, &out, "q", 0); err != nil {
		t.Fatalf("runSearchWith() error = %v", err)
	}

	calls := search.Calls()
	if len(calls) != 1 || calls[0].TopK != 7 {
		t.Errorf("search calls = %+v, want one call with TopK 7", calls)
	}
}

func TestRunSearchWithNoResults(t *testing.T) {
	t.Parallel()

	engine := rag.New(rag.Config{Search: testutil.NewMockSearch(), Generator: testutil.NewMockGenerator("x"), Logger: log.NewNop()})

	var out bytes.Buffer
	if err := runSearchWith(context.Background(), engine, &out, "nothing", 0); err != nil {
		t.Fatalf("runSearchWith() error = %v", err)
	}
	if !strings.Contains(out.String(), "No documents found.") {
		t.Errorf("output missing empty notice:\n%s", out.String())
	}
}

func TestRunSearchWithError(t *testing.T) {
	t.Parallel()

	search := testutil.NewMockSearch()
	search.Fail(errors.New("index offline"))
	engine := rag.New(rag.Config{Search: search, Generator: testutil.NewMockGenerator("x"), Logger: log.NewNop()})

	var out bytes.Buffer
	err := runSearchWith(context.Background(), engine, &out, "q", 0)
	if !errors.Is(err, rag.ErrRetrieval) {
		t.Errorf("error = %v, want rag.ErrRetrieval", err)
	}
}
