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

func TestRunAskWith(t *testing.T) {
	t.Parallel()

	search := testutil.NewMockSearch(policyDoc())
	gen := testutil.NewMockGenerator("")
	gen.SetFragments("The deductible ", "is $500.")
	engine := rag.New(rag.Config{Search: search, Generator: gen, Logger: log.NewNop()})

	var out bytes.Buffer
	if err := runAskWith(context.Background(), engine, &out, "What is the deductible?", false); err != nil {
		t.Fatalf("runAskWith() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "The deductible is $500.") {
		t.Errorf("output missing answer:\n%s", got)
	}
	if strings.Contains(got, "Sources:") {
		t.Errorf("sources printed without --sources:\n%s", got)
	}
}

func TestRunAskWithSources(t *testing.T) {
	t.Parallel()

	search := testutil.NewMockSearch(policyDoc())
	gen := testutil.NewMockGenerator("Answer.")
	engine := rag.New(rag.Config{Search: search, Generator: gen, Logger: log.NewNop()})

	var out bytes.Buffer
	if err := runAskWith(context.Background(), engine, &out, "question", true); err != nil {
		t.Fatalf("runAskWith() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Sources:") {
		t.Errorf("output missing sources header:\n%s", got)
	}
	if !strings.Contains(got, "Benefit Summary") {
		t.Errorf("output missing document title:\n%s", got)
	}
}

func TestRunAskWithGenerationError(t *testing.T) {
	t.Parallel()

	search := testutil.NewMockSearch(policyDoc())
	gen := testutil.NewMockGenerator("x")
	gen.Fail(errors.New("model overloaded"))
	engine := rag.New(rag.Config{Search: search, Generator: gen, Logger: log.NewNop()})

	var out bytes.Buffer
	err := runAskWith(context.Background(), engine, &out, "question", false)
	if err == nil {
		t.Fatal("runAskWith() = nil, want error")
	}
	if !errors.Is(err, rag.ErrGeneration) {
		t.Errorf("error = %v, want rag.ErrGeneration", err)
	}
}

func TestRunAskWithRetrievalError(t *testing.T) {
	t.Parallel()

	search := testutil.NewMockSearch()
	search.Fail(errors.New("index offline"))
	gen := testutil.NewMockGenerator("x")
	engine := rag.New(rag.Config{Search: search, Generator: gen, Logger: log.NewNop()})

	var out bytes.Buffer
	err := runAskWith(context.Background(), engine, &out, "question", false)
	if !errors.Is(err, rag.ErrRetrieval) {
		t.Errorf("error = %v, want rag.ErrRetrieval", err)
	}
}
