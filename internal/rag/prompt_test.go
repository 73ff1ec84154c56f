package rag

import (
	"strings"
	"testing"
)

func TestFormatSources(t *testing.T) {
	tests := []struct {
		name string
		docs []Document
		want string
	}{
		{
			name: "single document with page",
			docs: []Document{{Content: "The deductible is $500.", Source: "policy.pdf", PageNumber: 3}},
			want: "policy.pdf#page=3: The deductible is $500.",
		},
		{
			name: "page zero omits suffix",
			docs: []Document{{Content: "Intro.", Source: "guide.pdf"}},
			want: "guide.pdf: Intro.",
		},
		{
			name: "missing source falls back to unknown",
			docs: []Document{{Content: "Orphan text.", PageNumber: 2}},
			want: "unknown#page=2: Orphan text.",
		},
		{
			name: "multiple documents separated by blank lines",
			docs: []Document{
				{Content: "First.", Source: "a.pdf", PageNumber: 1},
				{Content: "Second.", Source: "b.pdf"},
			},
			want: "a.pdf#page=1: First.\n\nb.pdf: Second.",
		},
		{
			name: "nil slice",
			docs: nil,
			want: "No sources available.",
		},
		{
			name: "empty slice",
			docs: []Document{},
			want: "No sources available.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSources(tt.docs); got != tt.want {
				t.Errorf("FormatSources() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	sources := "policy.pdf#page=3: The deductible is $500."
	got := SystemPrompt(sources)

	if !strings.HasPrefix(got, "You are an intelligent assistant") {
		t.Errorf("SystemPrompt() missing grounding preamble, starts with %q", got[:min(len(got), 40)])
	}
	if !strings.HasSuffix(got, "\n\n"+sources+"\n") {
		t.Errorf("SystemPrompt() must end with a blank line, the sources block, and a newline:\n%q", got)
	}
}

func TestSystemPromptNoSources(t *testing.T) {
	got := SystemPrompt(FormatSources(nil))
	if !strings.Contains(got, "No sources available.") {
		t.Errorf("SystemPrompt() with no documents must carry the no-sources sentence:\n%q", got)
	}
}

func TestBuildMessages(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "What is the deductible?"},
		{Role: RoleAssistant, Content: "The deductible is $500 [policy.pdf]."},
	}

	got := BuildMessages("system prompt", history, "Does it apply per claim?")

	want := []Message{
		{Role: RoleSystem, Content: "system prompt"},
		{Role: RoleUser, Content: "What is the deductible?"},
		{Role: RoleAssistant, Content: "The deductible is $500 [policy.pdf]."},
		{Role: RoleUser, Content: "Does it apply per claim?"},
	}
	if len(got) != len(want) {
		t.Fatalf("BuildMessages() returned %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("messages[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildMessagesNoHistory(t *testing.T) {
	got := BuildMessages("sys", nil, "hello")

	if len(got) != 2 {
		t.Fatalf("BuildMessages() returned %d messages, want 2", len(got))
	}
	if got[0].Role != RoleSystem || got[1].Role != RoleUser {
		t.Errorf("roles = [%s, %s], want [%s, %s]", got[0].Role, got[1].Role, RoleSystem, RoleUser)
	}
	if got[1].Content != "hello" {
		t.Errorf("user content = %q, want %q", got[1].Content, "hello")
	}
}

func TestFormatCitations(t *testing.T) {
	docs := []Document{
		{Title: "Employee Handbook", Source: "handbook.pdf", PageNumber: 12, RerankScore: 2.87},
		{Content: "raw chunk"},
	}

	got := FormatCitations(docs)

	for _, want := range []string{
		"**1. Employee Handbook**",
		"handbook.pdf (Page 12)",
		"relevance: 2.87",
		"**2. Untitled**",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatCitations() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatCitationsEmpty(t *testing.T) {
	if got := FormatCitations(nil); got != "No documents retrieved." {
		t.Errorf("FormatCitations(nil) = %q, want %q", got, "No documents retrieved.")
	}
}
