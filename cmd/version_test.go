package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/koopa0/ragchat/internal/config"
)

func TestPrintVersion(t *testing.T) {
	origVersion, origBuild, origCommit := AppVersion, BuildTime, GitCommit
	defer func() {
		AppVersion, BuildTime, GitCommit = origVersion, origBuild, origCommit
	}()
	AppVersion, BuildTime, GitCommit = "1.2.3", "2025-06-01T00:00:00Z", "abc123"

	cfg := &config.Config{
		OpenAIEndpoint: "https://demo.openai.azure.com",
		ChatDeployment: "gpt-4o",
		OpenAIAPIKey:   "secret-key-1234567890",
		SearchEndpoint: "https://demo.search.windows.net",
		SearchIndex:    "docs",
	}

	var out bytes.Buffer
	printVersion(&out, cfg)

	got := out.String()
	for _, want := range []string{
		"ragchat 1.2.3",
		"Build Time: 2025-06-01T00:00:00Z",
		"Git Commit: abc123",
		"https://demo.openai.azure.com",
		"gpt-4o",
		"secr...7890",
		"docs",
		"(not set, using Azure credential)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "secret-key-1234567890") {
		t.Error("output leaks the full API key")
	}
}

func TestPrintVersionUnconfigured(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printVersion(&out, &config.Config{})

	got := out.String()
	if !strings.Contains(got, "(not set)") {
		t.Errorf("output missing unset markers:\n%s", got)
	}
	if !strings.Contains(got, "export AZURE_OPENAI_ENDPOINT=") {
		t.Errorf("output missing setup hint:\n%s", got)
	}
}

func TestMaskKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{key: "", want: "(not set, using Azure credential)"},
		{key: "short", want: "****"},
		{key: "12345678", want: "1234...5678"},
		{key: "AIzaSyAbCdEfGh1234567890", want: "AIza...7890"},
	}

	for _, tt := range tests {
		if got := maskKey(tt.key); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
