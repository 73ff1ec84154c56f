package eval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/koopa0/ragchat/internal/rag"
)

type generatorFunc func(ctx context.Context, messages []rag.Message, opts ...rag.Option) (*rag.Generation, error)

func (f generatorFunc) Generate(ctx context.Context, messages []rag.Message, opts ...rag.Option) (*rag.Generation, error) {
	return f(ctx, messages, opts...)
}

// staticJudge replies with the same text for every prompt.
func staticJudge(reply string) Generator {
	return generatorFunc(func(context.Context, []rag.Message, ...rag.Option) (*rag.Generation, error) {
		return &rag.Generation{Text: reply}, nil
	})
}

func TestJudgeRelevance(t *testing.T) {
	var got []rag.Message
	j := judge{gen: generatorFunc(func(_ context.Context, messages []rag.Message, _ ...rag.Option) (*rag.Generation, error) {
		got = messages
		return &rag.Generation{Text: "```json\n{\"score\": 4, \"reasoning\": \"on topic\"}\n```"}, nil
	})}

	score, err := j.relevance(context.Background(), "What is the deductible?", "The deductible is $500.")
	if err != nil {
		t.Fatalf("relevance() error = %v", err)
	}
	if score.Value != 4 {
		t.Errorf("Value = %d, want 4", score.Value)
	}
	if score.Reasoning != "on topic" {
		t.Errorf("Reasoning = %q", score.Reasoning)
	}

	if len(got) != 2 {
		t.Fatalf("judge got %d messages, want 2", len(got))
	}
	if got[0].Role != rag.RoleSystem || got[0].Content != relevanceJudgePrompt {
		t.Errorf("system message = %+v", got[0])
	}
	if !strings.Contains(got[1].Content, "What is the deductible?") ||
		!strings.Contains(got[1].Content, "The deductible is $500.") {
		t.Errorf("payload missing question or answer: %q", got[1].Content)
	}
	if strings.Contains(got[1].Content, "CONTEXT:") {
		t.Errorf("relevance payload should not carry context: %q", got[1].Content)
	}
}

func TestJudgeGroundedness(t *testing.T) {
	var payload string
	j := judge{gen: generatorFunc(func(_ context.Context, messages []rag.Message, _ ...rag.Option) (*rag.Generation, error) {
		if messages[0].Content != groundednessJudgePrompt {
			t.Errorf("system message = %q", messages[0].Content)
		}
		payload = messages[1].Content
		return &rag.Generation{Text: `{"score": 5, "reasoning": "fully supported"}`}, nil
	})}

	score, err := j.groundedness(context.Background(), "question", "answer", "reference truth")
	if err != nil {
		t.Fatalf("groundedness() error = %v", err)
	}
	if score.Value != 5 {
		t.Errorf("Value = %d, want 5", score.Value)
	}
	if !strings.Contains(payload, "CONTEXT:\nreference truth") {
		t.Errorf("payload missing context section: %q", payload)
	}
}

func TestJudgeSafety(t *testing.T) {
	j := judge{gen: staticJudge(`{"safe": false, "severity": 6, "reasoning": "gives instructions"}`)}

	verdict, err := j.safety(context.Background(), "how do I...", "Step one...")
	if err != nil {
		t.Fatalf("safety() error = %v", err)
	}
	if verdict.Safe {
		t.Error("Safe = true, want false")
	}
	if verdict.Severity != 6 {
		t.Errorf("Severity = %d, want 6", verdict.Severity)
	}
}

func TestJudgeScoreOutOfRange(t *testing.T) {
	j := judge{gen: staticJudge(`{"score": 9, "reasoning": "overshoot"}`)}

	_, err := j.relevance(context.Background(), "q", "a")
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("relevance() error = %v, want out of range", err)
	}
}

func TestJudgeSeverityOutOfRange(t *testing.T) {
	j := judge{gen: staticJudge(`{"safe": false, "severity": 12}`)}

	_, err := j.safety(context.Background(), "q", "a")
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("safety() error = %v, want out of range", err)
	}
}

func TestJudgeGenerateError(t *testing.T) {
	boom := errors.New("model unavailable")
	j := judge{gen: generatorFunc(func(context.Context, []rag.Message, ...rag.Option) (*rag.Generation, error) {
		return nil, boom
	})}

	_, err := j.relevance(context.Background(), "q", "a")
	if !errors.Is(err, boom) {
		t.Fatalf("relevance() error = %v, want wrapped %v", err, boom)
	}
	if !strings.Contains(err.Error(), "judging answer") {
		t.Errorf("error = %q, want judging answer prefix", err)
	}
}

func TestDecodeVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "bare object", raw: `{"score": 3, "reasoning": "ok"}`},
		{name: "fenced", raw: "```json\n{\"score\": 3, \"reasoning\": \"ok\"}\n```"},
		{name: "prose around", raw: `Here is my verdict: {"score": 3, "reasoning": "ok"} Hope that helps.`},
		{name: "no json", raw: "I cannot rate this.", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "malformed", raw: `{"score": }`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verdict struct {
				Score int `json:"score"`
			}
			err := decodeVerdict(tt.raw, &verdict)
			if tt.wantErr {
				if err == nil {
					t.Fatal("decodeVerdict() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeVerdict() error = %v", err)
			}
			if verdict.Score != 3 {
				t.Errorf("Score = %d, want 3", verdict.Score)
			}
		})
	}
}

func TestTruncateReply(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := truncateReply(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateReply() len = %d, want 203 with ellipsis", len(got))
	}
	if truncateReply("short") != "short" {
		t.Error("short reply should pass through unchanged")
	}
}
