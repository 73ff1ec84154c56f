package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/koopa0/ragchat/internal/testutil"
)

// goleakOptions returns standard goleak options for streaming tests.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
	}
}

func TestStream_Fragments(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	mg := testutil.NewMockGenerator("The deductible is $500.")
	mg.SetFragments("The deductible ", "is $500.")

	w := httptest.NewRecorder()
	r := postJSON(t, "/chat/stream", map[string]any{"message": "What is the deductible?"})

	newTestChatHandler(testutil.NewMockSearch(sampleDocs()...), mg).stream(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("stream() status = %d\nbody: %s", w.Code, w.Body.String())
	}

	events := testutil.ParseSSEEvents(t, w.Body.String())
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3 (2 fragments + [DONE])\nbody: %s", len(events), w.Body.String())
	}
	if events[0].Data != "The deductible " || events[1].Data != "is $500." {
		t.Errorf("fragments = %q, %q", events[0].Data, events[1].Data)
	}
	last := events[len(events)-1]
	if last.Type != "message" || last.Data != "[DONE]" {
		t.Errorf("terminator = %+v, want data [DONE]", last)
	}
}

func TestStream_MultilineFragment(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	mg := testutil.NewMockGenerator("line1\nline2")
	mg.SetFragments("line1\nline2")

	w := httptest.NewRecorder()
	r := postJSON(t, "/chat/stream", map[string]any{"message": "q", "use_rag": false})

	newTestChatHandler(testutil.NewMockSearch(), mg).stream(w, r)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2\nbody: %s", len(events), w.Body.String())
	}
	// Both lines travel as one event with consecutive data lines.
	if events[0].Data != "line1\nline2" {
		t.Errorf("fragment data = %q, want %q", events[0].Data, "line1\nline2")
	}
	if !strings.Contains(w.Body.String(), "data: line1\ndata: line2\n\n") {
		t.Errorf("wire format should use consecutive data lines:\n%s", w.Body.String())
	}
}

func TestStream_GenerationError(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	mg := testutil.NewMockGenerator("partial answer")
	mg.SetFragments("partial ")
	mg.FailStream(errors.New("model overloaded"))

	w := httptest.NewRecorder()
	r := postJSON(t, "/chat/stream", map[string]any{"message": "q", "use_rag": false})

	newTestChatHandler(testutil.NewMockSearch(), mg).stream(w, r)

	events := testutil.ParseSSEEvents(t, w.Body.String())

	errEvent := testutil.FindEvent(events, "error")
	if errEvent == nil {
		t.Fatalf("no error event in stream:\n%s", w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal([]byte(errEvent.Data), &resp); err != nil {
		t.Fatalf("decode error event data: %v", err)
	}
	if resp.Error != "generation_failed" {
		t.Errorf("error code = %q, want %q", resp.Error, "generation_failed")
	}

	// An aborted stream must not pretend to have completed.
	for _, ev := range events {
		if ev.Data == "[DONE]" {
			t.Errorf("stream ended with [DONE] after an error:\n%s", w.Body.String())
		}
	}
}

func TestStream_SearchError(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	ms := testutil.NewMockSearch()
	ms.Fail(errors.New("index offline"))

	w := httptest.NewRecorder()
	r := postJSON(t, "/chat/stream", map[string]any{"message": "q"})

	newTestChatHandler(ms, testutil.NewMockGenerator("unused")).stream(w, r)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	if len(events) != 1 {
		t.Fatalf("event count = %d, want only the error event\nbody: %s", len(events), w.Body.String())
	}
	if events[0].Type != "error" {
		t.Fatalf("event type = %q, want error", events[0].Type)
	}
	var resp errorResponse
	if err := json.Unmarshal([]byte(events[0].Data), &resp); err != nil {
		t.Fatalf("decode error event data: %v", err)
	}
	if resp.Error != "search_failed" {
		t.Errorf("error code = %q, want %q", resp.Error, "search_failed")
	}
}

func TestStream_ValidationErrorBeforeSSE(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	w := httptest.NewRecorder()
	r := postJSON(t, "/chat/stream", map[string]any{"top_k": 3})

	newTestChatHandler(testutil.NewMockSearch(), testutil.NewMockGenerator("x")).stream(w, r)

	// Request problems surface as plain JSON, not as an SSE stream.
	if w.Code != http.StatusBadRequest {
		t.Fatalf("stream(no message) status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if resp := decodeErrorEnvelope(t, w); resp.Error != "validation_failed" {
		t.Errorf("error code = %q, want %q", resp.Error, "validation_failed")
	}
}

func TestStream_Headers(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	w := httptest.NewRecorder()
	r := postJSON(t, "/chat/stream", map[string]any{"message": "q", "use_rag": false})

	newTestChatHandler(testutil.NewMockSearch(), testutil.NewMockGenerator("hi")).stream(w, r)

	headers := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for name, want := range headers {
		if got := w.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestStream_ContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	mg := testutil.NewMockGenerator("answer")
	mg.SetFragments("a", "b", "c")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	r := postJSON(t, "/chat/stream", map[string]any{"message": "q", "use_rag": false}).WithContext(ctx)

	newTestChatHandler(testutil.NewMockSearch(), mg).stream(w, r)

	// A canceled client never receives the completion terminator.
	if strings.Contains(w.Body.String(), "[DONE]") {
		t.Errorf("canceled stream wrote [DONE]:\n%s", w.Body.String())
	}
}
