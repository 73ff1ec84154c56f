package testutil

import (
	"testing"
)

func TestParseSSEEvents_BareDataLines(t *testing.T) {
	// The chat stream sends fragments as bare data lines; per the W3C
	// spec these parse as "message" events.
	body := "data: The deductible\n\ndata:  is $500.\n\ndata: [DONE]\n\n"

	events := ParseSSEEvents(t, body)

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	for i, want := range []string{"The deductible", " is $500.", "[DONE]"} {
		if events[i].Type != "message" {
			t.Errorf("event %d type = %q, want %q", i, events[i].Type, "message")
		}
		if events[i].Data != want {
			t.Errorf("event %d data = %q, want %q", i, events[i].Data, want)
		}
	}
}

func TestParseSSEEvents_NamedEvent(t *testing.T) {
	body := `event: error
data: {"error":"generation_failed","message":"boom"}

`
	events := ParseSSEEvents(t, body)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	if events[0].Type != "error" {
		t.Errorf("expected event type 'error', got %q", events[0].Type)
	}
	if events[0].Data != `{"error":"generation_failed","message":"boom"}` {
		t.Errorf("unexpected data %q", events[0].Data)
	}
}

func TestParseSSEEvents_MultilineData(t *testing.T) {
	// A fragment containing newlines is sent as consecutive data lines
	// of one event and must parse back into the original text.
	body := "data: Line1\ndata: Line2\ndata: Line3\n\n"

	events := ParseSSEEvents(t, body)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	expected := "Line1\nLine2\nLine3"
	if events[0].Data != expected {
		t.Errorf("expected data %q, got %q", expected, events[0].Data)
	}
}

func TestParseSSEEvents_Comments(t *testing.T) {
	body := ": keep-alive\ndata: Hello\n\n"

	events := ParseSSEEvents(t, body)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	if events[0].Data != "Hello" {
		t.Errorf("expected data 'Hello', got %q", events[0].Data)
	}
}

func TestFindEvent(t *testing.T) {
	events := []SSEEvent{
		{Type: "message", Data: "frag1"},
		{Type: "message", Data: "frag2"},
		{Type: "error", Data: "boom"},
	}

	found := FindEvent(events, "error")
	if found == nil {
		t.Fatal("expected to find 'error' event")
	}
	if found.Data != "boom" {
		t.Errorf("expected data 'boom', got %q", found.Data)
	}

	if notFound := FindEvent(events, "done"); notFound != nil {
		t.Error("expected nil for non-existing event")
	}
}

func TestFindAllEvents(t *testing.T) {
	events := []SSEEvent{
		{Type: "message", Data: "frag1"},
		{Type: "message", Data: "frag2"},
		{Type: "error", Data: "boom"},
	}

	fragments := FindAllEvents(events, "message")
	if len(fragments) != 2 {
		t.Fatalf("expected 2 message events, got %d", len(fragments))
	}
	if fragments[1].Data != "frag2" {
		t.Errorf("expected data 'frag2', got %q", fragments[1].Data)
	}
}
