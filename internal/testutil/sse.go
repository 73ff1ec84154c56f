// Package testutil provides shared test helpers: an SSE stream parser
// for the chat streaming endpoint and in-memory doubles for the
// retrieval and generation collaborators.
package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent represents a parsed Server-Sent Event.
type SSEEvent struct {
	Type string // event: value ("message" when the stream sends bare data lines)
	Data string // data: value (multi-line joined with \n)
}

// ParseSSEEvents parses an SSE response body into structured events.
//
// Handles the W3C SSE wire format:
//   - Multiple "data:" lines of one event are joined with newline
//   - An empty line terminates an event
//   - data: without a preceding event: defaults to the "message" type,
//     which is how the chat stream sends answer fragments
//   - Comments starting with ":" are ignored
//
// Example:
//
//	events := testutil.ParseSSEEvents(t, w.Body.String())
//	fragments := testutil.FindAllEvents(events, "message")
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var events []SSEEvent
	scanner := bufio.NewScanner(strings.NewReader(body))

	var currentEvent SSEEvent
	var dataLines []string
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			if currentEvent.Type != "" && len(dataLines) > 0 {
				t.Fatalf("SSE parse error at line %d: new event before previous event terminated (got %q)", lineNum, line)
			}
			currentEvent.Type = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			if currentEvent.Type == "" {
				currentEvent.Type = "message" // W3C SSE spec default
			}
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))

		case line == "":
			if currentEvent.Type != "" && len(dataLines) > 0 {
				currentEvent.Data = strings.Join(dataLines, "\n")
				events = append(events, currentEvent)
				currentEvent = SSEEvent{}
				dataLines = nil
			} else if currentEvent.Type != "" {
				// Event with no data - still valid per SSE spec
				events = append(events, currentEvent)
				currentEvent = SSEEvent{}
				dataLines = nil
			}

		default:
			if !strings.HasPrefix(line, ":") {
				t.Fatalf("SSE parse error at line %d: unexpected SSE line: %q", lineNum, line)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}

	if currentEvent.Type != "" {
		t.Fatalf("SSE stream ended without terminating event %q (missing empty line)", currentEvent.Type)
	}

	return events
}

// FindEvent finds the first event of a given type.
// Returns nil if not found.
func FindEvent(events []SSEEvent, eventType string) *SSEEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// FindAllEvents finds all events of a given type.
func FindAllEvents(events []SSEEvent, eventType string) []SSEEvent {
	var found []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}
