package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/koopa0/ragchat/internal/rag"
)

// maxRequestBodySize caps chat request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// doneSentinel terminates a successful SSE stream as a literal
// "data: [DONE]" event.
const doneSentinel = "[DONE]"

// chatHandler handles the chat HTTP endpoints.
//
// Endpoints:
//   - POST /chat        - synchronous chat (JSON request/response)
//   - POST /chat/stream - streaming chat (SSE)
//
// Both run the same retrieval-augmented pipeline; the streaming
// variant forwards answer fragments as they arrive.
type chatHandler struct {
	engine   *rag.Engine
	model    string
	validate *validator.Validate
	logger   *slog.Logger
}

// chatMessage is a single conversation turn on the wire.
type chatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// chatRequest is the request payload for /chat and /chat/stream.
// Pointer fields distinguish "absent" from an explicit zero so the
// engine defaults apply only when a field is omitted.
type chatRequest struct {
	Message             string        `json:"message" validate:"required"`
	ConversationHistory []chatMessage `json:"conversation_history" validate:"omitempty,dive"`
	SystemPrompt        string        `json:"system_prompt"`
	MaxTokens           int           `json:"max_tokens" validate:"omitempty,min=1,max=4096"`
	Temperature         *float64      `json:"temperature" validate:"omitempty,min=0,max=2"`
	UseRAG              *bool         `json:"use_rag"`
	TopK                int           `json:"top_k" validate:"omitempty,min=1,max=20"`
}

// chatResponse is the response payload for POST /chat.
type chatResponse struct {
	Response string      `json:"response"`
	Model    string      `json:"model"`
	Usage    rag.Usage   `json:"usage"`
	Sources  []sourceRef `json:"sources"`
}

// sourceRef identifies one retrieved document backing the answer.
type sourceRef struct {
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	PageNumber int     `json:"page_number"`
	Score      float64 `json:"score"`
}

// chat handles POST /chat: run the full pipeline and return the
// complete answer with its sources.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	res, err := h.engine.Chat(r.Context(), req.Message, req.history(), req.engineOptions()...)
	if err != nil {
		status, code := classifyError(err)
		h.logger.Error("chat request failed", "code", code, "error", err)
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	sources := make([]sourceRef, 0, len(res.Documents))
	for _, doc := range res.Documents {
		sources = append(sources, sourceRef{
			Title:      doc.Title,
			Source:     doc.Source,
			PageNumber: doc.PageNumber,
			Score:      doc.RelevanceScore,
		})
	}

	model := res.Model
	if model == "" {
		model = h.model
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response: res.Answer,
		Model:    model,
		Usage:    res.Usage,
		Sources:  sources,
	}, h.logger)
}

// stream handles POST /chat/stream: run the pipeline and forward
// answer fragments as SSE data events, terminated by "data: [DONE]".
//
// Request problems (bad JSON, validation) are reported as plain JSON
// errors before any SSE header is written. Once streaming has begun,
// pipeline failures arrive as an SSE "error" event and the stream ends
// without the [DONE] terminator.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	h.logger.Debug("sse stream started",
		"history_turns", len(req.ConversationHistory),
		"use_rag", req.useRAG(),
	)

	for value, err := range h.engine.ChatStream(ctx, req.Message, req.history(), req.engineOptions()...) {
		select {
		case <-ctx.Done():
			h.logger.Debug("client disconnected during stream")
			return
		default:
		}

		if err != nil {
			h.streamError(w, flusher, err)
			return
		}

		if value.Done {
			break
		}

		if value.Fragment != "" {
			if werr := writeSSEData(w, flusher, value.Fragment); werr != nil {
				// Write failure usually means the connection closed
				h.logger.Debug("failed to write sse fragment", "error", werr)
				return
			}
		}
	}

	if err := writeSSEData(w, flusher, doneSentinel); err != nil {
		h.logger.Debug("failed to write sse terminator", "error", err)
		return
	}
	h.logger.Debug("sse stream completed")
}

// decodeRequest parses and validates the chat request body. On failure
// it writes the error response and returns ok=false.
func (h *chatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds 1MB", h.logger)
			return chatRequest{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", h.logger)
		return chatRequest{}, false
	}

	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationMessage(err), h.logger)
		return chatRequest{}, false
	}

	return req, true
}

// streamError reports a pipeline failure on an already-committed SSE
// stream. The error is sent as a named "error" event so clients can
// tell it apart from answer fragments; no [DONE] terminator follows.
func (h *chatHandler) streamError(w io.Writer, flusher http.Flusher, err error) {
	_, code := classifyError(err)
	h.logger.Error("sse stream failed", "code", code, "error", err)

	data, merr := json.Marshal(errorResponse{Error: code, Message: err.Error()})
	if merr != nil {
		return
	}
	if _, werr := fmt.Fprintf(w, "event: error\ndata: %s\n\n", data); werr != nil {
		return
	}
	flusher.Flush()
}

// history converts the wire messages to pipeline messages.
func (req *chatRequest) history() []rag.Message {
	if len(req.ConversationHistory) == 0 {
		return nil
	}
	msgs := make([]rag.Message, len(req.ConversationHistory))
	for i, m := range req.ConversationHistory {
		msgs[i] = rag.Message{Role: m.Role, Content: m.Content}
	}
	return msgs
}

// useRAG reports whether retrieval is enabled; it defaults to true
// when the field is omitted.
func (req *chatRequest) useRAG() bool {
	return req.UseRAG == nil || *req.UseRAG
}

// engineOptions maps request overrides onto pipeline options. Absent
// fields keep the engine defaults.
func (req *chatRequest) engineOptions() []rag.Option {
	var opts []rag.Option
	if req.TopK > 0 {
		opts = append(opts, rag.WithTopK(req.TopK))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, rag.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature != nil {
		opts = append(opts, rag.WithTemperature(*req.Temperature))
	}
	if req.SystemPrompt != "" {
		opts = append(opts, rag.WithSystemPrompt(req.SystemPrompt))
	}
	if !req.useRAG() {
		opts = append(opts, rag.WithoutRetrieval())
	}
	return opts
}

// writeSSEData writes one SSE data event and flushes it. Multi-line
// text becomes consecutive data lines of the same event, per the SSE
// wire format.
func writeSSEData(w io.Writer, flusher http.Flusher, text string) error {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write sse data: %w", err)
	}
	flusher.Flush()
	return nil
}

// classifyError maps pipeline errors to an HTTP status and a stable
// error code for clients.
func classifyError(err error) (status int, code string) {
	switch {
	case errors.Is(err, rag.ErrConfiguration):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, rag.ErrRetrieval):
		return http.StatusBadGateway, "search_failed"
	case errors.Is(err, rag.ErrGeneration):
		return http.StatusBadGateway, "generation_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// validationMessage flattens a validator error into a client-facing
// message without Go struct names.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("field %q failed %q=%s validation", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("field %q failed %q validation", fe.Field(), fe.Tag())
	}
	return err.Error()
}
