package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/koopa0/ragchat/internal/rag"
)

const (
	// maxSearchQueryLength is the maximum allowed search query length in bytes.
	maxSearchQueryLength = 1000

	// maxSearchTopK bounds the top_k query parameter, matching the
	// chat request bound.
	maxSearchTopK = 20

	// maxContentPreview is where document content is cut for display
	// responses.
	maxContentPreview = 500
)

// searchHandler holds dependencies for the document search endpoint.
type searchHandler struct {
	engine *rag.Engine
	logger *slog.Logger
}

// searchDocument is the JSON representation of one retrieved document.
// Content is truncated for display; use the chat endpoints for full
// grounding.
type searchDocument struct {
	Title         string  `json:"title"`
	Source        string  `json:"source"`
	PageNumber    int     `json:"page_number"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	RerankerScore float64 `json:"reranker_score"`
}

// search handles GET /search?query=...&top_k=N.
// Returns raw retrieval results without generating an answer; useful
// for document discovery and testing the index.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query parameter 'query' is required", h.logger)
		return
	}
	if len(query) > maxSearchQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	topK := min(parseIntParam(r, "top_k", 0), maxSearchTopK)

	docs, err := h.engine.Documents(r.Context(), query, topK)
	if err != nil {
		status, code := classifyError(err)
		h.logger.Error("search request failed", "code", code, "error", err)
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	items := make([]searchDocument, len(docs))
	for i, doc := range docs {
		items[i] = searchDocument{
			Title:         doc.Title,
			Source:        doc.Source,
			PageNumber:    doc.PageNumber,
			Content:       truncateContent(doc.Content, maxContentPreview),
			Score:         doc.RelevanceScore,
			RerankerScore: doc.RerankScore,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": items,
		"query":     query,
	}, h.logger)
}

// parseIntParam reads an integer query parameter, falling back to def
// when the parameter is absent or malformed.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// truncateContent caps content at max runes, marking the cut with an
// ellipsis.
func truncateContent(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
