package api

import (
	"log/slog"
	"net/http"
)

// healthHandler reports service status and configuration state for
// Docker/Kubernetes probes and for operators checking a fresh deploy.
type healthHandler struct {
	model            string
	searchConfigured bool
	openaiConfigured bool
	logger           *slog.Logger
}

// healthResponse is the GET /health payload.
type healthResponse struct {
	Status           string `json:"status"`
	SearchConfigured bool   `json:"search_configured"`
	OpenAIConfigured bool   `json:"openai_configured"`
	Model            string `json:"model"`
}

// health handles GET /health. Always 200: the server being able to
// answer is the health signal, missing endpoints show up in the
// configuration flags.
func (h *healthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "healthy",
		SearchConfigured: h.searchConfigured,
		OpenAIConfigured: h.openaiConfigured,
		Model:            h.model,
	}, h.logger)
}

// infoHandler returns the GET / handler with API metadata.
func infoHandler(version string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"name":    "ragchat",
			"version": version,
			"health":  "/health",
		}, logger)
	}
}
