package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/koopa0/ragchat/internal/rag"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger *slog.Logger
	Engine *rag.Engine // Required

	// Model is the configured chat deployment, reported by /health and
	// used as the response model when the engine does not report one.
	Model string

	// Configuration state reported by /health. The server itself runs
	// without either endpoint; affected routes return "not_configured".
	SearchConfigured bool
	OpenAIConfigured bool

	Version     string   // Reported by GET /
	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		engine:   cfg.Engine,
		model:    cfg.Model,
		validate: validator.New(),
		logger:   logger,
	}
	sh := &searchHandler{engine: cfg.Engine, logger: logger}
	hh := &healthHandler{
		model:            cfg.Model,
		searchConfigured: cfg.SearchConfigured,
		openaiConfigured: cfg.OpenAIConfigured,
		logger:           logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", infoHandler(cfg.Version, logger))

	// Chat
	mux.HandleFunc("POST /chat", ch.chat)
	mux.HandleFunc("POST /chat/stream", ch.stream)

	// Retrieval only, no generation
	mux.HandleFunc("GET /search", sh.search)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate the health probe from the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
