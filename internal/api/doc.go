// Package api provides the JSON REST API server for ragchat.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// The health probe (/health) bypasses the middleware stack via a
// top-level mux, ensuring it stays fast and is never rate limited.
//
// # Endpoints
//
//   - GET  /            : API name, version, health path
//   - GET  /health      : service status and configuration state
//   - POST /chat        : synchronous chat (JSON request/response)
//   - POST /chat/stream : streaming chat (Server-Sent Events)
//   - GET  /search      : raw document retrieval, no generation
//
// # Error Handling
//
// Errors are returned as a flat JSON envelope:
//
//	{"error": "<code>", "message": "<detail>"}
//
// Codes are derived from the pipeline's sentinel errors: a missing
// endpoint maps to "not_configured" (503), retrieval and generation
// failures map to "search_failed"/"generation_failed" (502), request
// problems map to 4xx codes. Once SSE headers are committed, errors
// are sent as an SSE "error" event instead, since the HTTP status is
// already written.
//
// # SSE Streaming
//
// POST /chat/stream answers with text/event-stream. Each answer
// fragment is sent as a plain data event (multi-line fragments become
// consecutive data lines of one event) and the stream is terminated by
// a literal "data: [DONE]" event:
//
//	data: The deductible
//
//	data:  is $500.
//
//	data: [DONE]
//
// Clients that stop reading simply abandon the stream; the handler
// notices the closed connection on the next write and returns.
//
// # Rate Limiting
//
// Per-IP token bucket (golang.org/x/time/rate): 1 token/sec refill
// with a configurable burst. Entries for idle IPs are dropped during
// periodic inline cleanup. Behind a reverse proxy, set TrustProxy so
// the limiter keys on X-Real-IP/X-Forwarded-For instead of the proxy
// address.
package api
