// Package api exposes the support-chat core over a JSON HTTP API with an
// SSE streaming endpoint for chat turns.
package api

import (
	"errors"
	"net/http"

	"github.com/supportchat/supportchat/internal/chat"
	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger          log.Logger
	Sessions        *session.Manager // Required
	Turns           *chat.Handler    // Required
	Store           *knowledge.Store // Required
	CORSOrigins     []string         // Allowed origins for the browser client
	TrustProxy      bool             // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst       int              // Rate limiter burst size per IP (0 = default 60)
	MaxUploadBytes  int64            // Upload batch size limit (0 = default 32 MiB)
	InputPricePerM  float64          // USD per million input tokens
	OutputPricePerM float64          // USD per million output tokens
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.Turns == nil {
		return nil, errors.New("turn handler is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("knowledge store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	rates := pricing{InputPerM: cfg.InputPricePerM, OutputPerM: cfg.OutputPricePerM}

	dh := &documentHandler{sessions: cfg.Sessions, logger: logger, maxUploadBytes: maxUpload}
	sh := &sessionHandler{sessions: cfg.Sessions, rates: rates, logger: logger}
	ch := &chatHandler{turns: cfg.Turns, sessions: cfg.Sessions, rates: rates, logger: logger}
	kh := &knowledgeHandler{store: cfg.Store, sessions: cfg.Sessions, logger: logger}

	mux := http.NewServeMux()

	// Document workspace
	mux.HandleFunc("POST /api/v1/documents", dh.upload)
	mux.HandleFunc("GET /api/v1/documents", dh.list)
	mux.HandleFunc("DELETE /api/v1/documents", dh.clear)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", dh.remove)

	// Session lifecycle
	mux.HandleFunc("POST /api/v1/session", sh.start)
	mux.HandleFunc("DELETE /api/v1/session", sh.reset)
	mux.HandleFunc("GET /api/v1/session", sh.get)

	// Chat
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	// Knowledge bases
	mux.HandleFunc("GET /api/v1/knowledge-bases", kh.list)
	mux.HandleFunc("POST /api/v1/knowledge-bases", kh.save)
	mux.HandleFunc("GET /api/v1/knowledge-bases/{id}", kh.get)
	mux.HandleFunc("POST /api/v1/knowledge-bases/{id}/load", kh.load)
	mux.HandleFunc("DELETE /api/v1/knowledge-bases/{id}", kh.remove)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
