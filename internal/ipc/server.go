package ipc

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// Server wraps an HTTP server with diagnostics routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           corsMiddleware(Routes(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: srv,
	}
}

// Routes registers every endpoint on a new mux.
func Routes(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Health endpoint.
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Action registry of the loaded problem.
	mux.HandleFunc("GET /api/v1/actions", h.ListActions)

	// Run endpoints.
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{runID}", h.GetRun)
	mux.HandleFunc("GET /api/v1/runs/{runID}/action-times", h.ListActionTimes)
	mux.HandleFunc("GET /api/v1/runs/{runID}/digests", h.ListDigests)
	mux.HandleFunc("GET /api/v1/runs/{runID}/optical", h.ListOptical)
	mux.HandleFunc("GET /api/v1/runs/{runID}/compare/{otherID}", h.CompareRuns)

	// Step counter endpoints.
	mux.HandleFunc("GET /api/v1/runs/{runID}/streams/{stream}/counters", h.ListCounters)
	mux.HandleFunc("GET /api/v1/runs/{runID}/streams/{stream}/counters/stream", h.StreamCounters)

	return mux
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// FormatListenURL turns a listen address into a browsable URL, using
// localhost when the host is empty or unspecified.
func FormatListenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port
}

// corsMiddleware adds CORS headers for local dashboard access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
