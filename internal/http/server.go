// Package http exposes the engine as a JSON API: chore state with undo,
// the allowance ledger, and the weekly summary.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mielski/chores/internal/cache"
	"github.com/mielski/chores/internal/core"
	applog "github.com/mielski/chores/internal/log"
	"github.com/mielski/chores/internal/services"
)

type Server struct {
	http.Server
	service     *services.ChoreService
	rateLimiter *rateLimiter

	// Summary responses are cheap to recompute but read on every
	// dashboard refresh; a short TTL keeps them snappy.
	summaryCache *cache.LRUCache[core.BonusBreakdown]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, service *services.ChoreService) *Server {
	mux := http.NewServeMux()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           applog.Middleware(logger)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		service:      service,
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewLRUCache[core.BonusBreakdown](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/state/{user}", s.secure(s.handleGetState))
	mux.HandleFunc("PUT /api/state/{user}", s.secure(s.handleSetState))
	mux.HandleFunc("POST /api/state/{user}/reset", s.secure(s.handleResetState))
	mux.HandleFunc("POST /api/state/{user}/undo", s.secure(s.handleUndoState))

	mux.HandleFunc("GET /api/allowance/{user}/account", s.secure(s.handleGetAccount))
	mux.HandleFunc("GET /api/allowance/{user}/transactions", s.secure(s.handleListTransactions))
	mux.HandleFunc("POST /api/allowance/{user}/transactions", s.secure(s.handleAppendTransaction))
	mux.HandleFunc("POST /api/allowance/{user}/transactions/undo", s.secure(s.handleUndoTransaction))
	mux.HandleFunc("PUT /api/allowance/{user}/settings", s.secure(s.handleUpdateSettings))
	mux.HandleFunc("GET /api/allowance/{user}/summary", s.secure(s.handleWeeklySummary))

	return s
}

// Shutdown stops the background cleanup goroutines and drains in-flight
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// secure adds request IDs, security headers, rate limiting on mutating
// methods, and request logging.
func (s *Server) secure(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)
		logger := applog.FromContext(ctx)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldRequestID, requestID, applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, envelope{Success: false, Error: "rate limit exceeded, try again later"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		fields := applog.NewFields().
			WithRequestID(requestID).
			WithClientIP(clientIP).
			WithHTTPRequest(r.Method, r.URL.Path, r.Header.Get("User-Agent")).
			WithHTTPResponse(rw.statusCode, time.Since(start).Milliseconds(), rw.statusCode < 400)
		logger.InfoContext(ctx, "Request completed", fields.ToSlice()...)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// userFrom extracts and validates the user path segment.
func userFrom(r *http.Request) (string, error) {
	user := r.PathValue("user")
	if user == "" || len(user) > 64 {
		return "", fmt.Errorf("invalid user identifier")
	}
	return user, nil
}

func (s *Server) invalidateSummary(userID string) {
	s.summaryCache.Delete(userID)
}
