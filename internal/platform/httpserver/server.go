package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tallyengine "pollcast/contexts/live-polling/tally-engine"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	httptransport "pollcast/contexts/live-polling/tally-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "pollcast/internal/platform/httpserver/docs"
)

const adminTokenHeader = "X-Admin-Token"

// Options carries the edge settings of the HTTP surface.
type Options struct {
	AdminToken     string
	AllowedOrigins []string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

type Server struct {
	mux            *http.ServeMux
	logger         *slog.Logger
	addr           string
	tally          tallyengine.Module
	adminToken     string
	allowedOrigins map[string]struct{}
	metrics        http.Handler
	httpServer     *http.Server
}

func New(
	tally tallyengine.Module,
	opts Options,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8000"
	}

	s := &Server{
		mux:            http.NewServeMux(),
		logger:         logger,
		addr:           addr,
		tally:          tally,
		adminToken:     strings.TrimSpace(opts.AdminToken),
		allowedOrigins: make(map[string]struct{}, len(opts.AllowedOrigins)),
		metrics:        opts.Metrics,
	}
	for _, origin := range opts.AllowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			s.allowedOrigins[origin] = struct{}{}
		}
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler is the routed mux wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.mux)
}

// Start serves until Shutdown is called. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked
// websocket connections are not tracked by net/http and must be closed by the
// caller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if s.tally.Socket != nil {
		s.mux.Handle("GET /ws", s.tally.Socket)
		s.mux.Handle("GET /socket", s.tally.Socket)
	}

	s.mux.HandleFunc("POST /start-voting", s.requireAdmin(s.handleStartVoting))
	s.mux.HandleFunc("POST /stop-voting", s.requireAdmin(s.handleStopVoting))
	s.mux.HandleFunc("POST /clear-votes", s.requireAdmin(s.handleClearVotes))
	s.mux.HandleFunc("GET /tally", s.handleTally)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

func (s *Server) handleStartVoting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tally.Handler.StartVotingHandler(r.Context()))
}

func (s *Server) handleStopVoting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tally.Handler.StopVotingHandler(r.Context()))
}

func (s *Server) handleClearVotes(w http.ResponseWriter, r *http.Request) {
	resp, err := s.tally.Handler.ClearVotesHandler(r.Context())
	if err != nil {
		writeTallyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tally.Handler.TallyHandler(r.Context()))
}

// handleHealth godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} httptransport.HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, httptransport.HealthResponse{Status: "ok"})
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provided := strings.TrimSpace(r.Header.Get(adminTokenHeader))
		if s.adminToken == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminToken)) != 1 {
			s.logger.Warn("admin request rejected",
				"event", "http_admin_unauthorized",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeTallyError(w, http.StatusUnauthorized, "unauthorized", adminTokenHeader+" header is missing or invalid")
			return
		}
		next(w, r)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			headers := w.Header()
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Add("Vary", "Origin")
			headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			headers.Set("Access-Control-Allow-Headers", "Content-Type, "+adminTokenHeader)
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	_, ok := s.allowedOrigins[strings.TrimRight(origin, "/")]
	return ok
}

func writeTallyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrPersistenceFailure):
		writeTallyError(w, http.StatusServiceUnavailable, "persistence_failure", "votes could not be cleared, please retry")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeTallyError(w, http.StatusServiceUnavailable, "timeout", "request did not complete in time")
	default:
		writeTallyError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func writeTallyError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, httptransport.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
