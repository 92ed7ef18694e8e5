package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"telkatv/internal/cache"
	"telkatv/internal/config"
	"telkatv/internal/models"
	"telkatv/internal/repositories"
)

const cacheTTL = 5 * time.Minute

// Server holds dependencies for the HTTP API. redis may be nil when
// caching is not configured; every handler works without it.
type Server struct {
	db     *bun.DB
	cfg    *config.Config
	redis  *cache.Redis
	logger *zap.SugaredLogger
	mux    *http.ServeMux
}

// New creates a Server and registers routes.
func New(db *bun.DB, cfg *config.Config, redis *cache.Redis, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	srv := &Server{db: db, cfg: cfg, redis: redis, logger: logger, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/tv/now", s.handleNow)
	s.mux.HandleFunc("GET /api/tv/tonight", s.handleTonight)
	s.mux.HandleFunc("GET /api/tv/date/{date}", s.handleByDate)
	s.mux.HandleFunc("GET /api/tv/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/tv/genre/{name}", s.handleByGenre)
	s.mux.HandleFunc("GET /api/tv/stats", s.handleStats)

	s.mux.HandleFunc("GET /api/channels", s.handleChannels)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server shuts down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      withCORS(s.withLogging(s)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("server shutdown", "error", err)
		}
	}()

	s.logger.Infow("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("database: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	key := "tv:now:" + time.Now().Format("2006-01-02T15:04")
	if s.serveCached(w, r, key) {
		return
	}

	programs, err := repositories.ProgramsNow(r.Context(), s.db, time.Now())
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, r, key, programListResponse(programs))
}

func (s *Server) handleTonight(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	key := "tv:tonight:" + now.Format("2006-01-02")
	if s.serveCached(w, r, key) {
		return
	}

	year, month, day := now.Date()
	from := time.Date(year, month, day, 20, 0, 0, 0, now.Location())
	to := time.Date(year, month, day, 23, 0, 0, 0, now.Location())
	programs, err := repositories.ProgramsBetween(r.Context(), s.db, from, to)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, r, key, programListResponse(programs))
}

func (s *Server) handleByDate(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid date: %s (want YYYY-MM-DD)", date))
		return
	}

	var channelID *int64
	if v := r.URL.Query().Get("channel"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid channel: %s", v))
			return
		}
		channelID = &id
	}

	key := "tv:date:" + date
	if channelID != nil {
		key += ":" + strconv.FormatInt(*channelID, 10)
	}
	if s.serveCached(w, r, key) {
		return
	}

	programs, err := repositories.ProgramsByDate(r.Context(), s.db, date, channelID)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, r, key, programListResponse(programs))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("q parameter is required"))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", v))
			return
		}
		limit = n
	}

	programs, err := repositories.SearchPrograms(r.Context(), s.db, query, limit)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, programListResponse(programs))
}

func (s *Server) handleByGenre(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("genre name is required"))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", v))
			return
		}
		limit = n
	}

	key := "tv:genre:" + name
	if s.serveCached(w, r, key) {
		return
	}

	programs, err := repositories.ProgramsByGenre(r.Context(), s.db, name, limit)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, r, key, programListResponse(programs))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	key := "tv:stats"
	if s.serveCached(w, r, key) {
		return
	}

	stats, err := repositories.GetStatistics(r.Context(), s.db)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, r, key, stats)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	channels, err := repositories.GetChannels(r.Context(), s.db, activeOnly)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if channels == nil {
		channels = []*models.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"total":    len(channels),
	})
}

func programListResponse(programs []*models.Program) map[string]any {
	if programs == nil {
		programs = []*models.Program{}
	}
	return map[string]any{
		"programs": programs,
		"total":    len(programs),
	}
}

// --- caching ---

// serveCached writes a cached response and returns true on a hit.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	if s.redis == nil {
		return false
	}
	raw, err := cache.Get[json.RawMessage](r.Context(), s.redis, key)
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
	return true
}

// respond writes v as JSON and stores it in the cache when configured.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, key string, v any) {
	if s.redis != nil {
		if err := cache.Set(r.Context(), s.redis, key, v, cacheTTL); err != nil {
			s.logger.Debugw("cache set failed", "key", key, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, v)
}

// --- middleware ---

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).String(),
		)
	})
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Errorw("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}
