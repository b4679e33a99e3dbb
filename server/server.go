// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autovid-pipeline/config"
	"autovid-pipeline/health"
	"autovid-pipeline/history"
	"autovid-pipeline/llm"
	"autovid-pipeline/logging"
	"autovid-pipeline/pipeline"
	"autovid-pipeline/types"
	"autovid-pipeline/workspace"
)

const maxBodyBytes = 1 << 16

// Runner runs pipelines and suggests niches
type Runner interface {
	Run(ctx context.Context, req types.PipelineRequest) types.PipelineResult
	Suggest(ctx context.Context) (string, error)
}

// RunLister reads run history
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// ModelAPI is the Gemini surface behind the provider routes
type ModelAPI interface {
	ListModels(ctx context.Context) ([]string, error)
	Ping(ctx context.Context, model string) (int, string, error)
}

// Deps are the collaborators the HTTP layer calls into
type Deps struct {
	Runner Runner
	Runs   RunLister
	Gemini ModelAPI
	Health *health.Manager
}

// Server is the HTTP API
type Server struct {
	cfg  *config.Config
	deps Deps
}

// New creates a Server
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps}
}

// Router builds the route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(accessLog)

	r.Get("/health", s.deps.Health.ServeHealth)
	r.Get("/health/deps", s.deps.Health.ServeDeps)
	r.Get("/providers/gemini/models", s.handleGeminiModels)
	r.Get("/providers/gemini/ping", s.handleGeminiPing)
	r.Get("/runs", s.handleRuns)
	r.Get("/files/*", s.handleFile)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.cfg.Server.PipelineRateLimit, time.Minute))
		r.Post("/pipeline", s.handlePipeline)
		r.Post("/pipeline/suggest", s.handleSuggest)
	})
	return r
}

// ListenAndServe listens on the configured address and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then drains in-flight requests.
// Request contexts do not inherit ctx's cancellation, so a running pipeline finishes
// within the shutdown timeout instead of being cut off by the signal.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := logging.WithComponent("server")
	baseCtx := context.WithoutCancel(ctx)
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(s.cfg.Server.ShutdownTimeoutSec) * time.Second
	shutdownCtx, cancel := context.WithTimeout(baseCtx, timeout)
	defer cancel()
	logger.Info().Dur("timeout", timeout).Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	var req types.PipelineRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}
	if err := pipeline.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.deps.Runner.Run(r.Context(), req)
	status := http.StatusOK
	if res.Error != nil {
		status = http.StatusInternalServerError
	}
	writeJSON(r.Context(), w, status, res)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	niche, err := s.deps.Runner.Suggest(r.Context())
	if err != nil {
		logger := logging.Component(r.Context(), "server")
		logger.Warn().Err(err).Msg("suggestion failed")
		writeError(w, http.StatusInternalServerError, "Could not generate a suggestion")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"niche": niche})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if s.deps.Runs == nil {
		writeJSON(r.Context(), w, http.StatusOK, []history.Run{})
		return
	}
	runs, err := s.deps.Runs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, runs)
}

func (s *Server) handleGeminiModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.deps.Gemini.ListModels(r.Context())
	if err != nil {
		s.writeGeminiError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"ok": true, "models": models})
}

func (s *Server) handleGeminiPing(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" {
		writeError(w, http.StatusBadRequest, "model query parameter is required")
		return
	}
	status, body, err := s.deps.Gemini.Ping(r.Context(), model)
	if err != nil {
		s.writeGeminiError(w, r, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"ok":     status >= 200 && status < 400,
		"status": status,
		"body":   body,
	})
}

func (s *Server) writeGeminiError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, llm.ErrNotConfigured) {
		writeError(w, http.StatusBadRequest, "GEMINI_API_KEY missing")
		return
	}
	var apiErr *llm.Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		writeJSON(r.Context(), w, http.StatusOK, map[string]any{"ok": false, "status": apiErr.Status, "body": apiErr.Body})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// handleFile serves run workspace files, which lets the render service fetch narration audio
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path, err := workspace.Confine(s.cfg.Workspace.Root, chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, path)
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.WithComponent("http").With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), logger)))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int(logging.FieldStatus, ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.Component(ctx, "server")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
