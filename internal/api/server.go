package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"strings"

	"subalign/internal/alignment"
	"subalign/internal/deps"
	"subalign/internal/logging"
	"subalign/internal/observe"
	"subalign/internal/preflight"
	"subalign/internal/staging"
	"subalign/internal/tasks"
	"subalign/internal/workflow"
)

//go:embed web/index.html
var indexHTML []byte

// Queue accepts jobs and reports pool state.
type Queue interface {
	Enqueue(ctx context.Context, job alignment.Job) (tasks.Task, error)
	Status() workflow.StatusSummary
}

// ModelState reports which model is resident.
type ModelState interface {
	Loaded() (string, bool)
}

// Options wires the server to the rest of the process.
type Options struct {
	Queue           Queue
	Store           *tasks.Store
	Staging         *staging.Area
	OutputDir       string
	Models          ModelState
	DefaultModel    string
	DefaultLanguage string
	MaxUploadBytes  int64
	APIToken        string
	Version         string
	Metrics         *observe.Metrics
	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
	// Dependencies is called on every health request.
	Dependencies func() []deps.Status
	// Preflight is called on every health request.
	Preflight func(context.Context) []preflight.Result
	Logger    *slog.Logger
}

// Server implements the HTTP endpoints.
type Server struct {
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

const (
	defaultLanguage = "zh"
	defaultModel    = "base"
	defaultMaxBytes = 512 << 20
)

// NewServer builds the handler tree.
func NewServer(opts Options) *Server {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = defaultLanguage
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = defaultModel
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxBytes
	}
	if opts.Dependencies == nil {
		opts.Dependencies = func() []deps.Status { return nil }
	}
	if opts.Preflight == nil {
		opts.Preflight = func(context.Context) []preflight.Result { return nil }
	}
	s := &Server{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/align", s.guard(s.handleAlign))
	mux.HandleFunc("GET /api/status/{task_id}", s.guard(s.handleStatus))
	mux.HandleFunc("GET /api/download/{path...}", s.guard(s.handleDownload))
	mux.HandleFunc("GET /api/models", s.guard(s.handleModels))
	mux.HandleFunc("GET /api/tasks", s.guard(s.handleTasks))
	mux.HandleFunc("GET /api/health", s.guard(s.handleHealth))
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	var handler http.Handler = mux
	handler = observe.Middleware(opts.Metrics, opts.Logger)(handler)
	handler = s.recoverMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return authMiddleware(s.opts.APIToken, next)
}

// handleLogin exchanges the API token for an HttpOnly cookie so the page's
// fetches and download links authenticate without script access to it.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	token := s.opts.APIToken
	if token == "" {
		writeJSON(w, http.StatusOK, LoginResponse{Status: "ok"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if !tokenMatches(strings.TrimSpace(r.FormValue("token")), token) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{Status: "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}
