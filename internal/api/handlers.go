package api

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"subalign/internal/deps"
	"subalign/internal/logging"
	"subalign/internal/models"
	"subalign/internal/preflight"
	"subalign/internal/tasks"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.opts.Store.Get(r.PathValue("task_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	list := s.opts.Store.List()
	if list == nil {
		list = []tasks.Task{}
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: list, Counts: s.opts.Store.Counts()})
}

// handleDownload serves an artifact as an attachment. Lookups go through an
// os.Root so no request path can resolve outside the output directory.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rel := path.Clean("/" + r.PathValue("path"))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	root, err := os.OpenRoot(s.opts.OutputDir)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "output directory unavailable", "output_root_unavailable",
			logging.String("output_dir", s.opts.OutputDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.output_dir"),
			logging.String(logging.FieldImpact, "downloads fail until the directory exists"),
		)
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer root.Close()

	file, err := root.Open(filepath.FromSlash(rel))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WithContext(r.Context(), s.logger).Debug("download rejected",
				logging.String("path", rel),
				logging.Error(err),
			)
		}
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	name := path.Base(rel)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if contentType := contentTypeFor(name); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".srt":
		return "application/x-subrip; charset=utf-8"
	case ".ass":
		return "text/x-ssa; charset=utf-8"
	case ".json":
		return "application/json"
	case ".tsv":
		return "text/tab-separated-values; charset=utf-8"
	default:
		return ""
	}
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	resp := ModelsResponse{Models: models.Names(), Catalog: models.Catalog()}
	if s.opts.Models != nil {
		if size, ok := s.opts.Models.Loaded(); ok {
			resp.Loaded = size
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dependencies := s.opts.Dependencies()
	if dependencies == nil {
		dependencies = []deps.Status{}
	}
	checks := s.opts.Preflight(r.Context())
	if checks == nil {
		checks = []preflight.Result{}
	}
	resp := HealthResponse{
		Status:       "ok",
		Version:      s.opts.Version,
		Workflow:     s.opts.Queue.Status(),
		Dependencies: dependencies,
		Checks:       checks,
	}
	if s.opts.Models != nil {
		if size, ok := s.opts.Models.Loaded(); ok {
			resp.ModelLoaded = size
		}
	}
	if !resp.Workflow.Running || !deps.Ready(dependencies) || !preflight.Passed(checks) {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}
