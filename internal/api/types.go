package api

import (
	"subalign/internal/deps"
	"subalign/internal/models"
	"subalign/internal/preflight"
	"subalign/internal/tasks"
	"subalign/internal/workflow"
)

// AlignResponse acknowledges an accepted submission.
type AlignResponse struct {
	TaskID string `json:"task_id"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginResponse acknowledges an accepted token.
type LoginResponse struct {
	Status string `json:"status"`
}

// ModelsResponse lists the selectable model sizes.
type ModelsResponse struct {
	Models  []string      `json:"models"`
	Loaded  string        `json:"loaded,omitempty"`
	Catalog []models.Info `json:"catalog"`
}

// TaskListResponse lists every task in submission order.
type TaskListResponse struct {
	Tasks  []tasks.Task `json:"tasks"`
	Counts tasks.Counts `json:"counts"`
}

// HealthResponse reports server readiness.
type HealthResponse struct {
	Status       string                 `json:"status"`
	Version      string                 `json:"version,omitempty"`
	ModelLoaded  string                 `json:"model_loaded,omitempty"`
	Workflow     workflow.StatusSummary `json:"workflow"`
	Dependencies []deps.Status          `json:"dependencies"`
	Checks       []preflight.Result     `json:"checks"`
}
