package api

import (
	"time"

	"github.com/novelforge/novelforge/pkg/models"
	"github.com/novelforge/novelforge/pkg/pipeline/validate"
)

// ProjectResponse is returned by POST /api/v1/projects.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// StepResultResponse is returned by the execute and revise endpoints for a
// single step.
type StepResultResponse struct {
	Step        int       `json:"step"`
	Name        string    `json:"name"`
	ContentHash string    `json:"content_hash"`
	Model       string    `json:"model"`
	Attempts    int       `json:"attempts"`
	Degraded    bool      `json:"degraded"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ExecuteAllResponse is returned by POST /api/v1/projects/:id/execute.
type ExecuteAllResponse struct {
	ProjectID      string `json:"project_id"`
	CompletedSteps []int  `json:"completed_steps"`
	Status         string `json:"status"`
}

// ValidationResponse is returned by GET .../steps/:index/validation.
type ValidationResponse struct {
	Step   int              `json:"step"`
	Valid  bool             `json:"valid"`
	Issues []validate.Issue `json:"issues"`
}

// CancelResponse is returned by POST /api/v1/projects/:id/cancel.
type CancelResponse struct {
	ProjectID string `json:"project_id"`
	Cancelled bool   `json:"cancelled"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Projects int    `json:"projects"`
}

// ListResponse is returned by GET /api/v1/projects.
type ListResponse struct {
	Projects []*models.StatusSnapshot `json:"projects"`
}
