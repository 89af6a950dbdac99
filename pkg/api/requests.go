package api

// CreateProjectRequest is the body of POST /api/v1/projects.
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
	Seed string `json:"seed" binding:"required"`
}

// ExecuteRequest is the optional body of POST /api/v1/projects/:id/execute.
// UpTo defaults to the final step.
type ExecuteRequest struct {
	UpTo *int `json:"up_to,omitempty"`
}

// ReviseRequest is the optional body of
// POST /api/v1/projects/:id/steps/:index/revise.
type ReviseRequest struct {
	Guidance string `json:"guidance,omitempty"`
}
