package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/version"
)

// stepIndex parses and range-checks the :index route parameter.
func stepIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 || idx >= pipeline.Count() {
		respondBadRequest(c, "step index must be an integer between 0 and "+strconv.Itoa(pipeline.Count()-1))
		return 0, false
	}
	return idx, true
}

func (s *Server) healthHandler(c *gin.Context) {
	ids, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:  "unhealthy",
			Version: version.GitCommit,
		})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  version.GitCommit,
		Projects: len(ids),
	})
}

func (s *Server) createProjectHandler(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name and seed are required")
		return
	}

	p, err := s.engine.CreateProject(c.Request.Context(), req.Name, req.Seed)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
	})
}

func (s *Server) listProjectsHandler(c *gin.Context) {
	snaps, err := s.engine.List()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Projects: snaps})
}

func (s *Server) statusHandler(c *gin.Context) {
	report, err := s.engine.Status(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) executeStepHandler(c *gin.Context) {
	idx, ok := stepIndex(c)
	if !ok {
		return
	}

	env, err := s.engine.ExecuteStep(c.Request.Context(), c.Param("id"), idx)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StepResultResponse{
		Step:        env.Step,
		Name:        pipeline.Name(env.Step),
		ContentHash: env.ContentHash,
		Model:       env.Model,
		Attempts:    env.Attempts,
		Degraded:    env.Degraded,
		GeneratedAt: env.GeneratedAt,
	})
}

func (s *Server) executeAllHandler(c *gin.Context) {
	upTo := pipeline.Count() - 1
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.UpTo != nil {
		upTo = *req.UpTo
	}

	projectID := c.Param("id")
	if err := s.engine.ExecuteAll(c.Request.Context(), projectID, upTo); err != nil {
		s.respondError(c, err)
		return
	}

	report, err := s.engine.Status(projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ExecuteAllResponse{
		ProjectID:      projectID,
		CompletedSteps: report.Project.CompletedSteps,
		Status:         string(report.Project.Status),
	})
}

func (s *Server) reviseHandler(c *gin.Context) {
	idx, ok := stepIndex(c)
	if !ok {
		return
	}

	var req ReviseRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	env, err := s.engine.ReviseStep(c.Request.Context(), c.Param("id"), idx, req.Guidance)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StepResultResponse{
		Step:        env.Step,
		Name:        pipeline.Name(env.Step),
		ContentHash: env.ContentHash,
		Model:       env.Model,
		Attempts:    env.Attempts,
		Degraded:    env.Degraded,
		GeneratedAt: env.GeneratedAt,
	})
}

func (s *Server) validationHandler(c *gin.Context) {
	idx, ok := stepIndex(c)
	if !ok {
		return
	}

	issues, err := s.engine.ValidateOnly(c.Request.Context(), c.Param("id"), idx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValidationResponse{Step: idx, Valid: len(issues) == 0, Issues: issues})
}

func (s *Server) cancelHandler(c *gin.Context) {
	projectID := c.Param("id")
	cancelled := s.engine.Cancel(projectID)
	c.JSON(http.StatusOK, CancelResponse{ProjectID: projectID, Cancelled: cancelled})
}

func (s *Server) artifactHandler(c *gin.Context) {
	idx, ok := stepIndex(c)
	if !ok {
		return
	}

	env, err := s.engine.Artifact(c.Param("id"), idx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}
