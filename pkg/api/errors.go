package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/novelforge/novelforge/pkg/engine"
)

// ErrorResponse is the JSON shape of every non-2xx answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpStatusFor translates a stable facade error code to an HTTP status.
func httpStatusFor(code string) int {
	switch code {
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeAlreadyExists, engine.CodeBusy:
		return http.StatusConflict
	case engine.CodeUnsatisfiedDeps, engine.CodeValidation, engine.CodePermanent:
		return http.StatusUnprocessableEntity
	case engine.CodeCooldown:
		return http.StatusTooManyRequests
	case engine.CodeCancelled:
		return http.StatusConflict
	case engine.CodeAllFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the structured error response for a facade error.
func (s *Server) respondError(c *gin.Context, err error) {
	code := engine.CodeFor(err)
	status := httpStatusFor(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("Unexpected error", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}

// respondBadRequest rejects malformed input before it reaches the facade.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: "bad_request", Message: message})
}
