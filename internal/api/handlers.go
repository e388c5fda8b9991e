// Package api contains the HTTP handlers for the process service
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"neokatalyst/backend/internal/auth"
	"neokatalyst/backend/internal/services"
	"neokatalyst/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Workflows *services.WorkflowService
}

// NewServer creates a new Server.
func NewServer(workflows *services.WorkflowService) *Server {
	return &Server{Workflows: workflows}
}

// RegisterRoutes mounts all API handlers on the given (already
// authenticated) route group.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.POST("/workflows", s.CreateWorkflow)
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:id", s.GetWorkflow)
	g.POST("/workflows/:id/activate", s.ActivateWorkflow)
	g.GET("/workflows/:id/progress", s.WorkflowProgress)

	g.POST("/tasks", s.CreateTask)
	g.GET("/tasks", s.ListTasks)
	g.GET("/tasks/:id", s.GetTask)
	g.PUT("/tasks/:id/status", s.UpdateTaskStatus)

	g.GET("/analytics/dashboard", s.DashboardStats)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "neokatalyst",
		Version:   "1.0.0",
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance,omitempty"`
	Current   string `json:"current_state,omitempty"`
	Attempted string `json:"attempted_state,omitempty"`
}

// respondError maps a service error onto an RFC 7807 problem+json response.
func respondError(c echo.Context, err error) error {
	problem := ProblemDetails{
		Type:     "about:blank",
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   err.Error(),
		Instance: c.Request().URL.Path,
	}

	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError
	var forbiddenErr *services.ForbiddenError
	var conflictErr *services.ConflictError

	switch {
	case errors.As(err, &validationErr):
		problem.Title = "Validation Failed"
		problem.Status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		problem.Title = "Not Found"
		problem.Status = http.StatusNotFound
	case errors.As(err, &forbiddenErr):
		problem.Title = "Forbidden"
		problem.Status = http.StatusForbidden
	case errors.As(err, &conflictErr):
		problem.Title = "Conflict"
		problem.Status = http.StatusConflict
		problem.Current = conflictErr.Current
		problem.Attempted = conflictErr.Attempted
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(problem.Status, problem)
}

// caller extracts the tenant and identity placed in the context by the auth
// middleware. A missing identity means the route was mounted without
// RequireAuth, which is a wiring bug surfaced as 401.
func caller(c echo.Context) (string, *models.Identity, error) {
	ctx := c.Request().Context()
	tenantID := auth.TenantIDFrom(ctx)
	identity := auth.IdentityFrom(ctx)
	if tenantID == "" || identity == nil {
		return "", nil, echo.NewHTTPError(http.StatusUnauthorized, "missing identity in request context")
	}
	return tenantID, identity, nil
}
