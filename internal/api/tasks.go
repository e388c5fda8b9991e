package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"neokatalyst/backend/internal/services"
	"neokatalyst/backend/pkg/models"
)

// CreateTask instantiates a task against a step of an active workflow
// (POST /api/v1/tasks)
func (s *Server) CreateTask(c echo.Context) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return err
	}

	var in services.CreateTaskInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	task, err := s.Workflows.CreateTask(c.Request().Context(), tenantID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

// ListTasks returns the caller's tasks
// (GET /api/v1/tasks)
func (s *Server) ListTasks(c echo.Context) error {
	tenantID, identity, err := caller(c)
	if err != nil {
		return err
	}

	tasks, err := s.Workflows.ListTasksByAssignee(c.Request().Context(), tenantID, identity.Subject)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// GetTask returns a single task
// (GET /api/v1/tasks/:id)
func (s *Server) GetTask(c echo.Context) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return err
	}

	task, err := s.Workflows.GetTask(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus applies a task status transition
// (PUT /api/v1/tasks/:id/status)
func (s *Server) UpdateTaskStatus(c echo.Context) error {
	tenantID, identity, err := caller(c)
	if err != nil {
		return err
	}

	var body struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	task, err := s.Workflows.UpdateTaskStatus(c.Request().Context(), tenantID, c.Param("id"), body.Status, identity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// DashboardStats returns tenant-wide aggregate counts
// (GET /api/v1/analytics/dashboard)
func (s *Server) DashboardStats(c echo.Context) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return err
	}

	stats, err := s.Workflows.DashboardStats(c.Request().Context(), tenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
