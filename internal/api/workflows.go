package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"neokatalyst/backend/internal/services"
)

// CreateWorkflow defines a new workflow in draft status
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	tenantID, identity, err := caller(c)
	if err != nil {
		return err
	}

	var in services.DefineWorkflowInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	workflow, err := s.Workflows.DefineWorkflow(c.Request().Context(), tenantID, identity, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, workflow)
}

// ListWorkflows returns the tenant's workflows, optionally filtered by creator
// (GET /api/v1/workflows?created_by=...)
func (s *Server) ListWorkflows(c echo.Context) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return err
	}

	workflows, err := s.Workflows.ListWorkflows(c.Request().Context(), tenantID, c.QueryParam("created_by"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns a single workflow
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return err
	}

	workflow, err := s.Workflows.GetWorkflow(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, workflow)
}

// ActivateWorkflow transitions a workflow from draft to active
// (POST /api/v1/workflows/:id/activate)
func (s *Server) ActivateWorkflow(c echo.Context) error {
	tenantID, identity, err := caller(c)
	if err != nil {
		return err
	}

	workflow, err := s.Workflows.ActivateWorkflow(c.Request().Context(), tenantID, c.Param("id"), identity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, workflow)
}

// WorkflowProgress returns the derived per-step approval progress
// (GET /api/v1/workflows/:id/progress)
func (s *Server) WorkflowProgress(c echo.Context) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return err
	}

	progress, err := s.Workflows.WorkflowProgress(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}
