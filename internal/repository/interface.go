package repository

import (
	"context"
	"errors"
	"time"

	"neokatalyst/backend/pkg/models"
)

// ErrNotFound is returned when a record does not exist. Callers map it to
// their own error taxonomy; the repository stays free of HTTP concerns.
var ErrNotFound = errors.New("record not found")

// Repository is the persistence contract for the process service. Every
// status change goes through a conditional update keyed on the expected
// current status so concurrent writers have exactly one winner.
type Repository interface {
	Ping(ctx context.Context) error

	// Tenants
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error

	// Workflows
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, tenantID, createdBy string) ([]*models.Workflow, error)
	// SetWorkflowStatus transitions a workflow from expected to next and
	// reports whether any row matched. A false return means the stored
	// status was no longer expected (or the row is gone).
	SetWorkflowStatus(ctx context.Context, tenantID, id string, expected, next models.WorkflowStatus) (bool, error)

	// Tasks
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, tenantID, id string) (*models.Task, error)
	ListTasksByAssignee(ctx context.Context, tenantID, assigneeID string) ([]*models.Task, error)
	ListTasksByWorkflow(ctx context.Context, tenantID, workflowID string) ([]*models.Task, error)
	ListTasksByStep(ctx context.Context, tenantID, workflowID, stepID string) ([]*models.Task, error)
	// SetTaskStatus is the compare-and-set for task transitions. completedAt
	// is written only when non-nil (entry into completed).
	SetTaskStatus(ctx context.Context, tenantID, id string, expected, next models.TaskStatus, completedAt *time.Time) (bool, error)

	// Aggregates
	DashboardStats(ctx context.Context, tenantID string) (*models.DashboardStats, error)
}
