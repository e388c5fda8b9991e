package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"neokatalyst/backend/internal/logging"
	"neokatalyst/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of the Repository interface.
// Workflow steps are stored as a JSONB column on the workflow row; they are
// owned by the workflow and never addressed outside it.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *logging.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool, logger *logging.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetTenantByDomain retrieves a tenant by its email domain.
func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT id, name, domain, created_at, updated_at FROM tenants WHERE domain = $1",
		domain,
	).Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTenant inserts a new tenant, assigning an id and timestamps.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	_, err := s.db.Exec(ctx,
		"INSERT INTO tenants (id, name, domain, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		tenant.ID, tenant.Name, tenant.Domain, tenant.CreatedAt, tenant.UpdatedAt,
	)
	return err
}

// CreateWorkflow inserts a workflow with its embedded steps.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	steps, err := json.Marshal(workflow.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO workflows (id, tenant_id, name, description, steps, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		workflow.ID, workflow.TenantID, workflow.Name, workflow.Description, steps,
		workflow.Status, workflow.CreatedBy, workflow.CreatedAt, workflow.UpdatedAt,
	)
	return err
}

// GetWorkflow retrieves a workflow by id, scoped to a tenant.
func (s *PostgresStore) GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, description, steps, status, created_by, created_at, updated_at
		 FROM workflows WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanWorkflow(row)
}

// ListWorkflows returns the tenant's workflows, optionally filtered by
// creator.
func (s *PostgresStore) ListWorkflows(ctx context.Context, tenantID, createdBy string) ([]*models.Workflow, error) {
	query := `SELECT id, tenant_id, name, description, steps, status, created_by, created_at, updated_at
	          FROM workflows WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if createdBy != "" {
		query += " AND created_by = $2"
		args = append(args, createdBy)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// SetWorkflowStatus applies a conditional status transition. The UPDATE only
// matches while the stored status is still the expected one, so concurrent
// transitions serialize per workflow id.
func (s *PostgresStore) SetWorkflowStatus(ctx context.Context, tenantID, id string, expected, next models.WorkflowStatus) (bool, error) {
	tag, err := s.db.Exec(ctx,
		"UPDATE workflows SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4 AND status = $5",
		next, time.Now().UTC(), tenantID, id, expected,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CreateTask inserts a task record.
func (s *PostgresStore) CreateTask(ctx context.Context, task *models.Task) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO tasks (id, tenant_id, workflow_id, step_id, title, description, assignee_id, status, due_date, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		task.ID, task.TenantID, task.WorkflowID, task.StepID, task.Title, task.Description,
		task.AssigneeID, task.Status, task.DueDate, task.CompletedAt, task.CreatedAt, task.UpdatedAt,
	)
	return err
}

// GetTask retrieves a task by id, scoped to a tenant.
func (s *PostgresStore) GetTask(ctx context.Context, tenantID, id string) (*models.Task, error) {
	row := s.db.QueryRow(ctx,
		taskSelect+" WHERE tenant_id = $1 AND id = $2",
		tenantID, id,
	)
	return scanTask(row)
}

// ListTasksByAssignee returns a user's tasks within a tenant.
func (s *PostgresStore) ListTasksByAssignee(ctx context.Context, tenantID, assigneeID string) ([]*models.Task, error) {
	return s.listTasks(ctx,
		taskSelect+" WHERE tenant_id = $1 AND assignee_id = $2 ORDER BY created_at DESC",
		tenantID, assigneeID)
}

// ListTasksByWorkflow returns all tasks instantiated against a workflow.
func (s *PostgresStore) ListTasksByWorkflow(ctx context.Context, tenantID, workflowID string) ([]*models.Task, error) {
	return s.listTasks(ctx,
		taskSelect+" WHERE tenant_id = $1 AND workflow_id = $2 ORDER BY created_at",
		tenantID, workflowID)
}

// ListTasksByStep returns the sibling tasks of one workflow step.
func (s *PostgresStore) ListTasksByStep(ctx context.Context, tenantID, workflowID, stepID string) ([]*models.Task, error) {
	return s.listTasks(ctx,
		taskSelect+" WHERE tenant_id = $1 AND workflow_id = $2 AND step_id = $3 ORDER BY created_at",
		tenantID, workflowID, stepID)
}

// SetTaskStatus is the compare-and-set for task transitions. When two
// requests race on the same task exactly one UPDATE matches; the loser sees
// false and must re-read before retrying.
func (s *PostgresStore) SetTaskStatus(ctx context.Context, tenantID, id string, expected, next models.TaskStatus, completedAt *time.Time) (bool, error) {
	now := time.Now().UTC()
	var tag pgconn.CommandTag
	var err error
	if completedAt != nil {
		tag, err = s.db.Exec(ctx,
			"UPDATE tasks SET status = $1, completed_at = $2, updated_at = $3 WHERE tenant_id = $4 AND id = $5 AND status = $6",
			next, completedAt, now, tenantID, id, expected,
		)
	} else {
		tag, err = s.db.Exec(ctx,
			"UPDATE tasks SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4 AND status = $5",
			next, now, tenantID, id, expected,
		)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DashboardStats computes the tenant-wide aggregate counts for the
// analytics dashboard.
func (s *PostgresStore) DashboardStats(ctx context.Context, tenantID string) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	err := s.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM workflows WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM workflows WHERE tenant_id = $1 AND status = 'active'),
			(SELECT COUNT(*) FROM workflows WHERE tenant_id = $1 AND status = 'completed'),
			(SELECT COUNT(*) FROM tasks WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM tasks WHERE tenant_id = $1 AND status = 'completed')`,
		tenantID,
	).Scan(&stats.TotalWorkflows, &stats.ActiveWorkflows, &stats.CompletedWorkflows,
		&stats.TotalTasks, &stats.CompletedTasks)
	if err != nil {
		return nil, err
	}
	if stats.TotalTasks > 0 {
		stats.CompletionRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
	}
	return stats, nil
}

const taskSelect = `SELECT id, tenant_id, workflow_id, step_id, title, description, assignee_id, status, due_date, completed_at, created_at, updated_at FROM tasks`

func (s *PostgresStore) listTasks(ctx context.Context, query string, args ...interface{}) ([]*models.Task, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var wf models.Workflow
	var steps []byte
	err := row.Scan(&wf.ID, &wf.TenantID, &wf.Name, &wf.Description, &steps,
		&wf.Status, &wf.CreatedBy, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	return &wf, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.TenantID, &t.WorkflowID, &t.StepID, &t.Title, &t.Description,
		&t.AssigneeID, &t.Status, &t.DueDate, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
