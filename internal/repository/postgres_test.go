package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"neokatalyst/backend/internal/logging"
	"neokatalyst/backend/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool, logging.NewLogger())
	require.NoError(t, store.Migrate(ctx))

	tenant := &models.Tenant{Name: "acme", Domain: "acme.com"}
	require.NoError(t, store.CreateTenant(ctx, tenant))

	newWorkflow := func(status models.WorkflowStatus) *models.Workflow {
		now := time.Now().UTC().Truncate(time.Millisecond)
		return &models.Workflow{
			ID:       uuid.New().String(),
			TenantID: tenant.ID,
			Name:     "Invoice Approval",
			Steps: []models.WorkflowStep{
				{ID: uuid.New().String(), Name: "Review", RequiredApprovals: 2, Order: 1},
			},
			Status:    status,
			CreatedBy: "alice",
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	newTask := func(wf *models.Workflow, status models.TaskStatus) *models.Task {
		now := time.Now().UTC().Truncate(time.Millisecond)
		return &models.Task{
			ID:         uuid.New().String(),
			TenantID:   tenant.ID,
			WorkflowID: wf.ID,
			StepID:     wf.Steps[0].ID,
			Title:      "Review invoice",
			AssigneeID: "bob",
			Status:     status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	t.Run("tenant lookup", func(t *testing.T) {
		got, err := store.GetTenantByDomain(ctx, "acme.com")
		assert.NoError(t, err)
		assert.Equal(t, tenant.ID, got.ID)

		_, err = store.GetTenantByDomain(ctx, "unknown.example")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("workflow roundtrip with embedded steps", func(t *testing.T) {
		wf := newWorkflow(models.WorkflowStatusDraft)
		require.NoError(t, store.CreateWorkflow(ctx, wf))

		got, err := store.GetWorkflow(ctx, tenant.ID, wf.ID)
		assert.NoError(t, err)
		assert.Equal(t, wf.Name, got.Name)
		assert.Equal(t, models.WorkflowStatusDraft, got.Status)
		require.Len(t, got.Steps, 1)
		assert.Equal(t, wf.Steps[0].ID, got.Steps[0].ID)
		assert.Equal(t, 2, got.Steps[0].RequiredApprovals)

		_, err = store.GetWorkflow(ctx, tenant.ID, uuid.New().String())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("workflows are tenant scoped", func(t *testing.T) {
		other := &models.Tenant{Name: "rival", Domain: "rival.com"}
		require.NoError(t, store.CreateTenant(ctx, other))

		wf := newWorkflow(models.WorkflowStatusDraft)
		require.NoError(t, store.CreateWorkflow(ctx, wf))

		_, err := store.GetWorkflow(ctx, other.ID, wf.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("conditional workflow activation has one winner", func(t *testing.T) {
		wf := newWorkflow(models.WorkflowStatusDraft)
		require.NoError(t, store.CreateWorkflow(ctx, wf))

		ok, err := store.SetWorkflowStatus(ctx, tenant.ID, wf.ID,
			models.WorkflowStatusDraft, models.WorkflowStatusActive)
		assert.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SetWorkflowStatus(ctx, tenant.ID, wf.ID,
			models.WorkflowStatusDraft, models.WorkflowStatusActive)
		assert.NoError(t, err)
		assert.False(t, ok, "second activation must not match any row")
	})

	t.Run("task roundtrip and filters", func(t *testing.T) {
		wf := newWorkflow(models.WorkflowStatusActive)
		require.NoError(t, store.CreateWorkflow(ctx, wf))

		task := newTask(wf, models.TaskStatusPending)
		require.NoError(t, store.CreateTask(ctx, task))

		got, err := store.GetTask(ctx, tenant.ID, task.ID)
		assert.NoError(t, err)
		assert.Equal(t, task.Title, got.Title)
		assert.Nil(t, got.CompletedAt)

		byAssignee, err := store.ListTasksByAssignee(ctx, tenant.ID, "bob")
		assert.NoError(t, err)
		assert.NotEmpty(t, byAssignee)

		byStep, err := store.ListTasksByStep(ctx, tenant.ID, wf.ID, wf.Steps[0].ID)
		assert.NoError(t, err)
		require.Len(t, byStep, 1)
		assert.Equal(t, task.ID, byStep[0].ID)

		byWorkflow, err := store.ListTasksByWorkflow(ctx, tenant.ID, wf.ID)
		assert.NoError(t, err)
		require.Len(t, byWorkflow, 1)
	})

	t.Run("task compare-and-set writes completed_at once", func(t *testing.T) {
		wf := newWorkflow(models.WorkflowStatusActive)
		require.NoError(t, store.CreateWorkflow(ctx, wf))
		task := newTask(wf, models.TaskStatusPending)
		require.NoError(t, store.CreateTask(ctx, task))

		completedAt := time.Now().UTC().Truncate(time.Millisecond)
		ok, err := store.SetTaskStatus(ctx, tenant.ID, task.ID,
			models.TaskStatusPending, models.TaskStatusCompleted, &completedAt)
		assert.NoError(t, err)
		assert.True(t, ok)

		got, err := store.GetTask(ctx, tenant.ID, task.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.WithinDuration(t, completedAt, *got.CompletedAt, time.Second)
	})

	t.Run("racing task transitions have exactly one winner", func(t *testing.T) {
		wf := newWorkflow(models.WorkflowStatusActive)
		require.NoError(t, store.CreateWorkflow(ctx, wf))
		task := newTask(wf, models.TaskStatusPending)
		require.NoError(t, store.CreateTask(ctx, task))

		results := make([]bool, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			completedAt := time.Now().UTC()
			ok, err := store.SetTaskStatus(ctx, tenant.ID, task.ID,
				models.TaskStatusPending, models.TaskStatusCompleted, &completedAt)
			assert.NoError(t, err)
			results[0] = ok
		}()
		go func() {
			defer wg.Done()
			ok, err := store.SetTaskStatus(ctx, tenant.ID, task.ID,
				models.TaskStatusPending, models.TaskStatusRejected, nil)
			assert.NoError(t, err)
			results[1] = ok
		}()
		wg.Wait()

		assert.NotEqual(t, results[0], results[1], "exactly one of the racing updates must win")

		got, err := store.GetTask(ctx, tenant.ID, task.ID)
		assert.NoError(t, err)
		assert.True(t, got.Status.Terminal())
		if got.Status == models.TaskStatusCompleted {
			assert.NotNil(t, got.CompletedAt)
		} else {
			assert.Nil(t, got.CompletedAt)
		}
	})

	t.Run("dashboard stats", func(t *testing.T) {
		stats, err := store.DashboardStats(ctx, tenant.ID)
		assert.NoError(t, err)
		assert.Greater(t, stats.TotalWorkflows, 0)
		assert.Greater(t, stats.TotalTasks, 0)
		assert.Greater(t, stats.CompletedTasks, 0)
		assert.Greater(t, stats.CompletionRate, 0.0)
	})
}
