// Package services implements the workflow/task lifecycle and approval
// model on top of the repository layer.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"neokatalyst/backend/internal/logging"
	"neokatalyst/backend/internal/repository"
	"neokatalyst/backend/pkg/models"
)

// StepInput describes one step of a workflow being defined.
type StepInput struct {
	Name              string  `json:"name"`
	Description       *string `json:"description,omitempty"`
	AssigneeID        *string `json:"assignee_id,omitempty"`
	RequiredApprovals int     `json:"required_approvals"`
	Order             int     `json:"order"`
}

// DefineWorkflowInput is the payload for creating a workflow definition.
type DefineWorkflowInput struct {
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Steps       []StepInput `json:"steps"`
}

// CreateTaskInput is the payload for instantiating a task against a step.
type CreateTaskInput struct {
	WorkflowID  string     `json:"workflow_id"`
	StepID      string     `json:"step_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// WorkflowService owns the workflow catalog, task instantiation, the task
// lifecycle state machine and derived-status recomputation.
type WorkflowService struct {
	repo   repository.Repository
	logger *logging.Logger
	now    func() time.Time

	transitions         metric.Int64Counter
	workflowCompletions metric.Int64Counter
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(repo repository.Repository, logger *logging.Logger) *WorkflowService {
	meter := otel.Meter("neokatalyst/backend/workflow")
	transitions, _ := meter.Int64Counter("workflow.task.transitions",
		metric.WithDescription("Number of applied task status transitions"))
	completions, _ := meter.Int64Counter("workflow.completions",
		metric.WithDescription("Number of workflows derived as completed"))

	return &WorkflowService{
		repo:                repo,
		logger:              logger,
		now:                 func() time.Time { return time.Now().UTC() },
		transitions:         transitions,
		workflowCompletions: completions,
	}
}

// DefineWorkflow validates and persists a new workflow definition in draft
// status. No tasks are instantiated.
func (s *WorkflowService) DefineWorkflow(ctx context.Context, tenantID string, actor *models.Identity, in DefineWorkflowInput) (*models.Workflow, error) {
	if in.Name == "" {
		return nil, &ValidationError{Detail: "workflow name is required"}
	}
	if len(in.Steps) == 0 {
		return nil, &ValidationError{Detail: "workflow must have at least one step"}
	}

	seenOrders := make(map[int]bool, len(in.Steps))
	steps := make([]models.WorkflowStep, 0, len(in.Steps))
	for _, st := range in.Steps {
		if st.Name == "" {
			return nil, &ValidationError{Detail: "step name is required"}
		}
		if st.Order <= 0 {
			return nil, &ValidationError{Detail: fmt.Sprintf("step %q has non-positive order %d", st.Name, st.Order)}
		}
		if seenOrders[st.Order] {
			return nil, &ValidationError{Detail: fmt.Sprintf("duplicate step order %d", st.Order)}
		}
		seenOrders[st.Order] = true

		approvals := st.RequiredApprovals
		if approvals == 0 {
			approvals = 1
		}
		if approvals < 1 {
			return nil, &ValidationError{Detail: fmt.Sprintf("step %q requires a positive approval count", st.Name)}
		}

		steps = append(steps, models.WorkflowStep{
			ID:                uuid.New().String(),
			Name:              st.Name,
			Description:       st.Description,
			AssigneeID:        st.AssigneeID,
			RequiredApprovals: approvals,
			Order:             st.Order,
		})
	}

	now := s.now()
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        in.Name,
		Description: in.Description,
		Steps:       steps,
		Status:      models.WorkflowStatusDraft,
		CreatedBy:   actor.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.Info("workflow defined", "id", workflow.ID, "name", workflow.Name, "steps", len(steps))
	return workflow, nil
}

// ActivateWorkflow transitions a workflow from draft to active. Only the
// owner or an admin may activate. Concurrent activations serialize through
// the repository's conditional update; the loser receives a conflict.
func (s *WorkflowService) ActivateWorkflow(ctx context.Context, tenantID, workflowID string, actor *models.Identity) (*models.Workflow, error) {
	workflow, err := s.getWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.CreatedBy != actor.Subject && !actor.IsAdmin() {
		return nil, &ForbiddenError{Detail: "only the workflow owner or an admin may activate it"}
	}
	if workflow.Status != models.WorkflowStatusDraft {
		return nil, &ConflictError{
			Detail:    "workflow is not in draft",
			Current:   string(workflow.Status),
			Attempted: string(models.WorkflowStatusActive),
		}
	}

	ok, err := s.repo.SetWorkflowStatus(ctx, tenantID, workflowID,
		models.WorkflowStatusDraft, models.WorkflowStatusActive)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race; report the state the winner left behind.
		current, err := s.getWorkflow(ctx, tenantID, workflowID)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{
			Detail:    "workflow status changed concurrently",
			Current:   string(current.Status),
			Attempted: string(models.WorkflowStatusActive),
		}
	}

	workflow.Status = models.WorkflowStatusActive
	workflow.UpdatedAt = s.now()
	s.logger.Info("workflow activated", "id", workflowID, "actor", actor.Subject)
	return workflow, nil
}

// GetWorkflow returns a single workflow.
func (s *WorkflowService) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*models.Workflow, error) {
	return s.getWorkflow(ctx, tenantID, workflowID)
}

// ListWorkflows returns the tenant's workflows, optionally filtered by
// creator.
func (s *WorkflowService) ListWorkflows(ctx context.Context, tenantID, createdBy string) ([]*models.Workflow, error) {
	return s.repo.ListWorkflows(ctx, tenantID, createdBy)
}

// CreateTask instantiates a pending task against a step of an active
// workflow. The assignee need not match the step's default assignee; steps
// may fan out to multiple reviewers.
func (s *WorkflowService) CreateTask(ctx context.Context, tenantID string, in CreateTaskInput) (*models.Task, error) {
	if in.Title == "" {
		return nil, &ValidationError{Detail: "task title is required"}
	}
	if in.AssigneeID == "" {
		return nil, &ValidationError{Detail: "task assignee is required"}
	}

	workflow, err := s.getWorkflow(ctx, tenantID, in.WorkflowID)
	if err != nil {
		return nil, err
	}
	if workflow.Status != models.WorkflowStatusActive {
		return nil, &ConflictError{
			Detail:    "tasks can only be created against an active workflow",
			Current:   string(workflow.Status),
			Attempted: string(models.WorkflowStatusActive),
		}
	}
	if workflow.Step(in.StepID) == nil {
		return nil, &NotFoundError{Resource: "step", ID: in.StepID}
	}

	now := s.now()
	task := &models.Task{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		WorkflowID:  in.WorkflowID,
		StepID:      in.StepID,
		Title:       in.Title,
		Description: in.Description,
		AssigneeID:  in.AssigneeID,
		Status:      models.TaskStatusPending,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("task created", "id", task.ID, "workflow", in.WorkflowID, "step", in.StepID, "assignee", in.AssigneeID)
	return task, nil
}

// GetTask returns a single task.
func (s *WorkflowService) GetTask(ctx context.Context, tenantID, taskID string) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, tenantID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "task", ID: taskID}
	}
	return task, err
}

// ListTasksByAssignee returns the tasks assigned to a user.
func (s *WorkflowService) ListTasksByAssignee(ctx context.Context, tenantID, assigneeID string) ([]*models.Task, error) {
	return s.repo.ListTasksByAssignee(ctx, tenantID, assigneeID)
}

// UpdateTaskStatus applies one task status transition. The actor must be
// the task's assignee or an admin; the transition must be legal per the
// state machine; and the write is a compare-and-set, so of two racing
// requests exactly one wins. The loser receives a ConflictError and may
// retry after re-reading — this service never retries on its own.
//
// Entering completed sets completed_at exactly once and triggers the lazy
// recomputation of the workflow's derived status. Entering rejected never
// touches completed_at.
func (s *WorkflowService) UpdateTaskStatus(ctx context.Context, tenantID, taskID string, next models.TaskStatus, actor *models.Identity) (*models.Task, error) {
	if !next.Valid() {
		return nil, &ValidationError{Detail: fmt.Sprintf("unknown task status %q", next)}
	}

	task, err := s.GetTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}

	if task.AssigneeID != actor.Subject && !actor.IsAdmin() {
		return nil, &ForbiddenError{Detail: "only the task assignee or an admin may update it"}
	}
	if !task.Status.CanTransitionTo(next) {
		return nil, &ConflictError{
			Detail:    fmt.Sprintf("illegal transition %s -> %s", task.Status, next),
			Current:   string(task.Status),
			Attempted: string(next),
		}
	}

	var completedAt *time.Time
	if next == models.TaskStatusCompleted {
		now := s.now()
		completedAt = &now
	}

	ok, err := s.repo.SetTaskStatus(ctx, tenantID, taskID, task.Status, next, completedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.GetTask(ctx, tenantID, taskID)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{
			Detail:    "task status changed concurrently",
			Current:   string(current.Status),
			Attempted: string(next),
		}
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(task.Status)),
		attribute.String("to", string(next)),
	))

	task.Status = next
	task.CompletedAt = completedAt
	task.UpdatedAt = s.now()

	if next == models.TaskStatusCompleted {
		if err := s.reconcileWorkflow(ctx, tenantID, task.WorkflowID); err != nil {
			// The task transition itself committed; derived status will be
			// recomputed on the next completion or progress read.
			s.logger.Error("workflow reconciliation failed", "workflow", task.WorkflowID, "error", err)
		}
	}

	return task, nil
}

// WorkflowProgress computes the derived per-step and overall status of a
// workflow from its task records.
func (s *WorkflowService) WorkflowProgress(ctx context.Context, tenantID, workflowID string) (*models.WorkflowProgress, error) {
	workflow, err := s.getWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasksByWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	return evaluateProgress(workflow, tasks), nil
}

// DashboardStats returns the tenant's aggregate workflow/task counts.
func (s *WorkflowService) DashboardStats(ctx context.Context, tenantID string) (*models.DashboardStats, error) {
	return s.repo.DashboardStats(ctx, tenantID)
}

// reconcileWorkflow recomputes the workflow's derived status after a task
// completion. Once every step is satisfied the workflow moves active ->
// completed through a conditional update, so concurrent completions agree
// on a single winner. The read is not transactional with the triggering
// write; that is fine because tasks never leave terminal states, making the
// derivation monotonic.
func (s *WorkflowService) reconcileWorkflow(ctx context.Context, tenantID, workflowID string) error {
	workflow, err := s.getWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return err
	}
	if workflow.Status != models.WorkflowStatusActive {
		return nil
	}

	tasks, err := s.repo.ListTasksByWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return err
	}
	if !evaluateProgress(workflow, tasks).Completed {
		return nil
	}

	ok, err := s.repo.SetWorkflowStatus(ctx, tenantID, workflowID,
		models.WorkflowStatusActive, models.WorkflowStatusCompleted)
	if err != nil {
		return err
	}
	if ok {
		s.workflowCompletions.Add(ctx, 1)
		s.logger.Info("workflow completed", "id", workflowID)
	}
	return nil
}

func (s *WorkflowService) getWorkflow(ctx context.Context, tenantID, workflowID string) (*models.Workflow, error) {
	workflow, err := s.repo.GetWorkflow(ctx, tenantID, workflowID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "workflow", ID: workflowID}
	}
	if err != nil {
		return nil, err
	}
	return workflow, nil
}
