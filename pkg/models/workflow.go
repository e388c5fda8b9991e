// Package models defines the domain models for the process service
package models

import (
	"time"
)

// WorkflowStatus represents the lifecycle status of a workflow definition
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"
	WorkflowStatusActive    WorkflowStatus = "active"
	WorkflowStatusPaused    WorkflowStatus = "paused"
	WorkflowStatusCompleted WorkflowStatus = "completed"
)

// WorkflowStep represents a single step in a workflow. Steps are embedded in
// their parent workflow record and only exist as part of it.
type WorkflowStep struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       *string `json:"description,omitempty"`
	AssigneeID        *string `json:"assignee_id,omitempty"`
	RequiredApprovals int     `json:"required_approvals"`
	Order             int     `json:"order"`
}

// Workflow represents a named, ordered sequence of steps describing a
// business process.
type Workflow struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	Name        string         `json:"name" db:"name"`
	Description *string        `json:"description,omitempty" db:"description"`
	Steps       []WorkflowStep `json:"steps" db:"steps"`
	Status      WorkflowStatus `json:"status" db:"status"`
	CreatedBy   string         `json:"created_by" db:"created_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// Step returns the step with the given id, or nil if the workflow has no
// such step.
func (w *Workflow) Step(stepID string) *WorkflowStep {
	for i := range w.Steps {
		if w.Steps[i].ID == stepID {
			return &w.Steps[i]
		}
	}
	return nil
}

// StepProgress reports how far a single step is towards its approval
// threshold.
type StepProgress struct {
	StepID            string `json:"step_id"`
	Name              string `json:"name"`
	Order             int    `json:"order"`
	RequiredApprovals int    `json:"required_approvals"`
	CompletedTasks    int    `json:"completed_tasks"`
	TotalTasks        int    `json:"total_tasks"`
	Satisfied         bool   `json:"satisfied"`
}

// WorkflowProgress is the derived view of a workflow: per-step approval
// progress plus overall completion. It is computed from task records, never
// stored.
type WorkflowProgress struct {
	WorkflowID string         `json:"workflow_id"`
	Status     WorkflowStatus `json:"status"`
	Steps      []StepProgress `json:"steps"`
	Completed  bool           `json:"completed"`
}
