package models

import (
	"time"
)

// TaskStatus represents the lifecycle status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusRejected   TaskStatus = "rejected"
)

// taskTransitions is the legal task status transition table. Completed and
// rejected are terminal: no transitions lead out of them.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCompleted, TaskStatusRejected},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusRejected},
	TaskStatusCompleted:  {},
	TaskStatusRejected:   {},
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// Terminal reports whether s permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return len(taskTransitions[s]) == 0 && s.Valid()
}

// CanTransitionTo reports whether a task in status s may move to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task represents a unit of work instantiated against a workflow step and
// assigned to one user. The workflow and step references are immutable after
// creation. Tasks are never deleted; rejection and reassignment are modeled
// as status transitions so the history stays auditable.
type Task struct {
	ID          string     `json:"id" db:"id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	WorkflowID  string     `json:"workflow_id" db:"workflow_id"`
	StepID      string     `json:"step_id" db:"step_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	AssigneeID  string     `json:"assignee_id" db:"assignee_id"`
	Status      TaskStatus `json:"status" db:"status"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
