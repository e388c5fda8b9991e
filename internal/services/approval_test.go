package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"neokatalyst/backend/pkg/models"
)

func task(stepID string, status models.TaskStatus) *models.Task {
	return &models.Task{StepID: stepID, Status: status}
}

func TestStepSatisfied(t *testing.T) {
	step := &models.WorkflowStep{ID: "s1", RequiredApprovals: 2}

	t.Run("no tasks is never satisfied", func(t *testing.T) {
		assert.False(t, StepSatisfied(step, nil))
	})

	t.Run("both completed satisfies threshold of two", func(t *testing.T) {
		tasks := []*models.Task{
			task("s1", models.TaskStatusCompleted),
			task("s1", models.TaskStatusCompleted),
		}
		assert.True(t, StepSatisfied(step, tasks))
	})

	t.Run("one completed is not enough", func(t *testing.T) {
		tasks := []*models.Task{
			task("s1", models.TaskStatusCompleted),
			task("s1", models.TaskStatusPending),
		}
		assert.False(t, StepSatisfied(step, tasks))
	})

	t.Run("rejection does not count and does not block", func(t *testing.T) {
		tasks := []*models.Task{
			task("s1", models.TaskStatusCompleted),
			task("s1", models.TaskStatusRejected),
		}
		assert.False(t, StepSatisfied(step, tasks))

		// a third assignee can still independently complete theirs
		tasks = append(tasks, task("s1", models.TaskStatusCompleted))
		assert.True(t, StepSatisfied(step, tasks))
	})

	t.Run("over-satisfaction is permitted", func(t *testing.T) {
		tasks := []*models.Task{
			task("s1", models.TaskStatusCompleted),
			task("s1", models.TaskStatusCompleted),
			task("s1", models.TaskStatusCompleted),
		}
		assert.True(t, StepSatisfied(step, tasks))
	})
}

func TestEvaluateProgress(t *testing.T) {
	wf := &models.Workflow{
		ID:     "wf-1",
		Status: models.WorkflowStatusActive,
		Steps: []models.WorkflowStep{
			{ID: "s1", Name: "a", Order: 1, RequiredApprovals: 1},
			{ID: "s2", Name: "b", Order: 2, RequiredApprovals: 2},
			{ID: "s3", Name: "c", Order: 3, RequiredApprovals: 1},
		},
	}

	t.Run("two of three steps satisfied leaves workflow incomplete", func(t *testing.T) {
		tasks := []*models.Task{
			task("s1", models.TaskStatusCompleted),
			task("s2", models.TaskStatusCompleted),
			task("s2", models.TaskStatusCompleted),
		}
		p := evaluateProgress(wf, tasks)
		assert.False(t, p.Completed)
		assert.True(t, p.Steps[0].Satisfied)
		assert.True(t, p.Steps[1].Satisfied)
		assert.False(t, p.Steps[2].Satisfied)
		assert.Equal(t, 2, p.Steps[1].CompletedTasks)
		assert.Equal(t, 2, p.Steps[1].TotalTasks)
	})

	t.Run("all steps satisfied completes workflow", func(t *testing.T) {
		tasks := []*models.Task{
			task("s1", models.TaskStatusCompleted),
			task("s2", models.TaskStatusCompleted),
			task("s2", models.TaskStatusCompleted),
			task("s3", models.TaskStatusCompleted),
		}
		assert.True(t, evaluateProgress(wf, tasks).Completed)
	})

	t.Run("workflow with no steps is not completed", func(t *testing.T) {
		empty := &models.Workflow{ID: "wf-2", Steps: nil}
		assert.False(t, evaluateProgress(empty, nil).Completed)
	})
}
