package services

import "neokatalyst/backend/pkg/models"

// CompletedCount returns the number of tasks in the completed status.
func CompletedCount(tasks []*models.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == models.TaskStatusCompleted {
			n++
		}
	}
	return n
}

// StepSatisfied reports whether a step has met its approval threshold given
// its task instances. A step with no tasks is never satisfied. Rejected
// tasks do not block the step; only the completed count is judged, so
// over-satisfaction and partial rejection are both fine.
func StepSatisfied(step *models.WorkflowStep, tasks []*models.Task) bool {
	return CompletedCount(tasks) >= step.RequiredApprovals && len(tasks) > 0
}

// evaluateProgress computes the derived per-step and overall view of a
// workflow from its task records. Pure so it stays trivially testable.
func evaluateProgress(workflow *models.Workflow, tasks []*models.Task) *models.WorkflowProgress {
	byStep := make(map[string][]*models.Task)
	for _, t := range tasks {
		byStep[t.StepID] = append(byStep[t.StepID], t)
	}

	progress := &models.WorkflowProgress{
		WorkflowID: workflow.ID,
		Status:     workflow.Status,
		Completed:  len(workflow.Steps) > 0,
	}
	for i := range workflow.Steps {
		step := &workflow.Steps[i]
		stepTasks := byStep[step.ID]
		satisfied := StepSatisfied(step, stepTasks)
		progress.Steps = append(progress.Steps, models.StepProgress{
			StepID:            step.ID,
			Name:              step.Name,
			Order:             step.Order,
			RequiredApprovals: step.RequiredApprovals,
			CompletedTasks:    CompletedCount(stepTasks),
			TotalTasks:        len(stepTasks),
			Satisfied:         satisfied,
		})
		if !satisfied {
			progress.Completed = false
		}
	}
	return progress
}
