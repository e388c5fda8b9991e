package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusTransitions(t *testing.T) {
	cases := []struct {
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{TaskStatusPending, TaskStatusInProgress, true},
		{TaskStatusPending, TaskStatusCompleted, true},
		{TaskStatusPending, TaskStatusRejected, true},
		{TaskStatusInProgress, TaskStatusCompleted, true},
		{TaskStatusInProgress, TaskStatusRejected, true},

		{TaskStatusInProgress, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusInProgress, false},
		{TaskStatusCompleted, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusRejected, false},
		{TaskStatusRejected, TaskStatusCompleted, false},
		{TaskStatusRejected, TaskStatusPending, false},
		{TaskStatusRejected, TaskStatusInProgress, false},
		{TaskStatusPending, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"transition %s -> %s", tc.from, tc.to)
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.Terminal())
	assert.False(t, TaskStatusInProgress.Terminal())
	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusRejected.Terminal())
}

func TestTaskStatusValid(t *testing.T) {
	assert.True(t, TaskStatusPending.Valid())
	assert.True(t, TaskStatusRejected.Valid())
	assert.False(t, TaskStatus("archived").Valid())
	assert.False(t, TaskStatus("").Valid())
}

func TestWorkflowStepLookup(t *testing.T) {
	wf := &Workflow{
		Steps: []WorkflowStep{
			{ID: "s1", Name: "Review", Order: 1},
			{ID: "s2", Name: "Sign-off", Order: 2},
		},
	}

	step := wf.Step("s2")
	if assert.NotNil(t, step) {
		assert.Equal(t, "Sign-off", step.Name)
	}
	assert.Nil(t, wf.Step("missing"))
}
