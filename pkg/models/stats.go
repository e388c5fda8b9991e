package models

// DashboardStats is the aggregate overview served on the analytics
// dashboard.
type DashboardStats struct {
	TotalWorkflows     int     `json:"total_workflows"`
	ActiveWorkflows    int     `json:"active_workflows"`
	CompletedWorkflows int     `json:"completed_workflows"`
	TotalTasks         int     `json:"total_tasks"`
	CompletedTasks     int     `json:"completed_tasks"`
	CompletionRate     float64 `json:"completion_rate"`
}
