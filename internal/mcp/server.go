package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"neokatalyst/backend/internal/auth"
	"neokatalyst/backend/internal/services"
	"neokatalyst/backend/pkg/models"
)

// Server exposes the workflow service as MCP tools. The HTTP mount sits
// behind the auth middleware, so tool handlers read the caller's tenant and
// identity from the request context.
type Server struct {
	mcpServer *server.MCPServer
	workflows *services.WorkflowService
}

func NewServer(workflows *services.WorkflowService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"neokatalyst Process Service",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the workflows of the caller's tenant"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"workflow_progress",
			mcp.WithDescription("Report per-step approval progress and overall completion of a workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleWorkflowProgress,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_task",
			mcp.WithDescription("Instantiate a task against a step of an active workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The parent workflow ID")),
			mcp.WithString("step_id", mcp.Required(), mcp.Description("The step the task belongs to")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short task title")),
			mcp.WithString("assignee_id", mcp.Required(), mcp.Description("User the task is assigned to")),
		),
		s.handleCreateTask,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"update_task_status",
			mcp.WithDescription("Transition a task to a new status (pending, in_progress, completed, rejected)"),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("The ID of the task")),
			mcp.WithString("status", mcp.Required(), mcp.Description("The target status")),
		),
		s.handleUpdateTaskStatus,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, _, errResult := callerFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	workflows, err := s.workflows.ListWorkflows(ctx, tenantID, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflows)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleWorkflowProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, _, errResult := callerFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	progress, err := s.workflows.WorkflowProgress(ctx, tenantID, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute progress: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(progress)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, _, errResult := callerFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	in := services.CreateTaskInput{}
	if in.WorkflowID, ok = args["workflow_id"].(string); !ok || in.WorkflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}
	if in.StepID, ok = args["step_id"].(string); !ok || in.StepID == "" {
		return mcp.NewToolResultError("Missing required parameter: step_id"), nil
	}
	if in.Title, ok = args["title"].(string); !ok || in.Title == "" {
		return mcp.NewToolResultError("Missing required parameter: title"), nil
	}
	if in.AssigneeID, ok = args["assignee_id"].(string); !ok || in.AssigneeID == "" {
		return mcp.NewToolResultError("Missing required parameter: assignee_id"), nil
	}

	task, err := s.workflows.CreateTask(ctx, tenantID, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create task: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(task)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, identity, errResult := callerFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}
	taskID, ok := args["task_id"].(string)
	if !ok || taskID == "" {
		return mcp.NewToolResultError("Missing required parameter: task_id"), nil
	}
	status, ok := args["status"].(string)
	if !ok || status == "" {
		return mcp.NewToolResultError("Missing required parameter: status"), nil
	}

	task, err := s.workflows.UpdateTaskStatus(ctx, tenantID, taskID, models.TaskStatus(status), identity)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update task: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(task)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func callerFromContext(ctx context.Context) (string, *models.Identity, *mcp.CallToolResult) {
	tenantID := auth.TenantIDFrom(ctx)
	identity := auth.IdentityFrom(ctx)
	if tenantID == "" || identity == nil {
		return "", nil, mcp.NewToolResultError("Unauthenticated: no tenant in request context")
	}
	return tenantID, identity, nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
