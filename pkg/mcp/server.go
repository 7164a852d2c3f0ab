package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/statflow/statflow/internal/engine"
	"github.com/statflow/statflow/internal/scheduler"
	"github.com/statflow/statflow/internal/store"
)

// ServerDeps holds the dependencies for creating a StatflowServer.
type ServerDeps struct {
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
	Store     store.Store
	Logger    *slog.Logger
}

// StatflowServer wraps an MCP server with workflow tool handlers.
type StatflowServer struct {
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	store     store.Store
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewStatflowServer creates a StatflowServer with all tools registered.
func NewStatflowServer(deps ServerDeps) *StatflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &StatflowServer{
		engine:    deps.Engine,
		scheduler: deps.Scheduler,
		store:     deps.Store,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"statflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Statflow executes statistical analysis workflows. Use statflow.define to create a workflow, statflow.add_step to build its step graph, statflow.run to execute it, statflow.status and statflow.history to observe executions, statflow.cancel to stop one, statflow.schedule for recurring runs, statflow.manage to reset or archive, and statflow.query to list workflows, steps, or events."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin
// closes.
func (s *StatflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *StatflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *StatflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: addStepTool(), Handler: s.handleAddStep},
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: cancelTool(), Handler: s.handleCancel},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: historyTool(), Handler: s.handleHistory},
		{Tool: scheduleTool(), Handler: s.handleSchedule},
		{Tool: manageTool(), Handler: s.handleManage},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func defineTool() mcp.Tool {
	return mcp.NewTool("statflow.define",
		mcp.WithDescription("Create a new analysis workflow in draft status"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the workflow")),
		mcp.WithString("dataset_id", mcp.Description("Dataset the workflow analyzes")),
		mcp.WithBoolean("is_public", mcp.Description("Whether other users may view the workflow")),
		mcp.WithObject("metadata", mcp.Description("Free-form workflow metadata")),
	)
}

func addStepTool() mcp.Tool {
	return mcp.NewTool("statflow.add_step",
		mcp.WithDescription("Add a step to a workflow. Steps run in ascending position order"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Target workflow")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller; must own the workflow")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Step name")),
		mcp.WithString("step_type", mcp.Required(),
			mcp.Enum("data_preprocessing", "visualization", "statistical_test", "machine_learning",
				"advanced_statistics", "time_series", "bayesian", "report_generation"),
			mcp.Description("Analysis type the step performs"),
		),
		mcp.WithNumber("position", mcp.Description("Execution order (ties break by insertion order)")),
		mcp.WithObject("configuration", mcp.Description("Step configuration, validated against the analyzer's schema")),
		mcp.WithArray("depends_on", mcp.Description("IDs of steps that must complete first")),
		mcp.WithString("condition", mcp.Description("Optional CEL expression; the step is skipped when it evaluates to false")),
		mcp.WithBoolean("is_required", mcp.Description("Whether a failure aborts the workflow (default true)")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Per-step timeout budget (default 3600)")),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("statflow.run",
		mcp.WithDescription("Start executing a workflow asynchronously"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Workflow to execute")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller; must own the workflow or the workflow must be public")),
		mcp.WithNumber("start_from_index", mcp.Description("Step index to start from (default 0)")),
	)
}

func cancelTool() mcp.Tool {
	return mcp.NewTool("statflow.cancel",
		mcp.WithDescription("Cancel a running execution by execution ID or workflow ID"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Execution ID or workflow ID")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller; must own the workflow or have started the run")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("statflow.status",
		mcp.WithDescription("Get the status of an execution, live or finished"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution ID, or workflow ID for the live run")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("statflow.history",
		mcp.WithDescription("List a user's finished executions, newest first"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User whose history to list")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 100)")),
	)
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("statflow.schedule",
		mcp.WithDescription("Manage recurring workflow runs"),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("create", "delete", "list"),
			mcp.Description("What to do"),
		),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller")),
		mcp.WithString("workflow_id", mcp.Description("Workflow to schedule (create)")),
		mcp.WithString("cron", mcp.Description("Standard 5-field cron expression (create)")),
		mcp.WithString("schedule_id", mcp.Description("Schedule to delete (delete)")),
	)
}

func manageTool() mcp.Tool {
	return mcp.NewTool("statflow.manage",
		mcp.WithDescription("Reset a workflow for another run, or archive it"),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("reset", "archive"),
			mcp.Description("What to do"),
		),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Target workflow")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller; must own the workflow")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("statflow.query",
		mcp.WithDescription("Query workflows, steps, or events"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("workflows", "steps", "events"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Caller")),
		mcp.WithObject("filter", mcp.Description("Filter criteria (workflow_id, since, limit)")),
	)
}
