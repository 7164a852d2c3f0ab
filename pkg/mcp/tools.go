package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/statflow/statflow/internal/engine"
	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// handleDefine creates a workflow.
func (s *StatflowServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	createReq := engine.CreateWorkflowRequest{
		Name:      name,
		UserID:    userID,
		DatasetID: req.GetString("dataset_id", ""),
		Public:    req.GetBool("is_public", false),
	}
	if metadata := mcp.ParseStringMap(req, "metadata", nil); metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			createReq.Metadata = raw
		}
	}

	wf, createErr := s.engine.CreateWorkflow(ctx, createReq)
	if createErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create workflow: %v", createErr)), nil
	}
	return marshalResult(wf)
}

// handleAddStep appends a step to a workflow.
func (s *StatflowServer) handleAddStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	stepType, err := req.RequireString("step_type")
	if err != nil {
		return mcp.NewToolResultError("step_type is required"), nil
	}

	addReq := engine.AddStepRequest{
		Name:           name,
		StepType:       schema.StepType(stepType),
		Position:       req.GetInt("position", 0),
		Condition:      req.GetString("condition", ""),
		TimeoutSeconds: req.GetInt("timeout_seconds", 0),
	}
	if config := mcp.ParseStringMap(req, "configuration", nil); config != nil {
		if raw, err := json.Marshal(config); err == nil {
			addReq.Configuration = raw
		}
	}
	if deps, ok := req.GetArguments()["depends_on"].([]any); ok {
		for _, d := range deps {
			if id, ok := d.(string); ok {
				addReq.DependsOn = append(addReq.DependsOn, id)
			}
		}
	}
	if _, present := req.GetArguments()["is_required"]; present {
		required := req.GetBool("is_required", true)
		addReq.IsRequired = &required
	}

	step, addErr := s.engine.AddStep(ctx, workflowID, userID, addReq)
	if addErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add step: %v", addErr)), nil
	}
	return marshalResult(step)
}

// handleRun starts an execution.
func (s *StatflowServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	rec, runErr := s.engine.StartExecutionFrom(ctx, workflowID, userID, req.GetInt("start_from_index", 0))
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start execution: %v", runErr)), nil
	}
	return marshalResult(rec)
}

// handleCancel cancels a running execution.
func (s *StatflowServer) handleCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	if cancelErr := s.engine.CancelExecution(ctx, id, userID); cancelErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cancel failed: %v", cancelErr)), nil
	}
	return marshalResult(map[string]any{"ok": true, "id": id})
}

// handleStatus resolves an execution's status.
func (s *StatflowServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	executionID, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}
	return marshalResult(s.engine.GetExecutionStatus(ctx, executionID))
}

// handleHistory lists finished executions for a user.
func (s *StatflowServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	limit := req.GetInt("limit", 0)

	records, histErr := s.engine.GetExecutionHistory(ctx, userID, limit)
	if histErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", histErr)), nil
	}
	return marshalResult(map[string]any{"executions": records})
}

// handleSchedule creates, deletes, or lists recurring runs.
func (s *StatflowServer) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	switch action {
	case "create":
		workflowID := req.GetString("workflow_id", "")
		cronExpr := req.GetString("cron", "")
		if workflowID == "" || cronExpr == "" {
			return mcp.NewToolResultError("create requires workflow_id and cron"), nil
		}
		run, schedErr := s.scheduler.Schedule(ctx, workflowID, userID, cronExpr)
		if schedErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("schedule failed: %v", schedErr)), nil
		}
		return marshalResult(run)

	case "delete":
		scheduleID := req.GetString("schedule_id", "")
		if scheduleID == "" {
			return mcp.NewToolResultError("delete requires schedule_id"), nil
		}
		if delErr := s.scheduler.Unschedule(ctx, scheduleID, userID); delErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unschedule failed: %v", delErr)), nil
		}
		return marshalResult(map[string]any{"ok": true, "schedule_id": scheduleID})

	case "list":
		runs, listErr := s.store.ListScheduledRuns(ctx, store.ScheduledRunFilter{UserID: userID})
		if listErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", listErr)), nil
		}
		return marshalResult(map[string]any{"schedules": runs})

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action: %s", action)), nil
	}
}

// handleManage resets or archives a workflow.
func (s *StatflowServer) handleManage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	var actionErr error
	switch action {
	case "reset":
		actionErr = s.engine.ResetWorkflow(ctx, workflowID, userID)
	case "archive":
		actionErr = s.engine.ArchiveWorkflow(ctx, workflowID, userID)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action: %s", action)), nil
	}
	if actionErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, actionErr)), nil
	}
	return marshalResult(map[string]any{"ok": true, "action": action, "workflow_id": workflowID})
}

// handleQuery lists workflows, steps, or events.
func (s *StatflowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "workflows":
		workflows, listErr := s.engine.ListWorkflows(ctx, userID, extractInt(filter, "limit", 50), 0)
		if listErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", listErr)), nil
		}
		return marshalResult(map[string]any{"workflows": workflows})

	case "steps":
		workflowID, _ := filter["workflow_id"].(string)
		if workflowID == "" {
			return mcp.NewToolResultError("step query requires 'workflow_id' in filter"), nil
		}
		_, steps, getErr := s.engine.GetWorkflow(ctx, workflowID, userID)
		if getErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", getErr)), nil
		}
		return marshalResult(map[string]any{"steps": steps})

	case "events":
		workflowID, _ := filter["workflow_id"].(string)
		if workflowID == "" {
			return mcp.NewToolResultError("event query requires 'workflow_id' in filter"), nil
		}
		since := int64(extractInt(filter, "since", 0))
		events, evErr := s.engine.GetEvents(ctx, workflowID, userID, since)
		if evErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", evErr)), nil
		}
		return marshalResult(map[string]any{"events": events})

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Internal helpers ---

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
