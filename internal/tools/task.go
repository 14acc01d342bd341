package tools

import (
	"context"
	"strings"

	"mcpd/internal/task"
)

// BackgroundTaskTool exposes the task tracker's lifecycle operations as a
// single action-dispatched tool.
type BackgroundTaskTool struct {
	tracker *task.Tracker
}

// NewBackgroundTaskTool constructs the background_task tool.
func NewBackgroundTaskTool(tracker *task.Tracker) *BackgroundTaskTool {
	return &BackgroundTaskTool{tracker: tracker}
}

func (b *BackgroundTaskTool) Definition() Definition {
	return Definition{
		Name:        "background_task",
		Description: "Manage detached long-running processes: start, list, status, output, kill. Tasks run without shell interpretation and survive across requests, not restarts.",
		Category:    CategoryExecution,
		Params: map[string]ParamSpec{
			"action":  {Type: "string", Description: "Lifecycle operation", Enum: []string{"start", "list", "status", "output", "kill"}},
			"command": {Type: "string", Description: "Command to launch (start only)"},
			"task_id": {Type: "integer", Description: "Task id (status, output, kill)"},
		},
		Required: []string{"action"},
	}
}

type backgroundInput struct {
	Action  string `json:"action"`
	Command string `json:"command"`
	TaskID  int64  `json:"task_id"`
}

func (b *BackgroundTaskTool) Execute(ctx context.Context, args map[string]any) Result {
	var input backgroundInput
	if err := decodeArgs(args, &input); err != nil {
		return Fail("invalid arguments: %v", err)
	}

	switch input.Action {
	case "start":
		if strings.TrimSpace(input.Command) == "" {
			return Fail("command is required for start")
		}
		id, pid, err := b.tracker.Start(input.Command)
		if err != nil {
			return Fail("%v", err)
		}
		return Ok(map[string]any{"task_id": id, "pid": pid, "status": task.StatusRunning})
	case "list":
		return Ok(map[string]any{"tasks": b.tracker.List()})
	case "status":
		rec, err := b.tracker.Status(input.TaskID)
		if err != nil {
			return Fail("%v", err)
		}
		return Ok(rec)
	case "output":
		out, err := b.tracker.Output(input.TaskID)
		if err != nil {
			return Fail("%v", err)
		}
		return Ok(out)
	case "kill":
		rec, err := b.tracker.Kill(input.TaskID)
		if err != nil {
			return Fail("%v", err)
		}
		return Ok(rec)
	default:
		return Fail("unknown action %q", input.Action)
	}
}
