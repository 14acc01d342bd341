package tools

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"mcpd/internal/task"
)

func newTaskToolForTest(t *testing.T) *BackgroundTaskTool {
	t.Helper()
	tracker := task.NewTracker(zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracker.Shutdown(ctx)
	})
	return NewBackgroundTaskTool(tracker)
}

func TestBackgroundTaskLifecycle(t *testing.T) {
	tool := newTaskToolForTest(t)
	ctx := context.Background()

	started := tool.Execute(ctx, map[string]any{"action": "start", "command": "sleep 30"})
	if !started.Success {
		t.Fatalf("start failed: %q", started.Error)
	}
	id := started.Data.(map[string]any)["task_id"].(int64)

	status := tool.Execute(ctx, map[string]any{"action": "status", "task_id": id})
	if !status.Success {
		t.Fatalf("status failed: %q", status.Error)
	}
	if rec := status.Data.(task.Record); rec.Status != task.StatusRunning {
		t.Fatalf("status = %q, want running", rec.Status)
	}

	killed := tool.Execute(ctx, map[string]any{"action": "kill", "task_id": id})
	if !killed.Success {
		t.Fatalf("kill failed: %q", killed.Error)
	}
	if rec := killed.Data.(task.Record); rec.Status != task.StatusKilled {
		t.Fatalf("status after kill = %q, want killed", rec.Status)
	}

	listed := tool.Execute(ctx, map[string]any{"action": "list"})
	if !listed.Success {
		t.Fatalf("list failed: %q", listed.Error)
	}
	tasks := listed.Data.(map[string]any)["tasks"].([]task.Summary)
	if len(tasks) != 1 {
		t.Fatalf("task count = %d, want 1", len(tasks))
	}
}

func TestBackgroundTaskStartRequiresCommand(t *testing.T) {
	tool := newTaskToolForTest(t)

	res := tool.Execute(context.Background(), map[string]any{"action": "start"})
	if res.Success {
		t.Fatal("expected start without command to fail")
	}
}

func TestBackgroundTaskUnknownAction(t *testing.T) {
	tool := newTaskToolForTest(t)

	res := tool.Execute(context.Background(), map[string]any{"action": "pause"})
	if res.Success {
		t.Fatal("expected unknown action to fail")
	}
}

func TestBackgroundTaskUnknownID(t *testing.T) {
	tool := newTaskToolForTest(t)

	res := tool.Execute(context.Background(), map[string]any{"action": "status", "task_id": 999})
	if res.Success {
		t.Fatal("expected unknown id to fail")
	}
}
