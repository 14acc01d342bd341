package events

import "testing"

func TestAppendAndRecent(t *testing.T) {
	l := NewLog(4)
	l.Append(ToolCallStarted, ToolCallPayload{Tool: "bash_command"})
	l.Append(ToolCallFinished, ToolCallPayload{Tool: "bash_command", DurationMS: 12})

	got := l.Recent(0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Type != ToolCallStarted || got[1].Type != ToolCallFinished {
		t.Fatalf("order wrong: %v then %v", got[0].Type, got[1].Type)
	}
}

func TestRingEvictsOldest(t *testing.T) {
	l := NewLog(3)
	for _, name := range []string{"a", "b", "c", "d"} {
		l.Append(ToolCallStarted, ToolCallPayload{Tool: name})
	}

	got := l.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	first := got[0].Payload.(ToolCallPayload)
	last := got[2].Payload.(ToolCallPayload)
	if first.Tool != "b" || last.Tool != "d" {
		t.Fatalf("window = %s..%s, want b..d", first.Tool, last.Tool)
	}
}

func TestRecentLimit(t *testing.T) {
	l := NewLog(8)
	for i := 0; i < 5; i++ {
		l.Append(TaskStarted, TaskPayload{TaskID: int64(i)})
	}

	got := l.Recent(2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Payload.(TaskPayload).TaskID != 4 {
		t.Fatalf("last task id = %v, want 4", got[1].Payload)
	}
}
