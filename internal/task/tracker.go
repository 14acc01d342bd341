// Package task manages detached long-running processes with a lifecycle
// independent of the request/response cycle. State is in-memory only and
// lost on restart.
package task

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mcpd/internal/events"
	"mcpd/internal/execute"
	"mcpd/internal/security"
	"mcpd/internal/util"
)

// Status is the lifecycle state of a background task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusKilled
}

const (
	// MaxBufferBytes caps each task's stdout and stderr buffers.
	MaxBufferBytes = 1 << 20
	// SummaryCommandChars bounds the command shown in List summaries.
	SummaryCommandChars = 80

	termGrace = 2 * time.Second
	killGrace = 1 * time.Second
)

// Task is one tracked background process. Its fields are written by the
// starting goroutine, by the collector goroutine at exit, and read by
// request handlers; the embedded mutex serializes all of that.
type Task struct {
	mu sync.Mutex

	id       int64
	pid      int
	command  string
	status   Status
	stdout   *cappedBuffer
	stderr   *cappedBuffer
	exitCode *int
	started  time.Time
	finished time.Time
	killing  bool

	cmd  *exec.Cmd
	done chan struct{}
}

// Record is a point-in-time snapshot of a task.
type Record struct {
	ID         int64     `json:"task_id"`
	PID        int       `json:"pid"`
	Command    string    `json:"command"`
	Status     Status    `json:"status"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Summary is the compact view returned by List.
type Summary struct {
	ID      int64  `json:"task_id"`
	Command string `json:"command"`
	Status  Status `json:"status"`
}

// Output carries buffered output captured so far plus current status.
type Output struct {
	ID     int64  `json:"task_id"`
	Status Status `json:"status"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Tracker owns all background tasks for one server process.
type Tracker struct {
	mu       sync.RWMutex
	tasks    map[int64]*Task
	nextID   atomic.Int64
	logger   *zap.Logger
	activity *events.Log
}

// NewTracker constructs an empty Tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{tasks: make(map[int64]*Task), logger: logger}
}

// AttachActivity reports task transitions to the given event log. Must be
// called before the tracker starts tasks.
func (t *Tracker) AttachActivity(l *events.Log) {
	t.activity = l
}

func (t *Tracker) record(typ events.Type, payload events.TaskPayload) {
	if t.activity != nil {
		t.activity.Append(typ, payload)
	}
}

// Start validates and launches a command as a detached task. The command is
// tokenized into argv form with no shell interpretation. Start returns the
// task id and OS pid immediately; it never waits for completion.
func (t *Tracker) Start(command string) (int64, int, error) {
	if ok, reason := security.Check(command); !ok {
		return 0, 0, fmt.Errorf("command rejected: %s", reason)
	}
	argv, err := execute.Tokenize(command)
	if err != nil {
		return 0, 0, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return 0, 0, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return 0, 0, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}

	id := t.nextID.Add(1)
	tk := &Task{
		id:      id,
		pid:     cmd.Process.Pid,
		command: command,
		status:  StatusRunning,
		stdout:  newCappedBuffer(MaxBufferBytes),
		stderr:  newCappedBuffer(MaxBufferBytes),
		started: time.Now(),
		cmd:     cmd,
		done:    make(chan struct{}),
	}

	t.mu.Lock()
	t.tasks[id] = tk
	t.mu.Unlock()

	var streams sync.WaitGroup
	streams.Add(2)
	go drain(&streams, stdoutPipe, tk.stdout)
	go drain(&streams, stderrPipe, tk.stderr)

	// Collector: the only goroutine allowed to move the task to a
	// terminal state from process exit.
	go func() {
		streams.Wait()
		waitErr := cmd.Wait()
		code := 0
		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		next := StatusCompleted
		if code != 0 {
			next = StatusFailed
		}
		tk.mu.Lock()
		if tk.killing {
			next = StatusKilled
		}
		tk.mu.Unlock()
		tk.finish(next, code)
		close(tk.done)
		t.logger.Debug("task finished",
			zap.Int64("task_id", id),
			zap.Int("exit_code", code),
			zap.String("status", string(next)))
	}()

	t.logger.Info("task started",
		zap.Int64("task_id", id),
		zap.Int("pid", tk.pid),
		zap.String("command", util.EchoCommand(command, SummaryCommandChars)))
	t.record(events.TaskStarted, events.TaskPayload{TaskID: id, Command: util.EchoCommand(command, SummaryCommandChars)})
	return id, tk.pid, nil
}

// finish performs the single terminal transition. A task already in a
// terminal state is never moved again.
func (tk *Task) finish(next Status, exitCode int) bool {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if tk.status.Terminal() {
		return false
	}
	tk.status = next
	tk.exitCode = &exitCode
	tk.finished = time.Now()
	return true
}

func (tk *Task) snapshot() Record {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return Record{
		ID:         tk.id,
		PID:        tk.pid,
		Command:    tk.command,
		Status:     tk.status,
		ExitCode:   tk.exitCode,
		StartedAt:  tk.started,
		FinishedAt: tk.finished,
	}
}

// List returns a summary for every tracked task. The collector goroutine
// records exits as they happen, so snapshots are already current; nothing
// here blocks on a running process.
func (t *Tracker) List() []Summary {
	t.mu.RLock()
	tasks := make([]*Task, 0, len(t.tasks))
	for _, tk := range t.tasks {
		tasks = append(tasks, tk)
	}
	t.mu.RUnlock()

	summaries := make([]Summary, 0, len(tasks))
	for _, tk := range tasks {
		rec := tk.snapshot()
		summaries = append(summaries, Summary{
			ID:      rec.ID,
			Command: util.EchoCommand(rec.Command, SummaryCommandChars),
			Status:  rec.Status,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// Status returns the full record for one task.
func (t *Tracker) Status(id int64) (Record, error) {
	tk, err := t.get(id)
	if err != nil {
		return Record{}, err
	}
	return tk.snapshot(), nil
}

// Output returns whatever has been buffered so far plus current status.
// Valid to call while the task is still running.
func (t *Tracker) Output(id int64) (Output, error) {
	tk, err := t.get(id)
	if err != nil {
		return Output{}, err
	}
	rec := tk.snapshot()
	return Output{
		ID:     rec.ID,
		Status: rec.Status,
		Stdout: tk.stdout.String(),
		Stderr: tk.stderr.String(),
	}, nil
}

// Kill terminates a running task with a terminate-then-kill escalation.
// Killing an already-terminal task is an idempotent no-op reporting the
// existing status.
func (t *Tracker) Kill(id int64) (Record, error) {
	tk, err := t.get(id)
	if err != nil {
		return Record{}, err
	}
	tk.mu.Lock()
	if tk.status.Terminal() {
		rec := Record{
			ID: tk.id, PID: tk.pid, Command: tk.command, Status: tk.status,
			ExitCode: tk.exitCode, StartedAt: tk.started, FinishedAt: tk.finished,
		}
		tk.mu.Unlock()
		return rec, nil
	}
	tk.killing = true
	proc := tk.cmd.Process
	tk.mu.Unlock()

	if proc != nil {
		_ = proc.Signal(syscall.SIGTERM)
	}
	if !tk.waitDone(termGrace) {
		if proc != nil {
			_ = proc.Kill()
		}
		tk.waitDone(killGrace)
	}

	// Collector normally records the exit; cover the case where the
	// process ignored both signals within the grace windows.
	tk.finish(StatusKilled, -1)
	t.logger.Info("task killed", zap.Int64("task_id", id))
	t.record(events.TaskKilled, events.TaskPayload{TaskID: id})
	return tk.snapshot(), nil
}

// Shutdown kills every task still running. Called on server exit so no
// child processes outlive the tracker.
func (t *Tracker) Shutdown(ctx context.Context) {
	t.mu.RLock()
	ids := make([]int64, 0, len(t.tasks))
	for id, tk := range t.tasks {
		tk.mu.Lock()
		running := !tk.status.Terminal()
		tk.mu.Unlock()
		if running {
			ids = append(ids, id)
		}
	}
	t.mu.RUnlock()

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := t.Kill(id); err != nil {
			t.logger.Warn("shutdown kill", zap.Int64("task_id", id), zap.Error(err))
		}
	}
}

func (tk *Task) waitDone(d time.Duration) bool {
	select {
	case <-tk.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *Tracker) get(id int64) (*Task, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tk, ok := t.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d not found", id)
	}
	return tk, nil
}

func drain(wg *sync.WaitGroup, r io.Reader, buf *cappedBuffer) {
	defer wg.Done()
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

