// Package events records recent server activity in a bounded in-memory
// log, used by the diagnostic feed.
package events

import (
	"sync"
	"time"
)

// Type represents an emitted event type.
type Type string

const (
	ServerStarted    Type = "ServerStarted"
	ToolCallStarted  Type = "ToolCallStarted"
	ToolCallFinished Type = "ToolCallFinished"
	ToolCallFailed   Type = "ToolCallFailed"
	TaskStarted      Type = "TaskStarted"
	TaskKilled       Type = "TaskKilled"
)

// Event is the common envelope for logged events.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ToolCallPayload describes one tool invocation.
type ToolCallPayload struct {
	Tool       string `json:"tool"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TaskPayload describes a background task transition.
type TaskPayload struct {
	TaskID  int64  `json:"task_id"`
	Command string `json:"command,omitempty"`
}

// DefaultCapacity bounds the log when none is given.
const DefaultCapacity = 256

// Log is a fixed-capacity ring of recent events. The zero value is not
// usable; construct with NewLog.
type Log struct {
	mu   sync.Mutex
	ring []Event
	next int
	size int
}

// NewLog creates a log holding at most capacity events.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{ring: make([]Event, capacity)}
}

// Append records an event, evicting the oldest when full.
func (l *Log) Append(t Type, payload any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring[l.next] = Event{Type: t, Timestamp: time.Now().UTC(), Payload: payload}
	l.next = (l.next + 1) % len(l.ring)
	if l.size < len(l.ring) {
		l.size++
	}
}

// Recent returns up to n events, oldest first.
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]Event, 0, n)
	start := (l.next - n + len(l.ring)) % len(l.ring)
	for i := 0; i < n; i++ {
		out = append(out, l.ring[(start+i)%len(l.ring)])
	}
	return out
}
