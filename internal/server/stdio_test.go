package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"mcpd/internal/protocol"
	"mcpd/internal/task"
	"mcpd/internal/tools"
)

func newTestDispatcher(t *testing.T) *protocol.Dispatcher {
	t.Helper()
	registry := tools.NewRegistry(zap.NewNop())
	tracker := task.NewTracker(zap.NewNop())
	t.Cleanup(func() { tracker.Shutdown(context.Background()) })
	return protocol.NewDispatcher(registry, tracker, zap.NewNop())
}

func TestStdioRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer
	srv := NewStdioServer(d, in, &out, zap.NewNop())

	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (raw %q)", err, out.String())
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if got := resp.ID; got != float64(1) {
		t.Fatalf("id = %v, want 1", got)
	}
}

func TestStdioParseError(t *testing.T) {
	d := newTestDispatcher(t)

	in := strings.NewReader("{not json\n")
	var out bytes.Buffer
	srv := NewStdioServer(d, in, &out, zap.NewNop())

	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeParseError {
		t.Fatalf("error = %+v, want code %d", resp.Error, protocol.CodeParseError)
	}
	if resp.ID != nil {
		t.Fatalf("id = %v, want null", resp.ID)
	}
}

func TestStdioOversizedFrameKeepsServing(t *testing.T) {
	d := newTestDispatcher(t)

	oversized := strings.Repeat("x", maxFrameBytes+1024)
	in := strings.NewReader(oversized + "\n" + `{"jsonrpc":"2.0","id":7,"method":"ping"}` + "\n")
	var out bytes.Buffer
	srv := NewStdioServer(d, in, &out, zap.NewNop())

	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d responses, want 2", len(lines))
	}

	var first protocol.Response
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if first.Error == nil || first.Error.Code != protocol.CodeParseError {
		t.Fatalf("first error = %+v, want code %d", first.Error, protocol.CodeParseError)
	}
	if first.ID != nil {
		t.Fatalf("first id = %v, want null", first.ID)
	}

	var second protocol.Response
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if second.Error != nil || second.ID != float64(7) {
		t.Fatalf("second response = %+v, want ping result for id 7", second)
	}
}

func TestStdioContextCancelStopsRun(t *testing.T) {
	d := newTestDispatcher(t)

	// A pipe that never delivers data stands in for an idle stdin.
	pr, pw := io.Pipe()
	defer pw.Close()
	srv := NewStdioServer(d, pr, &bytes.Buffer{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestStdioSkipsBlankLines(t *testing.T) {
	d := newTestDispatcher(t)

	in := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","id":"a","method":"ping"}` + "\n")
	var out bytes.Buffer
	srv := NewStdioServer(d, in, &out, zap.NewNop())

	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Count(out.String(), "\n")
	if lines != 1 {
		t.Fatalf("wrote %d responses, want 1: %q", lines, out.String())
	}
}
