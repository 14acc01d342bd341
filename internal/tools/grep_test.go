package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mcpd/internal/util"
)

func newFallbackGrep(root string) *GrepTool {
	// Empty rgPath forces the pure-Go walker so results are deterministic.
	return &GrepTool{root: root, maxResults: 50, maxBytes: 64 * 1024, timeout: 5 * time.Second}
}

func TestGrepFallbackFindsMatches(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha\nneedle here\nomega\n"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	res := newFallbackGrep(root).Execute(context.Background(), map[string]any{"pattern": "needle"})
	if !res.Success {
		t.Fatalf("grep failed: %q", res.Error)
	}
	out := res.Data.(grepOutput)
	if out.Count != 1 || !strings.Contains(out.Matches[0], "a.txt:2:needle here") {
		t.Fatalf("matches = %+v", out)
	}
}

func TestGrepSkipsProtectedFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("needle\n"), 0o600); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	res := newFallbackGrep(root).Execute(context.Background(), map[string]any{"pattern": "needle"})
	if !res.Success {
		t.Fatalf("grep failed: %q", res.Error)
	}
	if out := res.Data.(grepOutput); out.Count != 0 {
		t.Fatalf("expected no matches from a protected file, got %+v", out)
	}
}

func TestGrepCapsLongLines(t *testing.T) {
	root := t.TempDir()
	long := "needle " + strings.Repeat("x", 5000) + "\n"
	if err := os.WriteFile(filepath.Join(root, "minified.js"), []byte(long), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	res := newFallbackGrep(root).Execute(context.Background(), map[string]any{"pattern": "needle"})
	if !res.Success {
		t.Fatalf("grep failed: %q", res.Error)
	}
	out := res.Data.(grepOutput)
	if out.Count != 1 {
		t.Fatalf("matches = %+v", out)
	}
	if len(out.Matches[0]) > maxMatchLineBytes+len(util.TruncationMarker) {
		t.Fatalf("matched line not capped: %d bytes", len(out.Matches[0]))
	}
}

func TestGrepMaxResults(t *testing.T) {
	root := t.TempDir()
	var lines strings.Builder
	for i := 0; i < 20; i++ {
		lines.WriteString("needle\n")
	}
	if err := os.WriteFile(filepath.Join(root, "many.txt"), []byte(lines.String()), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	res := newFallbackGrep(root).Execute(context.Background(), map[string]any{
		"pattern":     "needle",
		"max_results": float64(5),
	})
	if !res.Success {
		t.Fatalf("grep failed: %q", res.Error)
	}
	out := res.Data.(grepOutput)
	if out.Count != 5 || !out.Truncated {
		t.Fatalf("expected 5 truncated matches, got %+v", out)
	}
}
