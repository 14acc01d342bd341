package execute

import (
	"context"
	"strings"
	"testing"
	"time"

	"mcpd/internal/util"
)

func TestRunEcho(t *testing.T) {
	engine := NewEngine(nil)
	outcome := engine.Run(context.Background(), Request{Command: "echo hello"})
	if !outcome.Success {
		t.Fatalf("expected success, got error %q", outcome.Error)
	}
	if outcome.Stdout != "hello\n" {
		t.Fatalf("expected stdout %q, got %q", "hello\n", outcome.Stdout)
	}
	if outcome.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", outcome.ExitCode)
	}
}

func TestRunRejectsDenylisted(t *testing.T) {
	engine := NewEngine(nil)
	outcome := engine.Run(context.Background(), Request{Command: "rm -rf /"})
	if outcome.Success {
		t.Fatalf("expected rejection")
	}
	if !strings.Contains(outcome.Error, "blocked") {
		t.Fatalf("expected reason to mention the block, got %q", outcome.Error)
	}
	if outcome.Stdout != "" || outcome.Stderr != "" {
		t.Fatalf("expected no process output for a rejected command")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	engine := NewEngine(nil)
	outcome := engine.Run(context.Background(), Request{Command: "false"})
	if outcome.Success {
		t.Fatalf("expected failure")
	}
	if outcome.ExitCode == 0 {
		t.Fatalf("expected non-zero exit code")
	}
	if outcome.TimedOut {
		t.Fatalf("non-zero exit must not be reported as timeout")
	}
}

func TestRunTimeout(t *testing.T) {
	engine := NewEngine(nil)
	start := time.Now()
	outcome := engine.Run(context.Background(), Request{Command: "sleep 5", Timeout: 200 * time.Millisecond})
	if outcome.Success {
		t.Fatalf("expected timeout failure")
	}
	if !outcome.TimedOut {
		t.Fatalf("expected timeout to be flagged")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout did not fire promptly, took %s", elapsed)
	}
}

func TestRunNotHeldOpenByBackgroundChild(t *testing.T) {
	engine := NewEngine(nil)
	start := time.Now()
	// sh exits immediately; the orphaned sleep inherits the output pipes.
	outcome := engine.Run(context.Background(), Request{
		Command: "sh -c 'sleep 5 &'",
		Timeout: 500 * time.Millisecond,
	})
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("orphaned pipe holder extended the run to %s", elapsed)
	}
	if outcome.TimedOut {
		t.Fatalf("child exited on its own, must not be reported as timeout: %+v", outcome)
	}
	if !outcome.Success || outcome.ExitCode != 0 {
		t.Fatalf("expected the child's own exit to be reported, got %+v", outcome)
	}
}

func TestRunTimeoutKillReported(t *testing.T) {
	engine := NewEngine(nil)
	outcome := engine.Run(context.Background(), Request{Command: "sleep 5", Timeout: 200 * time.Millisecond})
	if !outcome.TimedOut || outcome.ExitCode != -1 {
		t.Fatalf("killed-for-deadline child must report timed_out with exit -1, got %+v", outcome)
	}
}

func TestRunTruncatesOutput(t *testing.T) {
	engine := NewEngine(nil)
	outcome := engine.Run(context.Background(), Request{
		Command: "head -c 2097152 /dev/zero",
		Timeout: 30 * time.Second,
	})
	if !outcome.Success {
		t.Fatalf("expected success, got %q", outcome.Error)
	}
	if !strings.HasSuffix(outcome.Stdout, util.TruncationMarker) {
		t.Fatalf("expected truncation marker")
	}
	if len(outcome.Stdout) > MaxStreamBytes+len(util.TruncationMarker) {
		t.Fatalf("stdout exceeds cap: %d", len(outcome.Stdout))
	}
}

func TestCappedWriterBoundsMemory(t *testing.T) {
	w := &cappedWriter{max: 8}
	if _, err := w.Write([]byte("12345")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("67890")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(w.data) != 8 {
		t.Fatalf("writer stored %d bytes past the cap", len(w.data))
	}
	if got := w.text(); got != "12345678"+util.TruncationMarker {
		t.Fatalf("text = %q", got)
	}
}

func TestRunShellOptIn(t *testing.T) {
	engine := NewEngine(nil)
	argvOutcome := engine.Run(context.Background(), Request{Command: "echo a b"})
	if !argvOutcome.Success || argvOutcome.Stdout != "a b\n" {
		t.Fatalf("argv path broken: %+v", argvOutcome)
	}
	shellOutcome := engine.Run(context.Background(), Request{Command: "printf 'x\\ny\\n' | sort -r", Shell: true})
	if !shellOutcome.Success {
		t.Fatalf("shell path failed: %q", shellOutcome.Error)
	}
	if shellOutcome.Stdout != "y\nx\n" {
		t.Fatalf("expected piped output, got %q", shellOutcome.Stdout)
	}
}

func TestRunEnvOverridesAndBlacklist(t *testing.T) {
	engine := NewEngine(nil)
	outcome := engine.Run(context.Background(), Request{
		Command: "env",
		Env:     map[string]string{"MCPD_TEST_VAR": "42", "LD_PRELOAD": "/tmp/evil.so"},
		Shell:   true,
	})
	if !outcome.Success {
		t.Fatalf("env run failed: %q", outcome.Error)
	}
	if !strings.Contains(outcome.Stdout, "MCPD_TEST_VAR=42") {
		t.Fatalf("expected override to be applied")
	}
	if strings.Contains(outcome.Stdout, "LD_PRELOAD") {
		t.Fatalf("expected LD_PRELOAD to be dropped")
	}
	if !strings.Contains(outcome.Stdout, "PATH="+safePath) {
		t.Fatalf("expected PATH forced to safe list")
	}
}

func TestRunEchoTruncatedForDisplay(t *testing.T) {
	engine := NewEngine(nil)
	long := "echo " + strings.Repeat("a", 400)
	outcome := engine.Run(context.Background(), Request{Command: long})
	if len(outcome.Command) > EchoLimit+3 {
		t.Fatalf("expected echoed command capped, got %d chars", len(outcome.Command))
	}
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		input string
		want  []string
		fails bool
	}{
		{input: "echo hello world", want: []string{"echo", "hello", "world"}},
		{input: `echo "hello world"`, want: []string{"echo", "hello world"}},
		{input: `echo 'a "b" c'`, want: []string{"echo", `a "b" c`}},
		{input: `echo a\ b`, want: []string{"echo", "a b"}},
		{input: `echo "unterminated`, fails: true},
		{input: "   ", fails: true},
	}
	for _, tc := range cases {
		got, err := Tokenize(tc.input)
		if tc.fails {
			if err == nil {
				t.Errorf("expected error for %q", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for %q: %v", tc.input, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("tokenize %q = %v, want %v", tc.input, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("tokenize %q = %v, want %v", tc.input, got, tc.want)
				break
			}
		}
	}
}
