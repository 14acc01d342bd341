// Package execute runs validated ad-hoc commands with a bounded timeout, a
// restricted environment, and capped output.
package execute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpd/internal/security"
	"mcpd/internal/util"
)

const (
	// DefaultTimeout bounds a run when the caller does not ask for one.
	DefaultTimeout = 30 * time.Second
	// MaxTimeout is the hard ceiling on any single run.
	MaxTimeout = 300 * time.Second
	// MaxStreamBytes caps stdout and stderr independently.
	MaxStreamBytes = 1 << 20
	// EchoLimit bounds the command echoed back in results.
	EchoLimit = 200

	safePath = "/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin"

	// waitGrace bounds how long Wait may block on inherited pipes after
	// the child exits or the deadline fires. Without it, a grandchild
	// holding the pipes open extends the call past the timeout.
	waitGrace = time.Second
)

// blockedEnv lists library-injection vectors that caller-supplied
// environment overrides may never set.
var blockedEnv = map[string]struct{}{
	"LD_PRELOAD":      {},
	"LD_LIBRARY_PATH": {},
	"BASH_ENV":        {},
}

// Request describes one ad-hoc command run.
type Request struct {
	Command string
	Dir     string
	Timeout time.Duration
	Env     map[string]string
	// Shell opts in to `sh -c` interpretation for pipes and redirects.
	// The default argv path never consults a shell.
	Shell bool
}

// Outcome is the uniform result of a run, success or not.
type Outcome struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Command  string `json:"command"`
	TimedOut bool   `json:"timed_out"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// Engine executes ad-hoc commands. It is stateless and safe for
// concurrent use.
type Engine struct {
	logger *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Run validates, spawns, and reaps one command. A rejected command never
// spawns a process; a timed-out command is force-killed and reported
// distinctly from a non-zero exit.
func (e *Engine) Run(ctx context.Context, req Request) Outcome {
	echo := util.EchoCommand(req.Command, EchoLimit)

	if ok, reason := security.Check(req.Command); !ok {
		e.logger.Warn("command rejected", zap.String("reason", reason))
		return Outcome{Success: false, Command: echo, ExitCode: -1, Error: reason}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if req.Shell {
		cmd = exec.CommandContext(ctx, "sh", "-c", req.Command)
	} else {
		argv, err := Tokenize(req.Command)
		if err != nil {
			return Outcome{Success: false, Command: echo, ExitCode: -1, Error: err.Error()}
		}
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	}
	cmd.Dir = req.Dir
	cmd.Env = buildEnv(req.Env)
	cmd.WaitDelay = waitGrace

	stdout := &cappedWriter{max: MaxStreamBytes}
	stderr := &cappedWriter{max: MaxStreamBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start).Milliseconds()

	childExit := 0
	if cmd.ProcessState != nil {
		childExit = cmd.ProcessState.ExitCode()
	} else if runErr != nil {
		childExit = -1
	}
	// Timed out means the deadline fired AND the child was killed for it.
	// A child that exited on its own before a grandchild released the
	// pipes (ErrWaitDelay) keeps its real exit code.
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded) && childExit == -1

	outcome := Outcome{
		Command:  echo,
		TimedOut: timedOut,
		Duration: duration,
		Stdout:   stdout.text(),
		Stderr:   stderr.text(),
	}

	switch {
	case timedOut:
		outcome.ExitCode = -1
		outcome.Error = fmt.Sprintf("command timed out after %s", timeout)
	case runErr == nil || errors.Is(runErr, exec.ErrWaitDelay):
		outcome.ExitCode = childExit
		if childExit == 0 {
			outcome.Success = true
		} else {
			outcome.Error = fmt.Sprintf("exit code %d", childExit)
		}
	default:
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
			outcome.Error = fmt.Sprintf("exit code %d", outcome.ExitCode)
		} else {
			outcome.ExitCode = -1
			outcome.Error = runErr.Error()
		}
	}

	e.logger.Debug("command finished",
		zap.String("command", echo),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Bool("timed_out", timedOut),
		zap.Int64("duration_ms", duration))
	return outcome
}

// cappedWriter accumulates stream output up to a byte ceiling at write
// time, so a chatty long-running command cannot grow memory past the cap.
// exec serializes writes per stream; no lock needed.
type cappedWriter struct {
	data      []byte
	max       int
	truncated bool
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	room := w.max - len(w.data)
	switch {
	case room <= 0:
		if len(p) > 0 {
			w.truncated = true
		}
	case len(p) > room:
		w.data = append(w.data, p[:room]...)
		w.truncated = true
	default:
		w.data = append(w.data, p...)
	}
	return len(p), nil
}

func (w *cappedWriter) text() string {
	out := util.RedactSecrets(util.SanitizeOutput(w.data))
	if w.truncated {
		out += util.TruncationMarker
	}
	return out
}

// buildEnv starts from the current environment, forces PATH to a fixed safe
// list, and merges caller overrides minus the injection blacklist.
func buildEnv(overrides map[string]string) []string {
	env := make([]string, 0, len(os.Environ())+len(overrides)+1)
	for _, entry := range os.Environ() {
		name, _, ok := strings.Cut(entry, "=")
		if !ok || name == "PATH" {
			continue
		}
		if _, blocked := blockedEnv[name]; blocked {
			continue
		}
		if _, replaced := overrides[name]; replaced {
			continue
		}
		env = append(env, entry)
	}
	env = append(env, "PATH="+safePath)
	for name, value := range overrides {
		if _, blocked := blockedEnv[name]; blocked {
			continue
		}
		env = append(env, name+"="+value)
	}
	return env
}
