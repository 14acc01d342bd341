package tools

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"mcpd/internal/execute"
)

var errPathEscapesRoot = errors.New("path must stay within the workspace root")

// BashTool runs a validated ad-hoc command through the execution engine.
type BashTool struct {
	engine *execute.Engine
	root   string
}

// NewBashTool constructs the bash_command tool rooted at the workspace.
func NewBashTool(engine *execute.Engine, root string) *BashTool {
	return &BashTool{engine: engine, root: root}
}

func (b *BashTool) Definition() Definition {
	minTimeout := float64(1)
	maxTimeout := float64(300)
	return Definition{
		Name:        "bash_command",
		Description: "Execute a command with a bounded timeout, restricted environment, and capped output. Commands run in argv form; set use_shell for pipes and redirects.",
		Category:    CategoryExecution,
		Params: map[string]ParamSpec{
			"command":   {Type: "string", Description: "Command to execute"},
			"cwd":       {Type: "string", Description: "Working directory, relative to the workspace root"},
			"timeout":   {Type: "integer", Description: "Timeout in seconds", Default: 30, Minimum: &minTimeout, Maximum: &maxTimeout},
			"env":       {Type: "object", Description: "Extra environment variables"},
			"use_shell": {Type: "boolean", Description: "Interpret the command with sh -c", Default: false},
		},
		Required: []string{"command"},
	}
}

type bashInput struct {
	Command  string            `json:"command"`
	Cwd      string            `json:"cwd"`
	Timeout  int               `json:"timeout"`
	Env      map[string]string `json:"env"`
	UseShell bool              `json:"use_shell"`
}

func (b *BashTool) Execute(ctx context.Context, args map[string]any) Result {
	var input bashInput
	if err := decodeArgs(args, &input); err != nil {
		return Fail("invalid arguments: %v", err)
	}
	if strings.TrimSpace(input.Command) == "" {
		return Fail("command is required")
	}

	dir := b.root
	if strings.TrimSpace(input.Cwd) != "" {
		resolved, err := resolveWithinRoot(b.root, input.Cwd)
		if err != nil {
			return Fail("invalid cwd: %v", err)
		}
		dir = resolved
	}

	outcome := b.engine.Run(ctx, execute.Request{
		Command: input.Command,
		Dir:     dir,
		Timeout: time.Duration(input.Timeout) * time.Second,
		Env:     input.Env,
		Shell:   input.UseShell,
	})
	return Result{Success: outcome.Success, Data: outcome, Error: outcome.Error}
}

// resolveWithinRoot resolves a path and refuses escapes above the root.
func resolveWithinRoot(root, p string) (string, error) {
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errPathEscapesRoot
	}
	return abs, nil
}
