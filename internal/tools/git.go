package tools

import (
	"context"
	"strings"
	"time"

	"mcpd/internal/execute"
)

// GitStatusTool reports working-tree status via the execution engine, so
// the same validation and output capping apply.
type GitStatusTool struct {
	engine *execute.Engine
	root   string
}

// NewGitStatusTool constructs the git_status tool.
func NewGitStatusTool(engine *execute.Engine, root string) *GitStatusTool {
	return &GitStatusTool{engine: engine, root: root}
}

func (g *GitStatusTool) Definition() Definition {
	return Definition{
		Name:        "git_status",
		Description: "Show branch and porcelain status for a git working tree in the workspace.",
		Category:    CategoryGit,
		Params: map[string]ParamSpec{
			"cwd": {Type: "string", Description: "Repository directory, relative to the workspace root"},
		},
		Required: []string{},
	}
}

func (g *GitStatusTool) Execute(ctx context.Context, args map[string]any) Result {
	dir := g.root
	if cwd, ok := args["cwd"].(string); ok && strings.TrimSpace(cwd) != "" {
		resolved, err := resolveWithinRoot(g.root, cwd)
		if err != nil {
			return Fail("invalid cwd: %v", err)
		}
		dir = resolved
	}

	outcome := g.engine.Run(ctx, execute.Request{
		Command: "git status --porcelain=v1 --branch",
		Dir:     dir,
		Timeout: 30 * time.Second,
	})
	if !outcome.Success {
		return Fail("git status failed: %s", strings.TrimSpace(outcome.Stderr+" "+outcome.Error))
	}

	lines := strings.Split(strings.TrimSuffix(outcome.Stdout, "\n"), "\n")
	branch := ""
	changes := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			branch = strings.TrimPrefix(line, "## ")
			continue
		}
		if line != "" {
			changes = append(changes, line)
		}
	}
	return Ok(map[string]any{
		"branch":  branch,
		"changes": changes,
		"clean":   len(changes) == 0,
	})
}
