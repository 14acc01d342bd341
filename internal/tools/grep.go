package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"mcpd/internal/util"
	"mcpd/internal/workspace"
)

// maxMatchLineBytes caps a single matched line in grep output.
const maxMatchLineBytes = 1000

// GrepTool searches workspace files for a regex pattern, preferring
// ripgrep and falling back to a pure-Go walker when rg is absent.
type GrepTool struct {
	root       string
	rgPath     string
	maxResults int
	maxBytes   int
	timeout    time.Duration
}

// NewGrepTool constructs the grep_search tool.
func NewGrepTool(root string, maxResults, maxBytes int, timeout time.Duration) *GrepTool {
	rgPath, _ := exec.LookPath("rg")
	return &GrepTool{root: root, rgPath: rgPath, maxResults: maxResults, maxBytes: maxBytes, timeout: timeout}
}

func (g *GrepTool) Definition() Definition {
	one := float64(1)
	return Definition{
		Name:        "grep_search",
		Description: "Search workspace files for a regex pattern using ripgrep when available.",
		Category:    CategorySearch,
		Params: map[string]ParamSpec{
			"pattern":        {Type: "string", Description: "Regex pattern to search for"},
			"path":           {Type: "string", Description: "Subdirectory to search, relative to the workspace root"},
			"glob":           {Type: "string", Description: "Filename glob filter, e.g. *.go"},
			"case_sensitive": {Type: "boolean", Description: "Match case exactly", Default: false},
			"max_results":    {Type: "integer", Description: "Cap on returned matches", Minimum: &one},
		},
		Required: []string{"pattern"},
	}
}

type grepInput struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path"`
	Glob          string `json:"glob"`
	CaseSensitive bool   `json:"case_sensitive"`
	MaxResults    int    `json:"max_results"`
}

type grepOutput struct {
	Matches   []string `json:"matches"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated"`
	Warning   string   `json:"warning,omitempty"`
}

func (g *GrepTool) Execute(ctx context.Context, args map[string]any) Result {
	var input grepInput
	if err := decodeArgs(args, &input); err != nil {
		return Fail("invalid arguments: %v", err)
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return Fail("pattern is required")
	}
	if input.MaxResults <= 0 {
		input.MaxResults = g.maxResults
	}

	searchRoot := g.root
	if strings.TrimSpace(input.Path) != "" {
		resolved, err := resolveWithinRoot(g.root, input.Path)
		if err != nil {
			return Fail("%v", err)
		}
		searchRoot = resolved
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var matches []string
	var warning string
	var err error
	if g.rgPath != "" {
		matches, err = g.runRipgrep(ctx, input, searchRoot)
	} else {
		matches, err = g.runFallback(ctx, input, searchRoot)
		warning = "rg not found; using Go fallback"
	}
	if err != nil {
		return Fail("%v", err)
	}

	// Result-count, per-line, and total-byte caps; a single minified
	// line must not blow the response.
	truncated := false
	budget := g.maxBytes
	kept := make([]string, 0, len(matches))
	for _, line := range matches {
		line = util.RedactSecrets(line)
		line, _ = util.CapBytes(line, maxMatchLineBytes)
		if len(kept) >= input.MaxResults || budget < len(line) {
			truncated = true
			break
		}
		budget -= len(line)
		kept = append(kept, line)
	}
	return Ok(grepOutput{Matches: kept, Count: len(kept), Truncated: truncated, Warning: warning})
}

func (g *GrepTool) runRipgrep(ctx context.Context, input grepInput, searchRoot string) ([]string, error) {
	cmdArgs := []string{"--no-heading", "--line-number"}
	if !input.CaseSensitive {
		cmdArgs = append(cmdArgs, "--ignore-case")
	}
	if strings.TrimSpace(input.Glob) != "" {
		cmdArgs = append(cmdArgs, "--glob", input.Glob)
	}
	for _, deny := range denylistGlobs() {
		cmdArgs = append(cmdArgs, "--glob", deny)
	}
	cmdArgs = append(cmdArgs, input.Pattern, ".")

	cmd := exec.CommandContext(ctx, g.rgPath, cmdArgs...)
	cmd.Dir = searchRoot
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return []string{}, nil // no matches
		}
		return nil, fmt.Errorf("rg failed: %w: %s", err, stderr.String())
	}

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	return lines, nil
}

func (g *GrepTool) runFallback(ctx context.Context, input grepInput, searchRoot string) ([]string, error) {
	stopWalk := errors.New("stop-walk")

	pattern := input.Pattern
	if !input.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	var matches []string
	walkErr := filepath.WalkDir(searchRoot, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != searchRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if workspace.IsProtected(p) {
			return nil
		}
		if input.Glob != "" {
			if ok, _ := path.Match(input.Glob, d.Name()); !ok {
				return nil
			}
		}
		file, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer file.Close()
		if isBinary(file) {
			return nil
		}
		_, _ = file.Seek(0, io.SeekStart)
		scanner := bufio.NewScanner(file)
		lineNum := 1
		for scanner.Scan() {
			if re.MatchString(scanner.Text()) {
				rel, _ := filepath.Rel(g.root, p)
				matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, lineNum, scanner.Text()))
				if len(matches) > input.MaxResults {
					return stopWalk
				}
			}
			lineNum++
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, stopWalk) {
		return matches, walkErr
	}
	return matches, nil
}

func denylistGlobs() []string {
	return []string{
		"!.env*",
		"!*.pem",
		"!*.key",
		"!*.p12",
		"!*.pfx",
		"!id_rsa*",
		"!.aws/credentials",
		"!.npmrc",
		"!.docker/config.json",
	}
}

func isBinary(file *os.File) bool {
	buf := make([]byte, 8000)
	n, _ := file.Read(buf)
	return bytes.IndexByte(buf[:n], 0) >= 0
}
