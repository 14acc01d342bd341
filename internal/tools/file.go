package tools

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mcpd/internal/util"
	"mcpd/internal/workspace"
)

// ReadFileTool reads a file inside the workspace root. Paths on the
// secrets denylist are never readable.
type ReadFileTool struct {
	root     string
	maxBytes int
}

// NewReadFileTool constructs the read_file tool.
func NewReadFileTool(root string, maxBytes int) *ReadFileTool {
	return &ReadFileTool{root: root, maxBytes: maxBytes}
}

func (r *ReadFileTool) Definition() Definition {
	return Definition{
		Name:        "read_file",
		Description: "Read a text file from the workspace. Secret-bearing paths are refused; large files are truncated.",
		Category:    CategoryFile,
		Params: map[string]ParamSpec{
			"path":   {Type: "string", Description: "File path relative to the workspace root"},
			"offset": {Type: "integer", Description: "Byte offset to start reading from"},
			"limit":  {Type: "integer", Description: "Maximum bytes to return"},
		},
		Required: []string{"path"},
	}
}

type readFileInput struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Limit  int    `json:"limit"`
}

func (r *ReadFileTool) Execute(ctx context.Context, args map[string]any) Result {
	var input readFileInput
	if err := decodeArgs(args, &input); err != nil {
		return Fail("invalid arguments: %v", err)
	}
	path, err := resolveWithinRoot(r.root, input.Path)
	if err != nil {
		return Fail("%v", err)
	}
	if workspace.IsProtected(path) {
		return Fail("refusing to read %s: path is on the secrets denylist", input.Path)
	}

	file, err := os.Open(path)
	if err != nil {
		return Fail("%v", err)
	}
	defer file.Close()

	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, 0); err != nil {
			return Fail("seek: %v", err)
		}
	}
	limit := r.maxBytes
	if input.Limit > 0 && input.Limit < limit {
		limit = input.Limit
	}
	// Read one byte past the limit so truncation is detected without
	// stat-ing; a single Read may short-read, so fill the buffer.
	buf := make([]byte, limit+1)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Fail("read: %v", err)
	}
	content := util.SanitizeOutput(buf[:min(n, limit)])
	truncated := n > limit

	return Ok(map[string]any{
		"path":      input.Path,
		"content":   content,
		"bytes":     len(content),
		"truncated": truncated,
	})
}

// WriteFileTool writes a file inside the workspace root.
type WriteFileTool struct {
	root string
}

// NewWriteFileTool constructs the write_file tool.
func NewWriteFileTool(root string) *WriteFileTool {
	return &WriteFileTool{root: root}
}

func (w *WriteFileTool) Definition() Definition {
	return Definition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace, creating parent directories as needed.",
		Category:    CategoryFile,
		Params: map[string]ParamSpec{
			"path":    {Type: "string", Description: "File path relative to the workspace root"},
			"content": {Type: "string", Description: "Content to write"},
		},
		Required: []string{"path", "content"},
	}
}

type writeFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (w *WriteFileTool) Execute(ctx context.Context, args map[string]any) Result {
	var input writeFileInput
	if err := decodeArgs(args, &input); err != nil {
		return Fail("invalid arguments: %v", err)
	}
	path, err := resolveWithinRoot(w.root, input.Path)
	if err != nil {
		return Fail("%v", err)
	}
	if workspace.IsProtected(path) {
		return Fail("refusing to write %s: path is on the secrets denylist", input.Path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Fail("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(input.Content), 0o644); err != nil {
		return Fail("write: %v", err)
	}
	return Ok(map[string]any{"path": input.Path, "bytes": len(input.Content)})
}

// ListDirTool lists directory entries inside the workspace root.
type ListDirTool struct {
	root string
}

// NewListDirTool constructs the list_dir tool.
func NewListDirTool(root string) *ListDirTool {
	return &ListDirTool{root: root}
}

func (l *ListDirTool) Definition() Definition {
	one := float64(1)
	five := float64(5)
	return Definition{
		Name:        "list_dir",
		Description: "List directory entries with sizes, optionally descending subdirectories. Hidden entries are included; denylisted ones are not.",
		Category:    CategoryFile,
		Params: map[string]ParamSpec{
			"path":  {Type: "string", Description: "Directory path relative to the workspace root", Default: "."},
			"depth": {Type: "integer", Description: "Levels of subdirectories to descend", Default: 1, Minimum: &one, Maximum: &five},
		},
		Required: []string{},
	}
}

type dirEntry struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
}

func (l *ListDirTool) Execute(ctx context.Context, args map[string]any) Result {
	target := "."
	if p, ok := args["path"].(string); ok && strings.TrimSpace(p) != "" {
		target = p
	}
	depth := 1
	if d, ok := asInteger(args["depth"]); ok && int(d) > depth {
		depth = int(d)
	}
	path, err := resolveWithinRoot(l.root, target)
	if err != nil {
		return Fail("%v", err)
	}
	listed, err := listEntries(path, "", depth)
	if err != nil {
		return Fail("%v", err)
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].Name < listed[j].Name })
	return Ok(map[string]any{"path": target, "entries": listed, "count": len(listed)})
}

// listEntries collects entries up to depth levels deep. Names of nested
// entries carry their path relative to the listed directory.
func listEntries(dir, prefix string, depth int) ([]dirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if prefix != "" {
			return nil, nil // unreadable subdirectory, skip
		}
		return nil, err
	}
	var listed []dirEntry
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if workspace.IsProtected(full) {
			continue
		}
		name := entry.Name()
		if prefix != "" {
			name = prefix + "/" + name
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		listed = append(listed, dirEntry{Name: name, Size: size, IsDir: entry.IsDir()})
		if entry.IsDir() && depth > 1 {
			nested, err := listEntries(full, name, depth-1)
			if err != nil {
				return nil, err
			}
			listed = append(listed, nested...)
		}
	}
	return listed, nil
}

