package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Codes the registry reports to the protocol layer. They match the wire
// values so the dispatcher can pass them through unchanged.
const (
	CodeToolNotFound   = -32601
	CodeToolExecFailed = -32000
)

// CallError is a protocol-level failure from a tools/call dispatch,
// distinct from a tool returning a failed Result.
type CallError struct {
	Code    int
	Message string
}

func (e *CallError) Error() string { return e.Message }

// ContentBlock is one element of an MCP tool response.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallContent is what tools/call hands back to the dispatcher.
type CallContent struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Registry is the central tool catalog: a name map plus a category index.
// It is constructed once at startup and passed by reference; there is no
// package-level singleton.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	categories map[Category][]string
	logger     *zap.Logger
}

// NewRegistry builds a registry from tools.
func NewRegistry(logger *zap.Logger, items ...Tool) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := &Registry{
		tools:      make(map[string]Tool),
		categories: make(map[Category][]string),
		logger:     logger,
	}
	for _, item := range items {
		reg.Register(item)
	}
	return reg
}

// Register inserts a tool by name. A duplicate name replaces the previous
// registration with a warning; last registration wins, which keeps
// hot-reload during development cheap.
func (r *Registry) Register(tool Tool) {
	def := tool.Definition()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		r.logger.Warn("replacing already-registered tool", zap.String("tool", def.Name))
		r.dropFromCategoryLocked(def.Name)
	}
	r.tools[def.Name] = tool
	r.categories[def.Category] = append(r.categories[def.Category], def.Name)
}

// Unregister removes a tool from the name map and its category index.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	r.dropFromCategoryLocked(name)
}

func (r *Registry) dropFromCategoryLocked(name string) {
	for cat, names := range r.categories {
		kept := names[:0]
		for _, n := range names {
			if n != name {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(r.categories, cat)
		} else {
			r.categories[cat] = kept
		}
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns every registered tool's schema, sorted by name.
func (r *Registry) List() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	schemas := make([]map[string]any, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, r.tools[name].Definition().Schema())
	}
	return schemas
}

// ListByCategory returns schemas for one category, sorted by name.
func (r *Registry) ListByCategory(cat Category) []map[string]any {
	r.mu.RLock()
	names := append([]string(nil), r.categories[cat]...)
	r.mu.RUnlock()
	sort.Strings(names)
	schemas := make([]map[string]any, 0, len(names))
	for _, name := range names {
		if tool, ok := r.Get(name); ok {
			schemas = append(schemas, tool.Definition().Schema())
		}
	}
	return schemas
}

// Call dispatches a tool invocation. An unknown name fails without
// touching any tool code. Tool-level failures come back as isError
// content; only a failure of the dispatch machinery itself becomes a
// CallError.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (CallContent, *CallError) {
	tool, ok := r.Get(name)
	if !ok {
		return CallContent{}, &CallError{Code: CodeToolNotFound, Message: fmt.Sprintf("Tool not found: %s", name)}
	}

	result := executeValidated(ctx, tool, args)
	if !result.Success {
		r.logger.Debug("tool call failed", zap.String("tool", name), zap.String("error", result.Error))
		return CallContent{
			Content: []ContentBlock{{Type: "text", Text: "Error: " + result.Error}},
			IsError: true,
		}, nil
	}

	text, err := renderData(result.Data)
	if err != nil {
		return CallContent{}, &CallError{Code: CodeToolExecFailed, Message: fmt.Sprintf("Tool execution failed: %v", err)}
	}
	return CallContent{Content: []ContentBlock{{Type: "text", Text: text}}}, nil
}

// renderData serializes structured data as JSON and scalars as plain text.
func renderData(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return fmt.Sprintf("%v", v), nil
	case float64, float32, int, int64, int32:
		return fmt.Sprintf("%v", v), nil
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// AuditIssue describes one catalog inconsistency found by Audit.
type AuditIssue struct {
	Tool    string `json:"tool,omitempty"`
	Problem string `json:"problem"`
}

// Audit is a diagnostic self-check: malformed definitions, category-index
// names that do not exist, and tools missing from their declared
// category's index. Non-fatal; run at startup and on demand.
func (r *Registry) Audit() []AuditIssue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var issues []AuditIssue
	for name, tool := range r.tools {
		def := tool.Definition()
		if def.Name == "" {
			issues = append(issues, AuditIssue{Tool: name, Problem: "definition has empty name"})
		}
		if def.Description == "" {
			issues = append(issues, AuditIssue{Tool: name, Problem: "definition has empty description"})
		}
		if !def.Category.Valid() {
			issues = append(issues, AuditIssue{Tool: name, Problem: fmt.Sprintf("unknown category %q", def.Category)})
		}
		found := false
		for _, indexed := range r.categories[def.Category] {
			if indexed == name {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, AuditIssue{Tool: name, Problem: fmt.Sprintf("missing from category index %q", def.Category)})
		}
	}
	for cat, names := range r.categories {
		seen := make(map[string]int, len(names))
		for _, name := range names {
			seen[name]++
			if _, exists := r.tools[name]; !exists {
				issues = append(issues, AuditIssue{Tool: name, Problem: fmt.Sprintf("category %q indexes an unregistered tool", cat)})
			}
		}
		for name, count := range seen {
			if count > 1 {
				issues = append(issues, AuditIssue{Tool: name, Problem: fmt.Sprintf("duplicated %d times in category %q", count, cat)})
			}
		}
	}
	return issues
}
