package tools

import (
	"context"
	"fmt"
)

// Category classifies a tool in the catalog. The set is closed.
type Category string

const (
	CategoryFile       Category = "file"
	CategorySearch     Category = "search"
	CategoryExecution  Category = "execution"
	CategoryGit        Category = "git"
	CategoryWeb        Category = "web"
	CategoryMedia      Category = "media"
	CategoryContext    Category = "context"
	CategorySystem     Category = "system"
	CategoryPrometheus Category = "prometheus"
	CategoryNotebook   Category = "notebook"
	CategoryAdvanced   Category = "advanced"
)

var knownCategories = map[Category]struct{}{
	CategoryFile: {}, CategorySearch: {}, CategoryExecution: {}, CategoryGit: {},
	CategoryWeb: {}, CategoryMedia: {}, CategoryContext: {}, CategorySystem: {},
	CategoryPrometheus: {}, CategoryNotebook: {}, CategoryAdvanced: {},
}

// Valid reports whether the category is part of the closed set.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// ParamSpec declares one tool parameter.
type ParamSpec struct {
	Type        string
	Description string
	Default     any
	Enum        []string
	Minimum     *float64
	Maximum     *float64
}

// Definition declares a tool's name, category, and parameter schema.
type Definition struct {
	Name        string
	Description string
	Category    Category
	Params      map[string]ParamSpec
	Required    []string
}

// Result is the standardized envelope every tool invocation returns. It is
// the only error carrier between the registry and its callers; Go panics
// are reserved for programming errors.
// Invariant: Success == false implies Error is non-empty.
type Result struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Meta    map[string]any `json:"metadata,omitempty"`
}

// Ok builds a successful Result.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed Result with a formatted error.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Tool is the single closed interface every tool implements. Concrete
// tools are built by factory functions so the registry holds a uniform
// slice of interface values.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) Result
}
