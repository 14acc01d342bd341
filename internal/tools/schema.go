package tools

import (
	"fmt"
	"math"
	"slices"
)

// Schema renders the definition as the MCP tool schema returned verbatim
// by tools/list.
func (d Definition) Schema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	for name, spec := range d.Params {
		prop := map[string]any{"type": spec.Type}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		if spec.Default != nil {
			prop["default"] = spec.Default
		}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		if spec.Minimum != nil {
			prop["minimum"] = *spec.Minimum
		}
		if spec.Maximum != nil {
			prop["maximum"] = *spec.Maximum
		}
		properties[name] = prop
	}
	required := d.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

// Validate checks args against the declared parameters and returns every
// problem found; it never short-circuits, so a caller gets the full list
// in one round trip. An empty slice means the args are valid.
func (d Definition) Validate(args map[string]any) []string {
	var problems []string
	for _, name := range d.Required {
		if _, present := args[name]; !present {
			problems = append(problems, fmt.Sprintf("missing required parameter %q", name))
		}
	}
	for name, value := range args {
		spec, declared := d.Params[name]
		if !declared {
			continue
		}
		switch spec.Type {
		case "string":
			str, ok := value.(string)
			if !ok {
				problems = append(problems, fmt.Sprintf("parameter %q must be a string", name))
				continue
			}
			if len(spec.Enum) > 0 && !slices.Contains(spec.Enum, str) {
				problems = append(problems, fmt.Sprintf("parameter %q must be one of %v", name, spec.Enum))
			}
		case "integer":
			num, ok := asInteger(value)
			if !ok {
				problems = append(problems, fmt.Sprintf("parameter %q must be an integer", name))
				continue
			}
			if spec.Minimum != nil && num < *spec.Minimum {
				problems = append(problems, fmt.Sprintf("parameter %q must be >= %v", name, *spec.Minimum))
			}
			if spec.Maximum != nil && num > *spec.Maximum {
				problems = append(problems, fmt.Sprintf("parameter %q must be <= %v", name, *spec.Maximum))
			}
		case "boolean":
			if _, ok := value.(bool); !ok {
				problems = append(problems, fmt.Sprintf("parameter %q must be a boolean", name))
			}
		}
	}
	return problems
}

// asInteger accepts the numeric shapes JSON decoding produces for whole
// numbers.
func asInteger(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
