package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"mcpd/internal/version"
)

// The resource and prompt catalogs are small and fixed: the server's own
// metadata, exposed so clients that browse resources see something real.

func (d *Dispatcher) handleResourcesList(ctx context.Context, req *Request) (any, *RPCError) {
	resources := []Resource{
		{
			URI:         "mcpd://server/info",
			Name:        "Server information",
			Description: "Name, version, and protocol revision of this server.",
			MimeType:    "application/json",
		},
		{
			URI:         "mcpd://server/tools",
			Name:        "Tool catalog",
			Description: "Names and categories of every registered tool.",
			MimeType:    "application/json",
		},
	}
	return map[string]any{"resources": resources}, nil
}

func (d *Dispatcher) handleResourcesRead(ctx context.Context, req *Request) (any, *RPCError) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params"}
	}

	switch params.URI {
	case "mcpd://server/info":
		payload, _ := json.MarshalIndent(map[string]any{
			"name":     version.ServerName,
			"version":  version.Version,
			"protocol": version.ProtocolVersion,
		}, "", "  ")
		return map[string]any{"contents": []ResourceContent{{
			URI: params.URI, MimeType: "application/json", Text: string(payload),
		}}}, nil
	case "mcpd://server/tools":
		names := make([]string, 0)
		for _, schema := range d.registry.List() {
			if name, ok := schema["name"].(string); ok {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		payload, _ := json.MarshalIndent(map[string]any{"tools": names}, "", "  ")
		return map[string]any{"contents": []ResourceContent{{
			URI: params.URI, MimeType: "application/json", Text: string(payload),
		}}}, nil
	default:
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("Unknown resource: %s", params.URI)}
	}
}

var promptCatalog = []Prompt{
	{
		Name:        "run_command",
		Description: "Ask for a single command to be run and its output summarized.",
		Arguments: []PromptArgument{
			{Name: "command", Description: "Command to run", Required: true},
		},
	},
	{
		Name:        "investigate_failure",
		Description: "Walk through a failing command's output and suggest next steps.",
		Arguments: []PromptArgument{
			{Name: "command", Description: "Command that failed", Required: true},
			{Name: "error", Description: "Observed error output", Required: false},
		},
	},
}

func (d *Dispatcher) handlePromptsList(ctx context.Context, req *Request) (any, *RPCError) {
	return map[string]any{"prompts": promptCatalog}, nil
}

func (d *Dispatcher) handlePromptsGet(ctx context.Context, req *Request) (any, *RPCError) {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params"}
	}

	switch params.Name {
	case "run_command":
		command := params.Arguments["command"]
		text := fmt.Sprintf("Run the following command with the bash_command tool and summarize its output:\n\n%s", command)
		return map[string]any{
			"description": "Run one command and summarize the output.",
			"messages": []PromptMessage{{
				Role:    "user",
				Content: PromptContent{Type: "text", Text: text},
			}},
		}, nil
	case "investigate_failure":
		var b strings.Builder
		fmt.Fprintf(&b, "The command below failed. Inspect the workspace with the available tools and explain the failure.\n\nCommand: %s\n", params.Arguments["command"])
		if errText := params.Arguments["error"]; errText != "" {
			fmt.Fprintf(&b, "\nObserved error:\n%s\n", errText)
		}
		return map[string]any{
			"description": "Investigate a failing command.",
			"messages": []PromptMessage{{
				Role:    "user",
				Content: PromptContent{Type: "text", Text: b.String()},
			}},
		}, nil
	default:
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("Unknown prompt: %s", params.Name)}
	}
}
