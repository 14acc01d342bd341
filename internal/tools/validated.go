package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// executeValidated runs schema validation before the tool implementation.
// On validation errors the implementation is never invoked. A panic inside
// a tool is recovered into a failed Result so one broken tool cannot take
// down the dispatcher.
func executeValidated(ctx context.Context, tool Tool, args map[string]any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Fail("tool panicked: %v", r)
		}
	}()

	def := tool.Definition()
	if problems := def.Validate(args); len(problems) > 0 {
		return Result{
			Success: false,
			Error:   strings.Join(problems, "; "),
			Meta:    map[string]any{"validation_errors": problems},
		}
	}

	result = tool.Execute(ctx, args)
	if !result.Success && result.Error == "" {
		// A tool must never report failure without a message.
		result.Error = fmt.Sprintf("%s failed without detail", def.Name)
	}
	return result
}

// decodeArgs maps validated arguments onto a typed input struct via a JSON
// round trip, mirroring how the wire delivered them.
func decodeArgs(args map[string]any, target any) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, target)
}
