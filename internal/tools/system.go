package tools

import (
	"context"
	"os"
	"runtime"
	"time"

	"mcpd/internal/version"
)

// SystemInfoTool reports static facts about the server process and host.
type SystemInfoTool struct {
	started time.Time
}

// NewSystemInfoTool constructs the system_info tool.
func NewSystemInfoTool() *SystemInfoTool {
	return &SystemInfoTool{started: time.Now()}
}

func (s *SystemInfoTool) Definition() Definition {
	return Definition{
		Name:        "system_info",
		Description: "Report server version, host OS and architecture, process id, and uptime.",
		Category:    CategorySystem,
		Params:      map[string]ParamSpec{},
		Required:    []string{},
	}
}

func (s *SystemInfoTool) Execute(ctx context.Context, args map[string]any) Result {
	hostname, _ := os.Hostname()
	return Ok(map[string]any{
		"server":         version.ServerName,
		"version":        version.Version,
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"go_version":     runtime.Version(),
		"num_cpu":        runtime.NumCPU(),
		"pid":            os.Getpid(),
		"hostname":       hostname,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}
