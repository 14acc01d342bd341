package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Workspace != "." {
		t.Errorf("Workspace = %q, want %q", cfg.Workspace, ".")
	}
	if cfg.ToolLimits.GrepMaxResults != DefaultGrepResults {
		t.Errorf("GrepMaxResults = %d, want %d", cfg.ToolLimits.GrepMaxResults, DefaultGrepResults)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MCPD_TIMEOUT_SECONDS", "90")
	t.Setenv("MCPD_HTTP_ADDR", "0.0.0.0:9000")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout)
	}
	if cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("HTTPAddr = %q, want 0.0.0.0:9000", cfg.HTTPAddr)
	}
}

func TestLoadClampsTimeout(t *testing.T) {
	t.Setenv("MCPD_TIMEOUT_SECONDS", "9999")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != MaxTimeout {
		t.Errorf("Timeout = %v, want clamped to %v", cfg.Timeout, MaxTimeout)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("MCPD_TIMEOUT", "not-a-duration")

	if _, err := Load(nil); err == nil {
		t.Fatal("expected error for malformed timeout")
	}
}
