// Package config resolves server settings from defaults, a config file,
// environment variables, and CLI flags, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultTimeout     = 30 * time.Second
	MaxTimeout         = 300 * time.Second
	DefaultHTTPAddr    = "127.0.0.1:8731"
	DefaultGrepResults = 200
	DefaultGrepBytes   = 64 * 1024
	DefaultWebBytes    = 256 * 1024
	DefaultFileBytes   = 256 * 1024
)

// ToolLimits bounds tool output sizes.
type ToolLimits struct {
	GrepMaxResults int `mapstructure:"grep_max_results"`
	GrepMaxBytes   int `mapstructure:"grep_max_bytes"`
	WebMaxBytes    int `mapstructure:"web_max_bytes"`
	MaxFileBytes   int `mapstructure:"max_file_bytes"`
}

// Config holds runtime configuration values.
type Config struct {
	Workspace  string
	Timeout    time.Duration
	HTTP       bool
	HTTPAddr   string
	Verbose    bool
	LogFile    string
	ToolLimits ToolLimits
}

type rawConfig struct {
	Workspace  string     `mapstructure:"workspace"`
	Timeout    string     `mapstructure:"timeout"`
	HTTP       bool       `mapstructure:"http"`
	HTTPAddr   string     `mapstructure:"http_addr"`
	Verbose    bool       `mapstructure:"verbose"`
	LogFile    string     `mapstructure:"log_file"`
	ToolLimits ToolLimits `mapstructure:"tool_limits"`
}

// Load resolves configuration from defaults, config files, env, and flags.
func Load(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MCPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("workspace", ".")
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("http", false)
	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("verbose", false)
	v.SetDefault("log_file", "")
	v.SetDefault("tool_limits.grep_max_results", DefaultGrepResults)
	v.SetDefault("tool_limits.grep_max_bytes", DefaultGrepBytes)
	v.SetDefault("tool_limits.web_max_bytes", DefaultWebBytes)
	v.SetDefault("tool_limits.max_file_bytes", DefaultFileBytes)

	if cmd != nil {
		_ = v.BindPFlag("workspace", cmd.Flags().Lookup("workspace"))
		_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
		_ = v.BindPFlag("http", cmd.Flags().Lookup("http"))
		_ = v.BindPFlag("http_addr", cmd.Flags().Lookup("http-addr"))
		_ = v.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
		_ = v.BindPFlag("log_file", cmd.Flags().Lookup("log-file"))
	}

	if seconds := os.Getenv("MCPD_TIMEOUT_SECONDS"); seconds != "" {
		v.Set("timeout", seconds+"s")
	}

	if err := loadConfigFile(v); err != nil {
		return Config{}, err
	}

	var raw rawConfig
	decoder, _ := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "mapstructure", Result: &raw})
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return Config{}, err
	}

	timeout := DefaultTimeout
	if raw.Timeout != "" {
		parsed, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid timeout duration: %w", err)
		}
		timeout = parsed
	}

	cfg := Config{
		Workspace:  raw.Workspace,
		Timeout:    timeout,
		HTTP:       raw.HTTP,
		HTTPAddr:   raw.HTTPAddr,
		Verbose:    raw.Verbose,
		LogFile:    raw.LogFile,
		ToolLimits: raw.ToolLimits,
	}

	if cfg.Workspace == "" {
		cfg.Workspace = "."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout > MaxTimeout {
		cfg.Timeout = MaxTimeout
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.ToolLimits.GrepMaxResults <= 0 {
		cfg.ToolLimits.GrepMaxResults = DefaultGrepResults
	}
	if cfg.ToolLimits.GrepMaxBytes <= 0 {
		cfg.ToolLimits.GrepMaxBytes = DefaultGrepBytes
	}
	if cfg.ToolLimits.WebMaxBytes <= 0 {
		cfg.ToolLimits.WebMaxBytes = DefaultWebBytes
	}
	if cfg.ToolLimits.MaxFileBytes <= 0 {
		cfg.ToolLimits.MaxFileBytes = DefaultFileBytes
	}

	return cfg, nil
}

func loadConfigFile(v *viper.Viper) error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	base := filepath.Join(configDir, "mcpd")
	candidates := []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config.yml"),
		filepath.Join(base, "config.json"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
			return nil
		}
	}
	return nil
}
