package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mcpd/internal/config"
	"mcpd/internal/execute"
	"mcpd/internal/protocol"
	"mcpd/internal/server"
	"mcpd/internal/task"
	"mcpd/internal/tools"
	"mcpd/internal/version"
	"mcpd/internal/workspace"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mcpd",
		Short:         "mcpd - command execution tool server",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}

			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			root, err := workspace.Resolve(cfg.Workspace)
			if err != nil {
				logger.Warn("failed to resolve workspace root", zap.Error(err))
				root = cfg.Workspace
			}
			root, _ = filepath.Abs(root)

			engine := execute.NewEngine(logger)
			tracker := task.NewTracker(logger)

			registry := tools.NewRegistry(logger,
				tools.NewBashTool(engine, root),
				tools.NewBackgroundTaskTool(tracker),
				tools.NewReadFileTool(root, cfg.ToolLimits.MaxFileBytes),
				tools.NewWriteFileTool(root),
				tools.NewListDirTool(root),
				tools.NewGrepTool(root, cfg.ToolLimits.GrepMaxResults, cfg.ToolLimits.GrepMaxBytes, cfg.Timeout),
				tools.NewWebFetchTool(cfg.ToolLimits.WebMaxBytes, cfg.Timeout),
				tools.NewGitStatusTool(engine, root),
				tools.NewSystemInfoTool(),
			)
			for _, issue := range registry.Audit() {
				logger.Warn("tool catalog issue",
					zap.String("tool", issue.Tool),
					zap.String("problem", issue.Problem))
			}

			dispatcher := protocol.NewDispatcher(registry, tracker, logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Info("server starting",
				zap.String("version", version.Version),
				zap.String("workspace", root),
				zap.Bool("http", cfg.HTTP))

			var runErr error
			if cfg.HTTP {
				runErr = server.NewHTTPServer(dispatcher, cfg.HTTPAddr, logger).Run(ctx)
			} else {
				runErr = server.NewStdioServer(dispatcher, os.Stdin, os.Stdout, logger).Run(ctx)
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			tracker.Shutdown(shutdownCtx)

			if runErr != nil && runErr != context.Canceled {
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().String("workspace", ".", "Workspace root path")
	cmd.Flags().String("timeout", config.DefaultTimeout.String(), "Default command timeout (e.g. 30s)")
	cmd.Flags().Bool("http", false, "Serve over HTTP instead of stdio")
	cmd.Flags().String("http-addr", config.DefaultHTTPAddr, "HTTP listen address")
	cmd.Flags().Bool("verbose", false, "Enable verbose logging")
	cmd.Flags().String("log-file", "", "Write logs to a file instead of stderr")

	return cmd
}

// buildLogger writes to stderr (or the configured file) so the stdio
// transport keeps stdout clean for protocol frames.
func buildLogger(cfg config.Config) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Verbose {
		level = zap.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.LogFile != "" {
		zcfg.OutputPaths = []string{cfg.LogFile}
		zcfg.ErrorOutputPaths = []string{cfg.LogFile}
	}
	return zcfg.Build()
}
