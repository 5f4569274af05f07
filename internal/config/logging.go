package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel converts a level name into a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q (expected: debug|info|warn|error)", s)
	}
}

// NewLogger builds a text logger writing to w at the given level.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// LogWithLogger logs the resolved settings, skipping irrelevant ones.
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: analyzer.path", "value", s.Analyzer.Path)
	if s.Analyzer.Shell {
		logger.InfoContext(ctx, "Config: analyzer.shell", "value", true)
	}
	logger.InfoContext(ctx, "Config: analyzer.timeout", "value", s.Analyzer.Timeout)
	logger.InfoContext(ctx, "Config: debounce", "value", s.Debounce)
	logger.InfoContext(ctx, "Config: max_parallel", "value", s.MaxParallel)
	if s.MetricsAddr != "" {
		logger.InfoContext(ctx, "Config: metrics_addr", "value", s.MetricsAddr)
	}
	if s.TraceFile != "" {
		logger.InfoContext(ctx, "Config: trace_file", "value", s.TraceFile)
	}
}

// SnapshotLogValue returns a slog.Value describing a snapshot.
func SnapshotLogValue(s Snapshot) slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", s.Enabled),
		slog.String("config_path", s.ConfigPath),
		slog.String("tech", s.DialectOverride),
		slog.Any("smells", s.Smells),
		slog.String("output_format", s.OutputFormat),
	)
}
