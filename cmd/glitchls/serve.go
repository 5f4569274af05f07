package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"glitchls/internal/command"
	"glitchls/internal/config"
	"glitchls/internal/lsp"
	"glitchls/internal/runner"
	"glitchls/internal/telemetry"
	"glitchls/internal/version"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"lsp"},
	Short:   "Run the language server over stdio",
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().Duration("debounce", config.DefaultDebounce, "quiet period after an edit before analysis (0 disables debouncing)")
	serveCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	serveCmd.Flags().String("trace-file", "", "append OpenTelemetry spans to this file")
	serveCmd.Flags().Bool("watch-config", true, "re-analyze open documents when .glitch.toml changes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config.LogWithLogger(settings, logger)

	session, err := startProfiling(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Warn("Profiling failed", "error", err)
		}
	}()

	watch, err := cmd.Flags().GetBool("watch-config")
	if err != nil {
		return fmt.Errorf("failed to get watch-config flag: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceVersion: version.Version,
		MetricsAddr:    settings.MetricsAddr,
		TraceFile:      settings.TraceFile,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	exec := runner.New(
		runner.WithTimeout(settings.Analyzer.Timeout),
		runner.WithLogger(logger),
	)
	cmdOpts := command.Options{
		Analyzer: settings.Analyzer.Path,
		Shell:    settings.Analyzer.Shell,
	}
	// Keep serving when the analyzer is missing; each refresh reports it.
	exec.Available(command.Line{Name: cmdOpts.Analyzer})

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Runner:      exec,
		Command:     cmdOpts,
		Debounce:    serverDebounce(settings.Debounce),
		MaxParallel: settings.MaxParallel,
		Logger:      logger,
		WatchConfig: watch,
	})
	if err := server.Run(ctx); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}

// serverDebounce maps the debounce setting, where zero disables debouncing,
// onto lsp.ServerOptions, where zero selects the default.
func serverDebounce(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
