// Package runner executes analyzer invocations as child processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"glitchls/internal/command"
)

// DefaultTimeout bounds a single analyzer invocation.
const DefaultTimeout = 30 * time.Second

// waitDelay bounds how long output pipes are drained after the process is
// killed, in case something outside its process group still holds them.
const waitDelay = 2 * time.Second

// Runner executes a command line and returns its standard output.
type Runner interface {
	Run(ctx context.Context, line command.Line) ([]byte, error)
}

// Option configures an Exec runner.
type Option func(*Exec)

// WithTimeout sets the per-invocation timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Exec) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Exec) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Exec runs analyzer invocations with os/exec. It holds no per-call state and
// is safe for concurrent use.
type Exec struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Exec runner.
func New(opts ...Option) *Exec {
	r := &Exec{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether the executable of line can be found in PATH.
func (r *Exec) Available(line command.Line) bool {
	name, _ := line.Exec()
	if _, err := exec.LookPath(name); err != nil {
		r.logger.Warn("Analyzer not installed", slog.String("command", name))
		return false
	}
	return true
}

// Run executes line once. A non-zero exit, spawn failure or timeout is
// returned as *ExecutionError; standard output is returned only on success.
func (r *Exec) Run(ctx context.Context, line command.Line) ([]byte, error) {
	rendered := line.String()
	ctx, span := startRunSpan(ctx, line.Dialect.String(), rendered)
	start := time.Now()

	out, err := r.run(ctx, line, rendered)

	endRunSpan(span, len(out), err)
	recordRunMetrics(ctx, line.Dialect.String(), time.Since(start), err == nil)
	r.logger.Debug("Analyzer finished",
		slog.String("command", rendered),
		slog.Duration("duration", time.Since(start)),
		slog.Int("output_bytes", len(out)),
		slog.Bool("success", err == nil),
	)
	return out, err
}

func (r *Exec) run(ctx context.Context, line command.Line, rendered string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name, args := line.Exec()
	cmd := exec.CommandContext(cmdCtx, name, args...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if cmdCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, &ExecutionError{
			Command:    rendered,
			ExitStatus: -1,
			Stderr:     stderr.String(),
			TimedOut:   true,
			Err:        cmdCtx.Err(),
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		execErr := &ExecutionError{
			Command:    rendered,
			ExitStatus: -1,
			Stderr:     stderr.String(),
			Err:        err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitStatus = exitErr.ExitCode()
			if execErr.ExitStatus < 0 {
				execErr.Signal = exitErr.ProcessState.String()
			}
		}
		return nil, execErr
	}
	return stdout.Bytes(), nil
}
