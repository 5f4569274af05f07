package refresh

import (
	"context"
	"fmt"
	"log/slog"

	"glitchls/internal/command"
	"glitchls/internal/config"
	"glitchls/internal/findings"
	"glitchls/internal/observ"
	"glitchls/internal/runner"
)

// Pipeline is the stateless part of a refresh: build the command, run the
// analyzer, parse its output.
type Pipeline struct {
	Runner  runner.Runner
	Command command.Options
	Logger  *slog.Logger
}

// Analyze runs the analyzer for path under snap. Skip outcomes are returned
// as command.ErrSkipDisabled / command.ErrSkipNoDialect; analyzer failures as
// *runner.ExecutionError. timer may be nil.
func (p Pipeline) Analyze(ctx context.Context, path string, snap config.Snapshot, timer *observ.Timer) ([]findings.Finding, error) {
	idx := timer.Begin(observ.PhaseCommand)
	line, err := command.Build(path, snap, p.Command)
	timer.End(idx, "")
	if err != nil {
		return nil, err
	}
	format, err := findings.FormatByName(snap.OutputFormat)
	if err != nil {
		return nil, err
	}

	idx = timer.Begin(observ.PhaseExec)
	out, err := p.Runner.Run(ctx, line)
	timer.End(idx, line.Dialect.String())
	if err != nil {
		return nil, err
	}

	idx = timer.Begin(observ.PhaseParse)
	list, skipped := findings.ParseWithStats(out, format)
	timer.End(idx, fmt.Sprintf("%d findings", len(list)))
	if skipped > 0 {
		p.logger().Debug("Dropped malformed analyzer records",
			slog.String("path", path),
			slog.Int("skipped", skipped),
		)
	}
	return list, nil
}

func (p Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
