package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"glitchls/internal/command"
	"glitchls/internal/config"
	"glitchls/internal/diagfmt"
	"glitchls/internal/dialect"
	"glitchls/internal/observ"
	"glitchls/internal/publish"
	"glitchls/internal/refresh"
	"glitchls/internal/runner"
	"glitchls/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file|directory>...",
	Short: "Analyze files once and print the findings",
	Long: `Analyze the given files with GLITCH, the same way the language server does,
and print the findings. Directories are searched for files of a known dialect.
Exits with status 1 when anything is reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|short)")
	checkCmd.Flags().String("tech", "", "dialect to analyze as (ansible|chef|puppet|terraform|docker)")
	checkCmd.Flags().StringSlice("smells", nil, "smell groups to check (repeatable)")
	checkCmd.Flags().String("config", "", "GLITCH configuration file")
	checkCmd.Flags().String("output-format", "", "analyzer output format (linter|csv)")
	checkCmd.Flags().String("path-mode", "auto", "how to print paths (auto|absolute|relative|basename)")
	checkCmd.Flags().Bool("context", true, "print the offending source line")
	checkCmd.Flags().Bool("timings", false, "show timing information")
	checkCmd.Flags().Bool("progress", false, "show per-file progress on stderr when it is a terminal")
}

type checkOptions struct {
	format   string
	pathMode diagfmt.PathMode
	context  bool
	timings  bool
	progress bool
	client   config.Overrides
}

func readCheckOptions(cmd *cobra.Command) (checkOptions, error) {
	var opts checkOptions
	flags := cmd.Flags()

	format, err := flags.GetString("format")
	if err != nil {
		return opts, fmt.Errorf("failed to get format flag: %w", err)
	}
	opts.format = strings.ToLower(format)
	switch opts.format {
	case "pretty", "json", "short":
	default:
		return opts, fmt.Errorf("unsupported format %q (must be pretty, json or short)", format)
	}

	pathMode, err := flags.GetString("path-mode")
	if err != nil {
		return opts, fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	mode, ok := diagfmt.ParsePathMode(pathMode)
	if !ok {
		return opts, fmt.Errorf("unsupported path mode %q", pathMode)
	}
	opts.pathMode = mode

	if opts.context, err = flags.GetBool("context"); err != nil {
		return opts, fmt.Errorf("failed to get context flag: %w", err)
	}
	if opts.timings, err = flags.GetBool("timings"); err != nil {
		return opts, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if opts.progress, err = flags.GetBool("progress"); err != nil {
		return opts, fmt.Errorf("failed to get progress flag: %w", err)
	}

	if flags.Changed("tech") {
		tech, err := flags.GetString("tech")
		if err != nil {
			return opts, fmt.Errorf("failed to get tech flag: %w", err)
		}
		if _, err := dialect.Parse(tech); err != nil {
			return opts, err
		}
		opts.client.Tech = &tech
	}
	if flags.Changed("smells") {
		smells, err := flags.GetStringSlice("smells")
		if err != nil {
			return opts, fmt.Errorf("failed to get smells flag: %w", err)
		}
		opts.client.Smells = smells
	}
	if flags.Changed("config") {
		cfg, err := flags.GetString("config")
		if err != nil {
			return opts, fmt.Errorf("failed to get config flag: %w", err)
		}
		opts.client.ConfigurationPath = &cfg
	}
	if flags.Changed("output-format") {
		of, err := flags.GetString("output-format")
		if err != nil {
			return opts, fmt.Errorf("failed to get output-format flag: %w", err)
		}
		opts.client.OutputFormat = &of
	}
	return opts, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	opts, err := readCheckOptions(cmd)
	if err != nil {
		return err
	}
	colorOn, err := applyColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	session, err := startProfiling(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Warn("Profiling failed", "error", err)
		}
	}()

	files, err := collectFiles(args, opts.client.Tech != nil)
	if err != nil {
		return err
	}

	var timer *observ.Timer
	if opts.timings {
		timer = observ.NewTimer()
	}

	source := refresh.NewLayeredSource(nil)
	source.SetClient(opts.client)
	pipeline := refresh.Pipeline{
		Runner: runner.New(
			runner.WithTimeout(settings.Analyzer.Timeout),
			runner.WithLogger(logger),
		),
		Command: command.Options{
			Analyzer: settings.Analyzer.Path,
			Shell:    settings.Analyzer.Shell,
		},
		Logger: logger,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	reports := make([]diagfmt.FileReport, len(files))
	analyze := func(emit func(ui.Event)) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(settings.MaxParallel)
		for i, path := range files {
			g.Go(func() error {
				emit(ui.Event{File: path, Status: ui.StatusRunning})
				reports[i] = checkFile(gctx, pipeline, source, path, timer)
				emit(reportEvent(reports[i]))
				return nil
			})
		}
		return g.Wait()
	}
	if opts.progress && isTerminal(os.Stderr) {
		err = runWithProgress("glitch", files, analyze)
	} else {
		err = analyze(func(ui.Event) {})
	}
	if err != nil {
		return err
	}

	cwd, _ := os.Getwd()
	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		var report *observ.Report
		if timer != nil {
			r := timer.Report()
			report = &r
		}
		err = diagfmt.JSON(out, reports, report, diagfmt.JSONOpts{PathMode: opts.pathMode, BaseDir: cwd, Indent: true})
	case "short":
		err = diagfmt.Short(out, reports, opts.pathMode, cwd)
	default:
		err = diagfmt.Pretty(out, reports, diagfmt.PrettyOpts{
			Color:    colorOn,
			PathMode: opts.pathMode,
			BaseDir:  cwd,
			Context:  opts.context,
			Width:    terminalWidth(os.Stdout),
		})
	}
	if err != nil {
		return err
	}
	if timer != nil && opts.format != "json" {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be analyzed", failed, len(reports))
	}
	if diagfmt.Count(reports) > 0 {
		return errFindings
	}
	return nil
}

func checkFile(ctx context.Context, pipeline refresh.Pipeline, source refresh.ConfigSource, path string, timer *observ.Timer) diagfmt.FileReport {
	report := diagfmt.FileReport{Path: path}

	idx := timer.Begin(observ.PhaseConfig)
	snap, err := source.Snapshot(refresh.Document{Path: path})
	timer.End(idx, filepath.Base(path))
	if err != nil {
		report.Err = err
		return report
	}
	report.Dialect = dialect.Resolve(snap.DialectOverride, path).String()

	list, err := pipeline.Analyze(ctx, path, snap, timer)
	var execErr *runner.ExecutionError
	switch {
	case command.IsSkip(err):
		report.Skipped = "no dialect"
		if errors.Is(err, command.ErrSkipDisabled) {
			report.Skipped = "disabled"
		}
	case errors.As(err, &execErr):
		report.Err = errors.New(execErr.UserMessage())
	case err != nil:
		report.Err = err
	default:
		report.Diagnostics = publish.ToDiagnostics(list)
	}
	return report
}

func reportEvent(r diagfmt.FileReport) ui.Event {
	ev := ui.Event{File: r.Path, Status: ui.StatusDone, Findings: len(r.Diagnostics)}
	switch {
	case r.Err != nil:
		ev.Status = ui.StatusError
	case r.Skipped != "":
		ev.Status = ui.StatusSkipped
	}
	return ev
}

// collectFiles expands directories into the files below them with a known
// dialect. With an explicit dialect, every regular file qualifies. Hidden
// directories are skipped.
func collectFiles(args []string, anyExt bool) ([]string, error) {
	var files []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, abs)
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if anyExt || dialect.FromPath(path).Valid() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func terminalWidth(f *os.File) int {
	if !isTerminal(f) {
		return 0
	}
	w, _, err := termSize(f)
	if err != nil {
		return 0
	}
	return w
}
