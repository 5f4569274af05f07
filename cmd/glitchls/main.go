package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"glitchls/internal/config"
	"glitchls/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "glitchls",
	Short:         "Language server for the GLITCH infrastructure-as-code analyzer",
	Long:          `glitchls runs GLITCH on Ansible, Chef, Puppet, Terraform and Docker files and reports its findings as editor diagnostics`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// errFindings makes the process exit with status 1 without printing anything.
var errFindings = errors.New("findings reported")

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("analyzer", "glitch", "analyzer executable")
	rootCmd.PersistentFlags().Bool("shell", false, "run the analyzer through sh -c")
	rootCmd.PersistentFlags().Duration("timeout", 0, "analyzer timeout per run (0 = default)")
	rootCmd.PersistentFlags().Int("max-parallel", config.DefaultMaxParallel, "maximum concurrent analyzer processes (values below 1 use the default)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
}

// main executes the root command. Any error exits with status 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "glitchls: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadSettings resolves process settings for cmd and installs the logger as
// the slog default. Logs always go to stderr.
func loadSettings(cmd *cobra.Command) (*config.Settings, *slog.Logger, error) {
	settings, err := config.LoadSettingsWithFlags(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	logger, err := config.NewLogger(os.Stderr, settings.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return settings, logger, nil
}

// useColor resolves the --color flag for output written to f.
func useColor(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return isTerminal(f) && os.Getenv("NO_COLOR") == "", nil
	default:
		return false, fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
}

// applyColor sets the process-wide color switch used by fatih/color.
func applyColor(cmd *cobra.Command, f *os.File) (bool, error) {
	enabled, err := useColor(cmd, f)
	if err != nil {
		return false, err
	}
	color.NoColor = !enabled
	return enabled, nil
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func termSize(f *os.File) (int, int, error) {
	return term.GetSize(int(f.Fd()))
}
