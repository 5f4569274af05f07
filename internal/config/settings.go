package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults shared by the CLI flags, the settings loader and the trigger.
const (
	// DefaultDebounce is the quiet period after an edit before analysis.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultMaxParallel bounds concurrently running analyzer processes.
	DefaultMaxParallel = 4
)

// AnalyzerSettings controls how the external analyzer is launched.
type AnalyzerSettings struct {
	Path    string        `mapstructure:"path"`
	Shell   bool          `mapstructure:"shell"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Settings are process-wide server settings, fixed for the lifetime of the
// process. Per-document analysis options live in Snapshot.
type Settings struct {
	Analyzer AnalyzerSettings `mapstructure:"analyzer"`
	// Debounce of zero disables debouncing; negative values use the default.
	Debounce time.Duration `mapstructure:"debounce"`
	// MaxParallel below 1 uses the default.
	MaxParallel int    `mapstructure:"max_parallel"`
	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	TraceFile   string `mapstructure:"trace_file"`
}

// LoadSettings loads settings from environment variables and an optional
// .env file.
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	v.SetDefault("analyzer.path", "glitch")
	v.SetDefault("analyzer.shell", false)
	v.SetDefault("analyzer.timeout", 30*time.Second)
	v.SetDefault("debounce", DefaultDebounce)
	v.SetDefault("max_parallel", DefaultMaxParallel)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("trace_file", "")

	v.SetEnvPrefix("GLITCHLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("analyzer.path", "GLITCHLS_ANALYZER_PATH")
	_ = v.BindEnv("analyzer.shell", "GLITCHLS_ANALYZER_SHELL")
	_ = v.BindEnv("analyzer.timeout", "GLITCHLS_ANALYZER_TIMEOUT")

	if flags != nil {
		bindFlag(v, flags, "analyzer.path", "analyzer")
		bindFlag(v, flags, "analyzer.shell", "shell")
		bindFlag(v, flags, "analyzer.timeout", "timeout")
		bindFlag(v, flags, "debounce", "debounce")
		bindFlag(v, flags, "max_parallel", "max-parallel")
		bindFlag(v, flags, "log_level", "log-level")
		bindFlag(v, flags, "metrics_addr", "metrics-addr")
		bindFlag(v, flags, "trace_file", "trace-file")
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // a missing .env is fine

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}
	settings.Analyzer.Path = strings.TrimSpace(settings.Analyzer.Path)
	if settings.Analyzer.Path == "" {
		settings.Analyzer.Path = "glitch"
	}
	if settings.Debounce < 0 {
		settings.Debounce = DefaultDebounce
	}
	if settings.MaxParallel <= 0 {
		settings.MaxParallel = DefaultMaxParallel
	}
	return &settings, nil
}

// bindFlag binds a flag only when the command defines it, so commands can
// share the loader with different flag sets.
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) {
	if f := flags.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}
