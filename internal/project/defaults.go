package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"glitchls/internal/config"
)

type defaultsFile struct {
	Enable            bool     `toml:"enable"`
	ConfigurationPath string   `toml:"configuration_path"`
	Tech              string   `toml:"tech"`
	Smells            []string `toml:"smells"`
	OutputFormat      string   `toml:"output_format"`
}

// LoadDefaults parses a .glitch.toml file into configuration overrides. Only
// keys present in the file are set. A relative configuration_path is resolved
// against the file's directory.
func LoadDefaults(path string) (config.Overrides, error) {
	var cfg defaultsFile
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return config.Overrides{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.Overrides{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	var out config.Overrides
	if meta.IsDefined("enable") {
		enable := cfg.Enable
		out.Enable = &enable
	}
	if meta.IsDefined("configuration_path") {
		p := strings.TrimSpace(cfg.ConfigurationPath)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), filepath.FromSlash(p))
		}
		out.ConfigurationPath = &p
	}
	if meta.IsDefined("tech") {
		tech := strings.TrimSpace(cfg.Tech)
		out.Tech = &tech
	}
	if meta.IsDefined("smells") {
		out.Smells = make([]string, 0, len(cfg.Smells))
		out.Smells = append(out.Smells, cfg.Smells...)
	}
	if meta.IsDefined("output_format") {
		format := strings.TrimSpace(cfg.OutputFormat)
		out.OutputFormat = &format
	}
	return out, nil
}

// DefaultsFor locates the .glitch.toml governing documentPath and loads it.
// It returns the file path (empty when none exists) alongside the overrides.
func DefaultsFor(documentPath string) (string, config.Overrides, error) {
	path, ok, err := FindConfigFile(filepath.Dir(documentPath))
	if err != nil || !ok {
		return "", config.Overrides{}, err
	}
	overrides, err := LoadDefaults(path)
	if err != nil {
		return path, config.Overrides{}, err
	}
	return path, overrides, nil
}
