package lsp

import (
	"encoding/json"
	"strings"

	"glitchls/internal/config"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	if !s.applySettings(params.Settings) {
		return nil
	}
	s.trigger.ConfigurationChanged(s.baseCtx, s.openDocuments())
	return nil
}

// applySettings stores the "glitch" section of raw. It reports whether the
// payload contained one.
func (s *Server) applySettings(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.logf("ignoring malformed settings: %v", err)
		return false
	}
	if settings.Glitch == nil {
		return false
	}
	s.source.SetClient(settings.Glitch.overrides())
	if settings.Glitch.LSP.Trace != nil {
		s.mu.Lock()
		s.traceLSP = *settings.Glitch.LSP.Trace
		s.mu.Unlock()
	}
	return true
}

// overrides converts editor settings. An empty tech means "not set" so the
// dialect is inferred from the file extension.
func (g *glitchSettings) overrides() config.Overrides {
	out := config.Overrides{
		Enable:            g.Enable,
		ConfigurationPath: g.ConfigurationPath,
		OutputFormat:      g.OutputFormat,
	}
	if g.Tech != nil && strings.TrimSpace(*g.Tech) != "" {
		tech := strings.TrimSpace(*g.Tech)
		out.Tech = &tech
	}
	if g.Smells != nil {
		out.Smells = append([]string{}, g.Smells...)
	}
	return out
}

func (s *Server) currentTrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traceLSP
}
