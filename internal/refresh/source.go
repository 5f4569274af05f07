package refresh

import (
	"sync"

	"glitchls/internal/config"
	"glitchls/internal/project"
)

// ConfigSource yields the configuration for one refresh of a document.
type ConfigSource interface {
	Snapshot(doc Document) (config.Snapshot, error)
}

// StaticSource always returns the same snapshot.
type StaticSource config.Snapshot

// Snapshot implements ConfigSource.
func (s StaticSource) Snapshot(Document) (config.Snapshot, error) {
	return config.Snapshot(s).Apply(config.Overrides{}), nil
}

// LayeredSource combines, lowest first: built-in defaults, the .glitch.toml
// governing the document, and the settings pushed by the editor. The file is
// re-read on every call.
type LayeredSource struct {
	mu     sync.Mutex
	client config.Overrides
	onFile func(path string)
}

// NewLayeredSource creates a source. onFile, if set, is called with every
// .glitch.toml path that contributed to a snapshot.
func NewLayeredSource(onFile func(path string)) *LayeredSource {
	return &LayeredSource{onFile: onFile}
}

// SetClient replaces the editor-provided settings.
func (s *LayeredSource) SetClient(o config.Overrides) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = o
}

// Snapshot implements ConfigSource.
func (s *LayeredSource) Snapshot(doc Document) (config.Snapshot, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	snap := config.Default()
	if doc.Path != "" {
		path, file, err := project.DefaultsFor(doc.Path)
		if path != "" && s.onFile != nil {
			s.onFile(path)
		}
		if err != nil {
			return config.Snapshot{}, err
		}
		snap = snap.Apply(file)
	}
	snap = snap.Apply(client)
	if err := snap.Validate(); err != nil {
		return config.Snapshot{}, err
	}
	return snap, nil
}
