// Package publish owns the per-document diagnostic collection.
//
// Every refresh obtains a Stamp before it starts. Stamps come from one
// process-wide counter, so they increase monotonically per document and are
// never reused, even after a document is closed and reopened. A publish is
// applied only when its stamp is still the latest issued for the document;
// anything older is a superseded refresh and is discarded.
package publish

import (
	"log/slog"
	"sync"

	"glitchls/internal/findings"
)

// Sink receives every change applied to the collection. An empty list means
// the document has no diagnostics.
type Sink interface {
	PublishDiagnostics(uri string, list []Diagnostic) error
}

// Stamp identifies one refresh of one document.
type Stamp struct {
	URI string
	Seq uint64
}

type entry struct {
	latest    uint64
	published bool
	diags     []Diagnostic
}

// Collection holds the current diagnostic set per document. All mutation goes
// through Begin, Publish and Clear.
type Collection struct {
	mu      sync.Mutex
	sinkMu  sync.Mutex
	next    uint64
	entries map[string]*entry
	sink    Sink
	logger  *slog.Logger
}

// NewCollection creates a collection forwarding changes to sink. A nil sink
// keeps state only.
func NewCollection(sink Sink, logger *slog.Logger) *Collection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{
		entries: make(map[string]*entry),
		sink:    sink,
		logger:  logger,
	}
}

// Begin issues a new stamp for uri, superseding every earlier one.
func (c *Collection) Begin(uri string) Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	e := c.entries[uri]
	if e == nil {
		e = &entry{}
		c.entries[uri] = e
	}
	e.latest = c.next
	return Stamp{URI: uri, Seq: c.next}
}

// Current reports whether stamp is still the latest for its document.
func (c *Collection) Current(stamp Stamp) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(stamp)
}

func (c *Collection) currentLocked(stamp Stamp) bool {
	if stamp.Seq == 0 {
		return false
	}
	e := c.entries[stamp.URI]
	return e != nil && e.latest == stamp.Seq
}

// Publish replaces the document's whole set with the diagnostics for list if
// stamp is current. It returns false when the result was discarded.
func (c *Collection) Publish(stamp Stamp, list []findings.Finding) bool {
	return c.PublishDiagnostics(stamp, ToDiagnostics(list))
}

// PublishDiagnostics is Publish for already-mapped diagnostics.
func (c *Collection) PublishDiagnostics(stamp Stamp, diags []Diagnostic) bool {
	if diags == nil {
		diags = []Diagnostic{}
	}
	// sinkMu orders sink calls the same way as state changes, so a client
	// never sees an older set after a newer one.
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	c.mu.Lock()
	if !c.currentLocked(stamp) {
		c.mu.Unlock()
		c.logger.Debug("Discarding superseded diagnostics",
			slog.String("uri", stamp.URI),
			slog.Uint64("seq", stamp.Seq),
		)
		return false
	}
	e := c.entries[stamp.URI]
	e.diags = diags
	e.published = true
	c.mu.Unlock()

	c.send(stamp.URI, diags)
	return true
}

// Clear removes the document's entry and invalidates all of its stamps. The
// sink is told about the empty set only if something was published before.
func (c *Collection) Clear(uri string) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	c.mu.Lock()
	e, ok := c.entries[uri]
	delete(c.entries, uri)
	c.mu.Unlock()

	if ok && e.published {
		c.send(uri, []Diagnostic{})
	}
}

// Get returns a copy of the document's current set and whether an entry
// exists.
func (c *Collection) Get(uri string) ([]Diagnostic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uri]
	if !ok {
		return nil, false
	}
	out := make([]Diagnostic, len(e.diags))
	copy(out, e.diags)
	return out, true
}

// URIs returns the documents that currently have an entry.
func (c *Collection) URIs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for uri := range c.entries {
		out = append(out, uri)
	}
	return out
}

// ClearAll removes every entry, e.g. on shutdown.
func (c *Collection) ClearAll() {
	for _, uri := range c.URIs() {
		c.Clear(uri)
	}
}

func (c *Collection) send(uri string, diags []Diagnostic) {
	if c.sink == nil {
		return
	}
	if err := c.sink.PublishDiagnostics(uri, diags); err != nil {
		c.logger.Warn("Failed to publish diagnostics",
			slog.String("uri", uri),
			slog.String("error", err.Error()),
		)
	}
}
