package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"glitchls/internal/command"
	"glitchls/internal/config"
	"glitchls/internal/findings"
	"glitchls/internal/observ"
	"glitchls/internal/publish"
	"glitchls/internal/runner"
)

// Document identifies an open editor document.
type Document struct {
	URI  string
	Path string
}

// Notifier shows a failure to the user.
type Notifier interface {
	ShowError(message string) error
}

// Outcome describes how a refresh ended.
type Outcome uint8

const (
	// OutcomePublished means a fresh set replaced the document's diagnostics.
	OutcomePublished Outcome = iota
	// OutcomeCleared means analysis is disabled and the set was emptied.
	OutcomeCleared
	// OutcomeSkipped means no dialect applies; the set is unchanged.
	OutcomeSkipped
	// OutcomeSuperseded means a newer refresh of the same document exists.
	OutcomeSuperseded
	// OutcomeFailed means configuration or the analyzer failed; the set is
	// unchanged.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeCleared:
		return "cleared"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

const (
	DefaultDebounce    = config.DefaultDebounce
	DefaultMaxParallel = config.DefaultMaxParallel
)

// Options configures a Trigger.
type Options struct {
	Runner      runner.Runner
	Command     command.Options
	Config      ConfigSource
	Notifier    Notifier
	Logger      *slog.Logger
	Debounce    time.Duration
	MaxParallel int
	// Trace logs a phase timing summary for every refresh.
	Trace bool
}

// Trigger turns editor events into refreshes of the affected documents.
type Trigger struct {
	coll     *publish.Collection
	pipeline Pipeline
	config   ConfigSource
	notifier Notifier
	logger   *slog.Logger
	debounce time.Duration
	sem      *semaphore.Weighted
	trace    bool

	wg sync.WaitGroup

	mu       sync.Mutex
	timers   map[string]*time.Timer
	notified map[string]string
	stopped  bool
}

// New creates a trigger publishing into coll.
func New(coll *publish.Collection, opts Options) *Trigger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce < 0 {
		debounce = 0
	}
	parallel := opts.MaxParallel
	if parallel <= 0 {
		parallel = DefaultMaxParallel
	}
	src := opts.Config
	if src == nil {
		src = NewLayeredSource(nil)
	}
	return &Trigger{
		coll: coll,
		pipeline: Pipeline{
			Runner:  opts.Runner,
			Command: opts.Command,
			Logger:  logger,
		},
		config:   src,
		notifier: opts.Notifier,
		logger:   logger,
		debounce: debounce,
		sem:      semaphore.NewWeighted(int64(parallel)),
		trace:    opts.Trace,
		timers:   make(map[string]*time.Timer),
		notified: make(map[string]string),
	}
}

// Activate refreshes the active document, if there is one.
func (t *Trigger) Activate(ctx context.Context, active *Document) {
	if active == nil {
		return
	}
	t.ActiveChanged(ctx, *active)
}

// ActiveChanged refreshes doc immediately.
func (t *Trigger) ActiveChanged(ctx context.Context, doc Document) {
	t.now(ctx, doc)
}

// Saved refreshes doc immediately.
func (t *Trigger) Saved(ctx context.Context, doc Document) {
	t.now(ctx, doc)
}

// Changed schedules a refresh of doc after the debounce window. The stamp is
// taken now, so any run already in flight for doc is superseded.
func (t *Trigger) Changed(ctx context.Context, doc Document) {
	if t.debounce == 0 {
		t.now(ctx, doc)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopTimerLocked(doc.URI)
	stamp := t.coll.Begin(doc.URI)
	t.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(t.debounce, func() {
		defer t.wg.Done()
		t.mu.Lock()
		if t.timers[doc.URI] == timer {
			delete(t.timers, doc.URI)
		}
		t.mu.Unlock()
		t.run(ctx, doc, stamp)
	})
	t.timers[doc.URI] = timer
}

// Closed drops everything known about doc and never runs the analyzer.
func (t *Trigger) Closed(doc Document) {
	t.mu.Lock()
	t.stopTimerLocked(doc.URI)
	delete(t.notified, doc.URI)
	t.mu.Unlock()
	t.coll.Clear(doc.URI)
}

// ConfigurationChanged refreshes every given document.
func (t *Trigger) ConfigurationChanged(ctx context.Context, docs []Document) {
	for _, doc := range docs {
		t.now(ctx, doc)
	}
}

// Refresh runs one refresh of doc synchronously.
func (t *Trigger) Refresh(ctx context.Context, doc Document) Outcome {
	return t.run(ctx, doc, t.coll.Begin(doc.URI))
}

// Wait blocks until all scheduled and running refreshes have finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// Stop cancels pending debounced refreshes and ignores later events.
func (t *Trigger) Stop() {
	t.mu.Lock()
	t.stopped = true
	for uri := range t.timers {
		t.stopTimerLocked(uri)
	}
	t.mu.Unlock()
}

func (t *Trigger) now(ctx context.Context, doc Document) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopTimerLocked(doc.URI)
	stamp := t.coll.Begin(doc.URI)
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		t.run(ctx, doc, stamp)
	}()
}

func (t *Trigger) stopTimerLocked(uri string) {
	timer, ok := t.timers[uri]
	if !ok {
		return
	}
	delete(t.timers, uri)
	if timer.Stop() {
		t.wg.Done()
	}
}

func (t *Trigger) run(ctx context.Context, doc Document, stamp publish.Stamp) (outcome Outcome) {
	ctx, span := startRefreshSpan(ctx, doc, stamp.Seq)
	defer span.End()

	var timer *observ.Timer
	if t.trace {
		timer = observ.NewTimer()
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Refresh panicked",
				slog.String("uri", doc.URI),
				slog.Any("panic", r),
			)
			outcome = OutcomeFailed
		}
		recordOutcome(ctx, span, outcome)
		t.logger.Debug("Refresh finished",
			slog.String("uri", doc.URI),
			slog.Uint64("seq", stamp.Seq),
			slog.String("outcome", outcome.String()),
		)
		if timer != nil {
			t.logger.Debug("Refresh timings",
				slog.String("uri", doc.URI),
				slog.String("summary", timer.Summary()),
			)
		}
	}()

	if !t.coll.Current(stamp) {
		return OutcomeSuperseded
	}

	idx := timer.Begin(observ.PhaseConfig)
	snap, err := t.config.Snapshot(doc)
	timer.End(idx, "")
	if err != nil {
		t.notify(doc, fmt.Sprintf("glitch: invalid configuration: %v", err))
		return OutcomeFailed
	}
	t.logger.Debug("Resolved configuration",
		slog.String("uri", doc.URI),
		slog.Attr{Key: "config", Value: config.SnapshotLogValue(snap)},
	)

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return OutcomeFailed
	}
	// A newer refresh may have been issued while waiting for a slot.
	if !t.coll.Current(stamp) {
		t.sem.Release(1)
		return OutcomeSuperseded
	}
	list, err := func() ([]findings.Finding, error) {
		defer t.sem.Release(1)
		return t.pipeline.Analyze(ctx, doc.Path, snap, timer)
	}()

	switch {
	case errors.Is(err, command.ErrSkipDisabled):
		if !t.coll.PublishDiagnostics(stamp, nil) {
			return OutcomeSuperseded
		}
		return OutcomeCleared
	case errors.Is(err, command.ErrSkipNoDialect):
		return OutcomeSkipped
	case err != nil:
		if ctx.Err() != nil {
			return OutcomeFailed
		}
		var execErr *runner.ExecutionError
		if errors.As(err, &execErr) {
			t.logger.Warn("Analyzer failed",
				slog.String("uri", doc.URI),
				slog.String("command", execErr.Command),
				slog.Int("exit_status", execErr.ExitStatus),
				slog.Bool("timed_out", execErr.TimedOut),
			)
			t.notify(doc, "glitch: "+execErr.UserMessage())
		} else {
			t.notify(doc, fmt.Sprintf("glitch: %v", err))
		}
		return OutcomeFailed
	}

	t.mu.Lock()
	delete(t.notified, doc.URI)
	t.mu.Unlock()

	idx = timer.Begin(observ.PhasePublish)
	ok := t.coll.Publish(stamp, list)
	timer.End(idx, fmt.Sprintf("%d diagnostics", len(list)))
	if !ok {
		return OutcomeSuperseded
	}
	return OutcomePublished
}

// notify shows message unless the same message was already shown for doc
// since its last successful refresh.
func (t *Trigger) notify(doc Document, message string) {
	t.mu.Lock()
	// Deliberately one notification per distinct failure, not per refresh:
	// edits retrigger a broken analyzer constantly.
	if t.notified[doc.URI] == message {
		t.mu.Unlock()
		return
	}
	t.notified[doc.URI] = message
	t.mu.Unlock()

	if t.notifier == nil {
		return
	}
	if err := t.notifier.ShowError(message); err != nil {
		t.logger.Warn("Failed to show notification",
			slog.String("uri", doc.URI),
			slog.String("error", err.Error()),
		)
	}
}
