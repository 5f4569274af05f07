package refresh

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glitchls/internal/command"
	"glitchls/internal/config"
	"glitchls/internal/publish"
	"glitchls/internal/runner"
)

type runResult struct {
	out []byte
	err error
}

type fakeRunner struct {
	mu    sync.Mutex
	lines []command.Line
	next  func(call int, line command.Line) runResult
}

func (r *fakeRunner) Run(_ context.Context, line command.Line) ([]byte, error) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	call := len(r.lines)
	next := r.next
	r.mu.Unlock()
	if next == nil {
		return nil, nil
	}
	res := next(call, line)
	return res.out, res.err
}

func (r *fakeRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

type sinkCall struct {
	uri   string
	diags []publish.Diagnostic
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *fakeSink) PublishDiagnostics(uri string, list []publish.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{uri: uri, diags: list})
	return nil
}

func (s *fakeSink) snapshot() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkCall(nil), s.calls...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) ShowError(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *fakeNotifier) shown() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type mutableSource struct {
	mu   sync.Mutex
	snap config.Snapshot
}

func (s *mutableSource) Snapshot(Document) (config.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *mutableSource) set(snap config.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

type harness struct {
	runner   *fakeRunner
	sink     *fakeSink
	notifier *fakeNotifier
	source   *mutableSource
	coll     *publish.Collection
	trigger  *Trigger
}

func newHarness(t *testing.T, debounce time.Duration) *harness {
	t.Helper()
	h := &harness{
		runner:   &fakeRunner{},
		sink:     &fakeSink{},
		notifier: &fakeNotifier{},
		source:   &mutableSource{snap: config.Default()},
	}
	h.coll = publish.NewCollection(h.sink, nil)
	h.trigger = New(h.coll, Options{
		Runner:   h.runner,
		Config:   h.source,
		Notifier: h.notifier,
		Debounce: debounce,
	})
	t.Cleanup(func() {
		h.trigger.Stop()
		h.trigger.Wait()
	})
	return h
}

func output(s string) func(int, command.Line) runResult {
	return func(int, command.Line) runResult { return runResult{out: []byte(s)} }
}

var site = Document{URI: "file:///work/site.pp", Path: "/work/site.pp"}

func TestRefreshPublishesFindings(t *testing.T) {
	h := newHarness(t, 0)
	h.runner.next = output("sec_hard_secr,x,3,y,Hard-coded secret.\nnot a record\n")

	require.Equal(t, OutcomePublished, h.trigger.Refresh(context.Background(), site))

	require.Len(t, h.runner.lines, 1)
	assert.Equal(t, []string{"--linter", "--tech", "puppet", "/work/site.pp"}, h.runner.lines[0].Args)

	calls := h.sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, site.URI, calls[0].uri)
	require.Len(t, calls[0].diags, 1)
	d := calls[0].diags[0]
	assert.Equal(t, publish.Range{Start: publish.Position{Line: 2}, End: publish.Position{Line: 3}}, d.Range)
	assert.Equal(t, "sec_hard_secr", d.Code)
	assert.Equal(t, publish.SevWarning, d.Severity)
	assert.Equal(t, "glitch", d.Source)
}

func TestRefreshWithNoFindingsPublishesEmptySet(t *testing.T) {
	h := newHarness(t, 0)
	h.runner.next = output("")

	require.Equal(t, OutcomePublished, h.trigger.Refresh(context.Background(), site))
	calls := h.sink.snapshot()
	require.Len(t, calls, 1)
	assert.NotNil(t, calls[0].diags)
	assert.Empty(t, calls[0].diags)
}

func TestDisabledClearsWithoutRunning(t *testing.T) {
	h := newHarness(t, 0)
	h.runner.next = output("a,b,1,c,d\n")
	require.Equal(t, OutcomePublished, h.trigger.Refresh(context.Background(), site))

	disabled := config.Default()
	disabled.Enabled = false
	h.source.set(disabled)

	require.Equal(t, OutcomeCleared, h.trigger.Refresh(context.Background(), site))
	assert.Equal(t, 1, h.runner.calls())
	diags, ok := h.coll.Get(site.URI)
	require.True(t, ok)
	assert.Empty(t, diags)
}

func TestUnknownDialectLeavesSetUntouched(t *testing.T) {
	h := newHarness(t, 0)
	doc := Document{URI: "file:///work/README.md", Path: "/work/README.md"}

	require.Equal(t, OutcomeSkipped, h.trigger.Refresh(context.Background(), doc))
	assert.Zero(t, h.runner.calls())
	assert.Empty(t, h.sink.snapshot())
}

func TestTechOverrideSelectsDialect(t *testing.T) {
	h := newHarness(t, 0)
	snap := config.Default()
	snap.DialectOverride = "ansible"
	h.source.set(snap)
	doc := Document{URI: "file:///work/notes.txt", Path: "/work/notes.txt"}

	require.Equal(t, OutcomePublished, h.trigger.Refresh(context.Background(), doc))
	require.Len(t, h.runner.lines, 1)
	assert.Equal(t, []string{"--linter", "--tech", "ansible", "--autodetect", "/work/notes.txt"}, h.runner.lines[0].Args)
}

func TestFailureNotifiesOnceAndKeepsLastSet(t *testing.T) {
	h := newHarness(t, 0)
	fail := false
	var mu sync.Mutex
	h.runner.next = func(int, command.Line) runResult {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return runResult{err: &runner.ExecutionError{
				Command:    "glitch",
				ExitStatus: 2,
				Stderr:     "Traceback...\nError: invalid config\n",
			}}
		}
		return runResult{out: []byte("a,b,4,c,kept\n")}
	}
	setFail := func(v bool) {
		mu.Lock()
		fail = v
		mu.Unlock()
	}

	ctx := context.Background()
	require.Equal(t, OutcomePublished, h.trigger.Refresh(ctx, site))

	setFail(true)
	require.Equal(t, OutcomeFailed, h.trigger.Refresh(ctx, site))
	require.Equal(t, OutcomeFailed, h.trigger.Refresh(ctx, site))
	assert.Equal(t, []string{"glitch: invalid config"}, h.notifier.shown())

	diags, ok := h.coll.Get(site.URI)
	require.True(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, "kept", diags[0].Message)
	assert.Len(t, h.sink.snapshot(), 1)

	setFail(false)
	require.Equal(t, OutcomePublished, h.trigger.Refresh(ctx, site))
	setFail(true)
	require.Equal(t, OutcomeFailed, h.trigger.Refresh(ctx, site))
	assert.Len(t, h.notifier.shown(), 2)
}

func TestSupersededRefreshIsDiscarded(t *testing.T) {
	h := newHarness(t, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	h.runner.next = func(call int, _ command.Line) runResult {
		if call == 1 {
			close(started)
			<-release
			return runResult{out: []byte("old,b,1,c,stale\n")}
		}
		return runResult{out: []byte("new,b,2,c,fresh\n")}
	}

	h.trigger.ActiveChanged(context.Background(), site)
	<-started
	require.Equal(t, OutcomePublished, h.trigger.Refresh(context.Background(), site))
	close(release)
	h.trigger.Wait()

	calls := h.sink.snapshot()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].diags, 1)
	assert.Equal(t, "fresh", calls[0].diags[0].Message)
}

func TestClosedDiscardsInFlightRefresh(t *testing.T) {
	h := newHarness(t, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	h.runner.next = func(int, command.Line) runResult {
		close(started)
		<-release
		return runResult{out: []byte("a,b,1,c,late\n")}
	}

	h.trigger.ActiveChanged(context.Background(), site)
	<-started
	h.trigger.Closed(site)
	close(release)
	h.trigger.Wait()

	assert.Empty(t, h.sink.snapshot())
	_, ok := h.coll.Get(site.URI)
	assert.False(t, ok)
}

func TestDocumentsAreIsolated(t *testing.T) {
	h := newHarness(t, 0)
	other := Document{URI: "file:///work/main.tf", Path: "/work/main.tf"}
	h.runner.next = func(_ int, line command.Line) runResult {
		if line.Dialect.String() == "terraform" {
			return runResult{err: &runner.ExecutionError{Command: "glitch", ExitStatus: 1, Stderr: "error: boom"}}
		}
		return runResult{out: []byte("a,b,1,c,ok\n")}
	}

	h.trigger.ActiveChanged(context.Background(), site)
	h.trigger.ActiveChanged(context.Background(), other)
	h.trigger.Wait()

	diags, ok := h.coll.Get(site.URI)
	require.True(t, ok)
	assert.Len(t, diags, 1)
	_, ok = h.coll.Get(other.URI)
	assert.True(t, ok)
	otherDiags, _ := h.coll.Get(other.URI)
	assert.Empty(t, otherDiags)
	assert.Equal(t, []string{"glitch: boom"}, h.notifier.shown())
}

func TestChangedDebouncesBursts(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	h.runner.next = output("a,b,1,c,d\n")

	for range 5 {
		h.trigger.Changed(context.Background(), site)
	}
	h.trigger.Wait()

	assert.Equal(t, 1, h.runner.calls())
	assert.Len(t, h.sink.snapshot(), 1)
}

func TestClosedCancelsPendingChange(t *testing.T) {
	h := newHarness(t, time.Hour)

	h.trigger.Changed(context.Background(), site)
	h.trigger.Closed(site)
	h.trigger.Wait()

	assert.Zero(t, h.runner.calls())
}

func TestConfigurationChangedRefreshesAll(t *testing.T) {
	h := newHarness(t, 0)
	h.runner.next = output("")
	docs := []Document{
		site,
		{URI: "file:///work/recipe.rb", Path: "/work/recipe.rb"},
		{URI: "file:///work/Dockerfile", Path: "/work/Dockerfile"},
	}

	h.trigger.ConfigurationChanged(context.Background(), docs)
	h.trigger.Wait()

	assert.Equal(t, 3, h.runner.calls())
	assert.Len(t, h.coll.URIs(), 3)
}

func TestLayeredSourceMergesFileAndClient(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".glitch.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("tech = \"chef\"\nsmells = [\"security\"]\n"), 0o600))
	sub := filepath.Join(dir, "roles")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	var seen []string
	src := NewLayeredSource(func(path string) { seen = append(seen, path) })
	smells := []string{"design"}
	src.SetClient(config.Overrides{Smells: smells})

	snap, err := src.Snapshot(Document{URI: "file:///x", Path: filepath.Join(sub, "default.rb")})
	require.NoError(t, err)
	assert.True(t, snap.Enabled)
	assert.Equal(t, "chef", snap.DialectOverride)
	assert.Equal(t, []string{"design"}, snap.Smells)
	assert.Equal(t, []string{cfgPath}, seen)
}

func TestLayeredSourceReportsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".glitch.toml"), []byte("colour = 1\n"), 0o600))

	_, err := NewLayeredSource(nil).Snapshot(Document{Path: filepath.Join(dir, "site.pp")})
	require.Error(t, err)
}

func TestLayeredSourceRejectsUnknownOutputFormat(t *testing.T) {
	src := NewLayeredSource(nil)
	format := "xml"
	src.SetClient(config.Overrides{OutputFormat: &format})

	_, err := src.Snapshot(Document{Path: filepath.Join(t.TempDir(), "site.pp")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}
