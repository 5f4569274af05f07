package publish

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glitchls/internal/findings"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

type sinkCall struct {
	uri   string
	diags []Diagnostic
}

func (s *recordingSink) PublishDiagnostics(uri string, list []Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{uri: uri, diags: list})
	return s.err
}

func (s *recordingSink) last() sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func TestToDiagnosticRanges(t *testing.T) {
	d := ToDiagnostic(findings.Finding{SmellID: "sec_https", Line: 5, Message: "use https"})
	assert.Equal(t, Range{Start: Position{Line: 4}, End: Position{Line: 5}}, d.Range)
	assert.Equal(t, SevWarning, d.Severity)
	assert.Equal(t, "use https", d.Message)
	assert.Equal(t, "sec_https", d.Code)
	assert.Equal(t, Source, d.Source)

	clamped := ToDiagnostic(findings.Finding{Line: -3})
	assert.Equal(t, Range{Start: Position{Line: 0}, End: Position{Line: 1}}, clamped.Range)
}

func TestEndToEndScenarioRange(t *testing.T) {
	raw := []byte("hardcoded-secret,,12,,password in plaintext\nnoise line without commas\n")
	sink := &recordingSink{}
	c := NewCollection(sink, nil)

	stamp := c.Begin("file:///repo/site.yml")
	require.True(t, c.Publish(stamp, findings.Parse(raw, findings.Linter)))

	got, ok := c.Get("file:///repo/site.yml")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, 11, got[0].Range.Start.Line)
	assert.Equal(t, 12, got[0].Range.End.Line)
	assert.Equal(t, "password in plaintext", got[0].Message)
}

func TestPublishReplacesWholeSet(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollection(sink, nil)
	uri := "file:///repo/init.pp"

	s1 := c.Begin(uri)
	require.True(t, c.Publish(s1, []findings.Finding{{Line: 1}, {Line: 2}}))
	s2 := c.Begin(uri)
	require.True(t, c.Publish(s2, []findings.Finding{{Line: 9, Message: "only"}}))

	got, _ := c.Get(uri)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Message)
	assert.Len(t, sink.calls, 2)
}

func TestSupersededPublishIsDiscarded(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollection(sink, nil)
	uri := "file:///repo/init.pp"

	older := c.Begin(uri)
	newer := c.Begin(uri)
	assert.Greater(t, newer.Seq, older.Seq)

	require.True(t, c.Publish(newer, []findings.Finding{{Line: 3, Message: "newer"}}))
	assert.False(t, c.Publish(older, []findings.Finding{{Line: 1, Message: "older"}}))

	got, _ := c.Get(uri)
	require.Len(t, got, 1)
	assert.Equal(t, "newer", got[0].Message)
	assert.Len(t, sink.calls, 1)
	assert.Equal(t, "newer", sink.last().diags[0].Message)
}

func TestOlderPublishBeforeNewerIsAlsoDiscarded(t *testing.T) {
	c := NewCollection(nil, nil)
	uri := "file:///repo/init.pp"

	older := c.Begin(uri)
	newer := c.Begin(uri)
	assert.False(t, c.Publish(older, []findings.Finding{{Line: 1, Message: "older"}}))
	assert.False(t, c.Current(older))
	assert.True(t, c.Current(newer))
}

func TestClearInvalidatesInFlightStamps(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollection(sink, nil)
	uri := "file:///repo/init.pp"

	s1 := c.Begin(uri)
	require.True(t, c.Publish(s1, []findings.Finding{{Line: 1}, {Line: 2}}))
	inFlight := c.Begin(uri)

	c.Clear(uri)
	_, ok := c.Get(uri)
	assert.False(t, ok)
	assert.Empty(t, sink.last().diags)

	assert.False(t, c.Publish(inFlight, []findings.Finding{{Line: 4}}))
	_, ok = c.Get(uri)
	assert.False(t, ok)

	reopened := c.Begin(uri)
	assert.Greater(t, reopened.Seq, inFlight.Seq)
}

func TestClearLeavesOtherDocuments(t *testing.T) {
	c := NewCollection(nil, nil)
	a, b := "file:///a.pp", "file:///b.pp"

	require.True(t, c.Publish(c.Begin(a), []findings.Finding{{Line: 1}, {Line: 2}}))
	require.True(t, c.Publish(c.Begin(b), []findings.Finding{{Line: 3}}))

	c.Clear(a)

	_, ok := c.Get(a)
	assert.False(t, ok)
	got, ok := c.Get(b)
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestClearWithoutPublishSendsNothing(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollection(sink, nil)
	c.Begin("file:///a.pp")
	c.Clear("file:///a.pp")
	c.Clear("file:///never-seen.pp")
	assert.Empty(t, sink.calls)
}

func TestSinkErrorsAreNotFatal(t *testing.T) {
	sink := &recordingSink{err: errors.New("pipe closed")}
	c := NewCollection(sink, nil)
	assert.True(t, c.Publish(c.Begin("file:///a.pp"), nil))
	got, ok := c.Get("file:///a.pp")
	require.True(t, ok)
	assert.Empty(t, got)
	assert.NotNil(t, sink.last().diags)
}

func TestClearAll(t *testing.T) {
	c := NewCollection(nil, nil)
	c.Publish(c.Begin("file:///a.pp"), []findings.Finding{{Line: 1}})
	c.Publish(c.Begin("file:///b.pp"), []findings.Finding{{Line: 1}})
	c.ClearAll()
	assert.Empty(t, c.URIs())
}

func TestConcurrentBeginPublish(t *testing.T) {
	c := NewCollection(nil, nil)
	uri := "file:///race.pp"
	var wg sync.WaitGroup
	var mu sync.Mutex
	var lastSeq uint64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := c.Begin(uri)
			mu.Lock()
			if s.Seq > lastSeq {
				lastSeq = s.Seq
			}
			mu.Unlock()
			c.Publish(s, []findings.Finding{{Line: int(s.Seq)}})
		}()
	}
	wg.Wait()

	got, ok := c.Get(uri)
	require.True(t, ok)
	if len(got) == 1 {
		assert.Equal(t, int(lastSeq), got[0].Range.End.Line)
	}
}
