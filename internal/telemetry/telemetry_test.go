package telemetry

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitDisabledIsNoop(t *testing.T) {
	tel, err := Init(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Empty(t, tel.MetricsAddr())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestMetricsEndpoint(t *testing.T) {
	tel, err := Init(context.Background(), Config{MetricsAddr: "127.0.0.1:0", ServiceVersion: "test"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	counter, err := otel.Meter("glitchls.test").Int64Counter("probe_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	resp, err := http.Get("http://" + tel.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "probe_events")
}

func TestTraceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	tel, err := Init(context.Background(), Config{TraceFile: path}, nil)
	require.NoError(t, err)

	_, span := otel.Tracer("glitchls.test").Start(context.Background(), "probe-span")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "probe-span")
}

func TestInitBadAddress(t *testing.T) {
	_, err := Init(context.Background(), Config{MetricsAddr: "256.0.0.1:bad"}, nil)
	require.Error(t, err)
}
