package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "request_id", "r-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "r-1", line["request_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "debug", "TEXT").Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestMetrics_RegisterWithoutConflict(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.RequestFailures))

	m.RequestFailures.WithLabelValues("parameter").Inc()
	m.RequestFailures.WithLabelValues("parameter").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "batch_geocoder_request_failures_total", families[0].GetName())
	assert.InDelta(t, 2, families[0].GetMetric()[0].GetCounter().GetValue(), 0)

	for _, c := range m.collectors() {
		assert.NotNil(t, c)
	}
}

func TestNewMetricsWith_RegistersEveryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.GeocoderRemote.Set(1)
	m.GeocodeCache.WithLabelValues("memory", "hit").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "batch_geocoder_geocoder_remote_enabled")
	assert.Contains(t, names, "batch_geocoder_geocode_cache_total")
	assert.Panics(t, func() { NewMetricsWith(reg) }, "second registration must conflict")
}
