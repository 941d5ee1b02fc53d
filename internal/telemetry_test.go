package internal

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func Test_TelemetryMetrics(t *testing.T) {
	assert := assert.New(t)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(t.Context())

	tel := NewTelemetry("test", "metrics", WithMeterProvider(provider))

	tel.NewCounter("counted", func() int64 { return 7 })
	tel.NewUpDownCounter("level", func() int64 { return -2 })
	tel.NewHistogram("latency").Record(t.Context(), 5)

	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(t.Context(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	values := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			values[m.Name] = data.DataPoints[0].Value
		case metricdata.Histogram[int64]:
			values[m.Name] = int64(data.DataPoints[0].Count)
		}
	}

	assert.Equal(int64(7), values["counted"])
	assert.Equal(int64(-2), values["level"])
	assert.Equal(int64(1), values["latency"])
}

func Test_FanOutHandler(t *testing.T) {
	assert := assert.New(t)

	first := &bytes.Buffer{}
	second := &bytes.Buffer{}

	logger := slog.New(&fanOutHandler{
		handlers: []slog.Handler{
			slog.NewTextHandler(first, &slog.HandlerOptions{Level: slog.LevelDebug}),
			slog.NewTextHandler(second, &slog.HandlerOptions{Level: slog.LevelWarn}),
		},
	})

	logger.With("scope", "test").Debug("debug message")
	logger.Warn("warn message")

	assert.True(strings.Contains(first.String(), "debug message"))
	assert.True(strings.Contains(first.String(), "scope=test"))
	assert.True(strings.Contains(first.String(), "warn message"))

	assert.False(strings.Contains(second.String(), "debug message"))
	assert.True(strings.Contains(second.String(), "warn message"))
}
