package telemetry

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitNone(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{TraceExporter: "none", MetricExporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

//nolint:staticcheck // nil context is the case under test
func TestInitNilContext(t *testing.T) {
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{TraceExporter: "zipkin", MetricExporter: "none"})
	assert.ErrorIs(t, err, ErrUnknownExporter)

	_, err = Init(context.Background(), Config{TraceExporter: "none", MetricExporter: "statsd"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInitStdoutTraces(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "rowlife-test",
		TraceExporter:  "stdout",
		MetricExporter: "none",
		Output:         &out,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "halo.Exchanger.Exchange")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "halo.Exchanger.Exchange")
}

func TestInitPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "rowlife-test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		Registerer:     reg,
	})
	require.NoError(t, err)
	defer shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("rowlife.generations")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "rowlife_generations")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "rowlife", cfg.ServiceName)
	assert.Equal(t, "none", cfg.TraceExporter)
	assert.Equal(t, "prometheus", cfg.MetricExporter)
}
