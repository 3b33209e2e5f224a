package runtime

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/sbl8/rowlife/runtime"

type runtimeInstruments struct {
	generations     metric.Int64Counter
	computeDuration metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	runtimeMetrics  runtimeInstruments

	tracerOnce    sync.Once
	runtimeTracer trace.Tracer
)

// instruments lazily creates the meter instruments. The global meter
// provider delegates, so instruments created before telemetry.Init still
// report once it runs.
func instruments() runtimeInstruments {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		runtimeMetrics.generations, _ = meter.Int64Counter("rowlife.generations",
			metric.WithDescription("Generations completed by participants"))
		runtimeMetrics.computeDuration, _ = meter.Float64Histogram("rowlife.compute.duration",
			metric.WithDescription("Time spent applying the rule to one row"),
			metric.WithUnit("s"))
	})
	return runtimeMetrics
}

func tracer() trace.Tracer {
	tracerOnce.Do(func() {
		runtimeTracer = otel.Tracer(instrumentationName)
	})
	return runtimeTracer
}
