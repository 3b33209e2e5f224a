package halo

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	exchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rowlife_halo_exchange_duration_seconds",
		Help:    "Time spent in one complete halo exchange",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rowlife_halo_messages_total",
		Help: "Halo rows moved, by direction",
	}, []string{"direction"})

	exchangeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rowlife_halo_exchange_errors_total",
		Help: "Halo exchanges that failed",
	})
)

var (
	tracerOnce sync.Once
	haloTracer trace.Tracer
)

func tracer() trace.Tracer {
	tracerOnce.Do(func() {
		haloTracer = otel.Tracer("github.com/sbl8/rowlife/halo")
	})
	return haloTracer
}
