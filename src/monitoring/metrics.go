package monitoring

import (
	"net/http"

	"quant-observer/src/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quant_observer"

// Metrics holds every collector of the process on a private registry, so
// several pipelines (tests) can coexist without duplicate registration.
type Metrics struct {
	Registry *prometheus.Registry

	TicksIngested    prometheus.Counter
	TicksRejected    prometheus.Counter
	AlertsRaised     *prometheus.CounterVec
	CallbackFailures prometheus.Counter
	JournalErrors    prometheus.Counter

	BufferSize prometheus.Gauge
	LastPrice  prometheus.Gauge
	Volatility prometheus.Gauge
	WSClients  prometheus.Gauge

	TickLatency prometheus.Histogram
}

// -----------------------------------------------------------------------------

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		TicksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_ingested_total",
			Help:      "Ticks accepted into the buffer.",
		}),
		TicksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_rejected_total",
			Help:      "Ticks rejected by validation.",
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts created, by kind and level.",
		}, []string{"kind", "level"}),
		CallbackFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_callback_failures_total",
			Help:      "Alert callbacks that returned an error or panicked.",
		}),
		JournalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_errors_total",
			Help:      "Failed journal writes.",
		}),

		BufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_ticks",
			Help:      "Ticks currently held in the buffer.",
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Price of the latest tick.",
		}),
		Volatility: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volatility",
			Help:      "Latest rolling volatility, when available.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),

		TickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_processing_seconds",
			Help:      "Time to append, analyse and evaluate one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	m.Registry.MustRegister(
		m.TicksIngested, m.TicksRejected, m.AlertsRaised, m.CallbackFailures, m.JournalErrors,
		m.BufferSize, m.LastPrice, m.Volatility, m.WSClients, m.TickLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// -----------------------------------------------------------------------------

// ObserveTick records the outcome of one processed tick.
func (m *Metrics) ObserveTick(result models.MProcessResult, bufferLen int) {
	m.TicksIngested.Inc()
	m.BufferSize.Set(float64(bufferLen))
	m.LastPrice.Set(result.Tick.Price)
	if v, ok := result.Metrics.Volatility.Get(); ok {
		m.Volatility.Set(v)
	}
	m.TickLatency.Observe(result.ProcessingMetrics.ProcessingTimeSeconds)

	for _, a := range result.Alerts {
		m.AlertsRaised.WithLabelValues(string(a.Kind), string(a.Level)).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
