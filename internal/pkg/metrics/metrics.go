package metrics

import "github.com/prometheus/client_golang/prometheus"

// Checkout bundles the workflow metrics. Vectors are created once here and
// injected; use-case code must never instantiate metrics of its own.
type Checkout struct {
	// initiations by outcome: success | validation_failed | gateway_failed | error
	Initiations *prometheus.CounterVec
	// confirmations by outcome: committed | released | noop | error
	Confirmations *prometheus.CounterVec
	// product units restored to stock by rollbacks and releases
	StockUnitsReleased prometheus.Counter
	// tasks waiting in the background queue
	QueueDepth prometheus.Gauge
}

func NewCheckout(reg prometheus.Registerer) *Checkout {
	m := &Checkout{
		Initiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_initiations_total",
				Help: "Total number of payment initiation attempts.",
			},
			[]string{"outcome"},
		),
		Confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_confirmations_total",
				Help: "Total number of confirmation watcher resolutions.",
			},
			[]string{"outcome"},
		),
		StockUnitsReleased: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_stock_units_released_total",
				Help: "Product units returned to stock by reservation releases.",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "checkout_task_queue_depth",
				Help: "Number of background tasks waiting to run.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Initiations, m.Confirmations, m.StockUnitsReleased, m.QueueDepth)
	}
	return m
}

// HTTP holds the RED metrics recorded by the HTTP middleware.
type HTTP struct {
	Requests  *prometheus.CounterVec   // method, route, status
	Durations *prometheus.HistogramVec // method, route
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP request handling in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Durations)
	}
	return m
}
