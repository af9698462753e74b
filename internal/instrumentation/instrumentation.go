package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Instrumentation struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterHandleRequestPanic prometheus.Counter
	CounterLogins             prometheus.Counter
	CounterFailedLogins       prometheus.Counter
	CounterRegistrations      prometheus.Counter
	CounterExpiredSessions    prometheus.Counter

	// gauges
	GaugeRequests       prometheus.Gauge
	GaugeActiveSessions prometheus.Gauge
	GaugeLifeSignal     prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
}

func NewInstrumentation(namespace, subsystem string) *Instrumentation {
	return NewInstrumentationWithRegisterer(namespace, subsystem, prometheus.DefaultRegisterer)
}

func NewTestInstrumentation() *Instrumentation {
	return NewInstrumentationWithRegisterer("gatehouse", "test_server", prometheus.NewRegistry())
}

func NewInstrumentationWithRegisterer(namespace, subsystem string, reg prometheus.Registerer) *Instrumentation {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterLogins := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "logins",
		Help:      "The total number of successful logins",
	})
	counterFailedLogins := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "failed_logins",
		Help:      "The total number of failed login attempts",
	})
	counterRegistrations := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "registrations",
		Help:      "The total number of registered accounts",
	})
	counterExpiredSessions := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "expired_sessions",
		Help:      "The total number of sessions removed after idle timeout",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeActiveSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Current number of sessions in the session store",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histReqDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0000001, 0.0000002, 0.0000003, 0.0000004, 0.0000005,
				0.000001, 0.0000025, 0.000005, 0.0000075, 0.00001,
				0.0001, 0.001, 0.01, 0.1, 1, 10, 60,
			},
			Name: "request_duration_seconds",
			Help: "Total duration of all requests",
		},
	)

	return &Instrumentation{
		CounterRequests:           counterRequests,
		CounterHandleRequestPanic: counterHandleRequestPanic,
		CounterLogins:             counterLogins,
		CounterFailedLogins:       counterFailedLogins,
		CounterRegistrations:      counterRegistrations,
		CounterExpiredSessions:    counterExpiredSessions,
		GaugeRequests:             gaugeRequests,
		GaugeActiveSessions:       gaugeActiveSessions,
		GaugeLifeSignal:           gaugeLifeSignal,
		HistRequestDuration:       histReqDuration,
	}
}
