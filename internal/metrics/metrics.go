package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the scheduling flows.
// A nil *BookingMetrics is safe to call, so wiring stays optional in tests.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	reschedulesTotal *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ehr",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		reschedulesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ehr",
			Subsystem: "scheduling",
			Name:      "reschedules_total",
			Help:      "Reschedule attempts by outcome",
		}, []string{"outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ehr",
			Subsystem: "scheduling",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.reschedulesTotal, m.httpDuration)
	return m
}

// Booking outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveReschedule(outcome string) {
	if m == nil {
		return
	}
	m.reschedulesTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveHTTP(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, status).Observe(seconds)
}
