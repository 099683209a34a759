package metrics

import "github.com/prometheus/client_golang/prometheus"

// WaitlistMetrics exposes counters/histograms for the offer lifecycle.
type WaitlistMetrics struct {
	offersTotal    *prometheus.CounterVec
	responsesTotal *prometheus.CounterVec
	cascadesTotal  *prometheus.CounterVec
	notifyTotal    *prometheus.CounterVec
	sweepSize      prometheus.Histogram
}

func NewWaitlistMetrics(reg prometheus.Registerer) *WaitlistMetrics {
	m := &WaitlistMetrics{
		offersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waitlist",
			Subsystem: "offers",
			Name:      "issued_total",
			Help:      "Offer cycles by outcome",
		}, []string{"outcome"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waitlist",
			Subsystem: "offers",
			Name:      "responses_total",
			Help:      "Patient responses by action and outcome",
		}, []string{"action", "outcome"}),
		cascadesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waitlist",
			Subsystem: "offers",
			Name:      "cascades_total",
			Help:      "Cascade attempts after decline/expiry by outcome",
		}, []string{"outcome"}),
		notifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waitlist",
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Offer notification sends by status",
		}, []string{"status"}),
		sweepSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "waitlist",
			Subsystem: "offers",
			Name:      "expiry_sweep_size",
			Help:      "Offers expired per sweep run",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.offersTotal, m.responsesTotal, m.cascadesTotal, m.notifyTotal, m.sweepSize)
	return m
}

func (m *WaitlistMetrics) ObserveOffer(outcome string) {
	if m == nil {
		return
	}
	m.offersTotal.WithLabelValues(outcome).Inc()
}

func (m *WaitlistMetrics) ObserveResponse(action, outcome string) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(action, outcome).Inc()
}

func (m *WaitlistMetrics) ObserveCascade(outcome string) {
	if m == nil {
		return
	}
	m.cascadesTotal.WithLabelValues(outcome).Inc()
}

func (m *WaitlistMetrics) ObserveNotify(status string) {
	if m == nil {
		return
	}
	m.notifyTotal.WithLabelValues(status).Inc()
}

func (m *WaitlistMetrics) ObserveSweep(expired int) {
	if m == nil {
		return
	}
	m.sweepSize.Observe(float64(expired))
}
