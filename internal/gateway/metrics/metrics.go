package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Fetches *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Fetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgate_gateway_fetches_total",
			Help: "Outbound enrichment fetches by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncFetch(outcome string) {
	m.Fetches.WithLabelValues(outcome).Inc()
}
