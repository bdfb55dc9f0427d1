package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

const (
	namespace = "escrow"
	subsystem = "engine"
)

// Collector exposes the escrow engine counters through its own prometheus
// registry.
type Collector struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

var _ ports.Metrics = (*Collector)(nil)

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total committed status transitions.",
		}, []string{"op", "from", "to"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "version_conflicts_total",
			Help:      "Total writes retried because of a concurrent modification.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "side_effect_failures_total",
			Help:      "Total ledger operations failed after a committed transition.",
		}, []string{"effect"}),
	}

	c.registry.MustRegister(
		c.transitions,
		c.conflicts,
		c.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) TransitionCommitted(op string, from, to domain.TransactionStatus) {
	c.transitions.WithLabelValues(op, statusLabel(from), statusLabel(to)).Inc()
}

func (c *Collector) VersionConflict(op string) {
	c.conflicts.WithLabelValues(op).Inc()
}

func (c *Collector) SideEffectFailed(effect string) {
	c.failures.WithLabelValues(effect).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusLabel(status domain.TransactionStatus) string {
	if !status.Valid() {
		return "NONE"
	}
	return status.String()
}
