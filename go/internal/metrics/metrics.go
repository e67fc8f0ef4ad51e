package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements the publisher and engine metric interfaces on top of
// Prometheus.
type Collector struct {
	fetchTotal    *prometheus.CounterVec
	fetchRecords  *prometheus.CounterVec
	fetchDropped  *prometheus.CounterVec
	cycleOutcomes *prometheus.CounterVec
	publishTotal  *prometheus.CounterVec
	publishTime   *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
	externalLost  prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		fetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchlens_fetch_cycles_total",
			Help: "Fetch cycles per competition and result.",
		}, []string{"competition", "result"}),
		fetchRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchlens_fetch_records_total",
			Help: "Raw records fetched per competition.",
		}, []string{"competition"}),
		fetchDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchlens_fetch_records_dropped_total",
			Help: "Malformed raw records dropped per competition.",
		}, []string{"competition"}),
		cycleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchlens_cycle_outcomes_total",
			Help: "Reconciliation cycle outcomes by kind.",
		}, []string{"outcome"}),
		publishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchlens_publish_total",
			Help: "Publish attempts per leg and result.",
		}, []string{"leg", "result"}),
		publishTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchlens_publish_duration_seconds",
			Help:    "Publish latency per leg.",
			Buckets: prometheus.DefBuckets,
		}, []string{"leg"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "matchlens_internal_queue_depth",
			Help: "Events waiting in the internal queue.",
		}),
		externalLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchlens_external_publish_giveups_total",
			Help: "Events that exhausted the external publish give-up threshold and need replay.",
		}),
	}
}

func (c *Collector) RecordFetch(competition string, success bool, records, dropped int) {
	c.fetchTotal.WithLabelValues(competition, result(success)).Inc()
	if records > 0 {
		c.fetchRecords.WithLabelValues(competition).Add(float64(records))
	}
	if dropped > 0 {
		c.fetchDropped.WithLabelValues(competition).Add(float64(dropped))
	}
}

func (c *Collector) RecordOutcome(kind string) {
	c.cycleOutcomes.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordPublish(leg string, success bool, duration time.Duration) {
	c.publishTotal.WithLabelValues(leg, result(success)).Inc()
	c.publishTime.WithLabelValues(leg).Observe(duration.Seconds())
}

func (c *Collector) RecordQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

func (c *Collector) RecordExternalGiveUp() {
	c.externalLost.Inc()
}

func result(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}
