package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/pkg/models"
)

const namespace = "ecomane"

// Source exposes the latest successful poll
type Source interface {
	Last() *models.Poll
}

// Collector exports the latest snapshot as Prometheus gauges. It reads the
// cached poll on every scrape and never talks to the device itself.
type Collector struct {
	source Source
	logger *zap.Logger

	usageDesc       *prometheus.Desc
	circuitDesc     *prometheus.Desc
	circuitsDesc    *prometheus.Desc
	lastSuccessDesc *prometheus.Desc
}

// NewCollector initializes the collector
func NewCollector(source Source, logger *zap.Logger) *Collector {
	return &Collector{
		source: source,
		logger: logger,
		usageDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "usage"),
			"Today's whole-house usage as reported by the device.",
			[]string{"metric", "unit"},
			nil,
		),
		circuitDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "circuit_power", "watts"),
			"Current power draw of a breaker circuit in Watts.",
			[]string{"index", "entity", "place", "circuit"},
			nil,
		),
		circuitsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "circuits"),
			"Number of circuits discovered by the last poll.",
			nil,
			nil,
		),
		lastSuccessDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_success_timestamp_seconds"),
			"Unix time the last successful poll finished.",
			nil,
			nil,
		),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usageDesc
	ch <- c.circuitDesc
	ch <- c.circuitsDesc
	ch <- c.lastSuccessDesc
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	poll := c.source.Last()
	if poll == nil {
		return
	}

	for _, m := range models.UsageMetrics() {
		raw, ok := poll.Snapshot[m.Key]
		if !ok {
			continue
		}
		value, ok := models.ParseValue(raw)
		if !ok {
			c.logger.Debug("Skipping non-numeric usage value", zap.String("metric", m.Name), zap.String("value", raw))
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.usageDesc, prometheus.GaugeValue, value.InexactFloat64(), m.Name, m.Unit)
	}

	for _, circuit := range poll.Circuits() {
		watts, ok := circuit.Watts()
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.circuitDesc, prometheus.GaugeValue, watts.InexactFloat64(),
			strconv.Itoa(circuit.Index), circuit.EntityName(), circuit.Place, circuit.Circuit)
	}

	ch <- prometheus.MustNewConstMetric(c.circuitsDesc, prometheus.GaugeValue, float64(poll.CircuitCount))
	ch <- prometheus.MustNewConstMetric(c.lastSuccessDesc, prometheus.GaugeValue, float64(poll.FinishedAt.UnixNano())/1e9)
}
