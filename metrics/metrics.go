// Package metrics exposes the aggregate request/volume counters in
// Prometheus exposition format. Metrics live in a dedicated registry so they
// do not interfere with the default global registry.
package metrics

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	requestsCreated   prometheus.Counter
	requestsProcessed *prometheus.CounterVec
	requestsCancelled prometheus.Counter
	volumeWei         prometheus.Counter
	settlements       *prometheus.CounterVec
	disputesOpened    prometheus.Counter
	feePoolWei        prometheus.Gauge
	rejected          *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gamebridge",
			Name:      "bridge_requests_created_total",
			Help:      "Total number of bridge requests accepted.",
		}),
		requestsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamebridge",
			Name:      "bridge_requests_processed_total",
			Help:      "Total number of bridge requests processed by outcome.",
		}, []string{"outcome"}),
		requestsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gamebridge",
			Name:      "bridge_requests_cancelled_total",
			Help:      "Total number of bridge requests cancelled by their sender.",
		}),
		volumeWei: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gamebridge",
			Name:      "bridge_volume_wei_total",
			Help:      "Total fungible volume locked into the bridge, in wei.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamebridge",
			Name:      "settlements_total",
			Help:      "Settlement transitions by resulting status.",
		}, []string{"status"}),
		disputesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gamebridge",
			Name:      "disputes_opened_total",
			Help:      "Total number of disputes opened.",
		}),
		feePoolWei: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gamebridge",
			Name:      "fee_pool_wei",
			Help:      "Withdrawable admin fee pool, in wei.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamebridge",
			Name:      "rejected_operations_total",
			Help:      "Operations rejected before any asset movement, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.requestsCreated, c.requestsProcessed, c.requestsCancelled,
		c.volumeWei, c.settlements, c.disputesOpened, c.feePoolWei, c.rejected,
	)
	return c
}

// weiToFloat loses precision above 2^53 wei, acceptable for monitoring
func weiToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func (c *Collector) RequestCreated(volume *big.Int) {
	c.requestsCreated.Inc()
	c.volumeWei.Add(weiToFloat(volume))
}

func (c *Collector) RequestProcessed(outcome string) {
	c.requestsProcessed.WithLabelValues(outcome).Inc()
}

func (c *Collector) RequestCancelled() {
	c.requestsCancelled.Inc()
}

func (c *Collector) SettlementTransition(status string) {
	c.settlements.WithLabelValues(status).Inc()
}

func (c *Collector) DisputeOpened() {
	c.disputesOpened.Inc()
}

func (c *Collector) SetFeePool(v *big.Int) {
	c.feePoolWei.Set(weiToFloat(v))
}

func (c *Collector) Rejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
