package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
)

var (
	pcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pc_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	pcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pc_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	pcBlocksAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pc_blocks_appended_total",
		Help: "Total blocks mined and appended to the ledger.",
	})

	pcMiningNonce = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pc_mining_nonce",
		Help:    "Winning nonce of each mined block, a proxy for mining attempts.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	pcPatentsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pc_patents_submitted_total",
		Help: "Total accepted patent submissions by storage.",
	}, []string{"storage"})

	pcChainValid = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pc_chain_valid",
		Help: "1 when the last ledger verification passed, 0 otherwise.",
	})

	pcChainBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pc_chain_blocks",
		Help: "Number of blocks in the ledger, genesis included.",
	})

	pcFeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pc_feed_clients",
		Help: "Connected websocket block feed clients.",
	})

	pcSnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pc_snapshots_total",
		Help: "Snapshot operations by action and result.",
	}, []string{"action", "result"})

	pcWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pc_webhook_deliveries_total",
		Help: "Webhook delivery attempts by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		pcRequestsTotal.WithLabelValues(method, path, status).Inc()
		pcRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordBlock records a freshly appended block.
func RecordBlock(b chain.Block) {
	pcBlocksAppendedTotal.Inc()
	pcMiningNonce.Observe(float64(b.Nonce))
	pcChainBlocks.Set(float64(b.Index + 1))
}

// RecordVerification records the outcome of a full ledger verification.
func RecordVerification(valid bool, blocks int) {
	if valid {
		pcChainValid.Set(1)
	} else {
		pcChainValid.Set(0)
	}
	pcChainBlocks.Set(float64(blocks))
}

func recordSubmission(storage string) {
	pcPatentsSubmittedTotal.WithLabelValues(storage).Inc()
}

func recordSnapshot(action string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	pcSnapshotsTotal.WithLabelValues(action, result).Inc()
}

// RecordWebhookDelivery counts one webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	pcWebhookDeliveriesTotal.WithLabelValues(result).Inc()
}
