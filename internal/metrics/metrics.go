package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgazer_http_requests_total",
			Help: "Total HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltgazer_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	ReadingsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voltgazer_readings_ingested_total",
			Help: "Readings committed to storage.",
		},
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltgazer_batches_total",
			Help: "Submitted batches by outcome (ok, invalid, storage_error).",
		},
		[]string{"outcome"},
	)

	StorageState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voltgazer_storage_state",
			Help: "1 for the current storage lifecycle state, 0 otherwise.",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration, ReadingsIngested, BatchesTotal, StorageState)
}

// Handler Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetStorageState 将 state 置 1，其余已知状态置 0
func SetStorageState(current string, known ...string) {
	for _, s := range known {
		StorageState.WithLabelValues(s).Set(0)
	}
	StorageState.WithLabelValues(current).Set(1)
}

// Middleware 按路由模板统计请求数与耗时
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		RequestCounter.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
