package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrostate_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrostate_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	recordsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrostate_records_ingested_total",
			Help: "Total number of records accepted into the stores.",
		},
		[]string{"kind"},
	)
	recordsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrostate_records_rejected_total",
			Help: "Total number of records rejected at ingest.",
		},
		[]string{"kind", "code"},
	)
	feedConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "retrostate_feed_connected",
			Help: "1 while the live gateway feed is connected.",
		},
	)
	feedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrostate_feed_events_total",
			Help: "Total number of gateway dispatch events applied.",
		},
		[]string{"event", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		recordsIngestedTotal,
		recordsRejectedTotal,
		feedConnected,
		feedEventsTotal,
	)
}

// HTTPMetricsMiddleware counts requests by route template and status.
func HTTPMetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StoreRecorder feeds store ingest outcomes into the records counters.
type StoreRecorder struct{}

func (StoreRecorder) Ingested(kind string) {
	recordsIngestedTotal.WithLabelValues(kind).Inc()
}

func (StoreRecorder) Rejected(kind, code string) {
	recordsRejectedTotal.WithLabelValues(kind, code).Inc()
}

func SetFeedConnected(up bool) {
	if up {
		feedConnected.Set(1)
		return
	}
	feedConnected.Set(0)
}

func IncFeedEvent(event, result string) {
	feedEventsTotal.WithLabelValues(event, result).Inc()
}
