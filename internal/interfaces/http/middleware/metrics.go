package middleware

import (
	"strconv"
	"time"

	"github.com/agencyhq/invoicing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider exports over OTLP; nil or disabled skips the OTel side.
	MeterProvider *telemetry.MeterProvider
	// Registerer receives the Prometheus collectors served on /metrics.
	Registerer prometheus.Registerer
	Logger     *zap.Logger
}

// httpMetrics holds all HTTP-related metrics instruments.
type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	responseSize    *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter

	promRequests *prometheus.CounterVec
	promDuration *prometheus.HistogramVec
	promActive   prometheus.Gauge
}

func newOTelHTTPMetrics(meter metric.Meter, m *httpMetrics) error {
	var err error
	if m.requestTotal, err = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}"); err != nil {
		return err
	}
	if m.requestDuration, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return err
	}
	if m.responseSize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  []float64{100, 1000, 10000, 100000, 1000000, 5000000},
	}); err != nil {
		return err
	}
	m.activeRequests, err = meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	return err
}

func newPromHTTPMetrics(reg prometheus.Registerer, m *httpMetrics) error {
	m.promRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: telemetry.PrometheusNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
	m.promDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: telemetry.PrometheusNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency distribution in seconds",
		Buckets:   telemetry.HTTPDurationBuckets,
	}, []string{"method", "route"})
	m.promActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: telemetry.PrometheusNamespace,
		Name:      "http_active_requests",
		Help:      "Number of currently active HTTP requests",
	})
	for _, c := range []prometheus.Collector{m.promRequests, m.promDuration, m.promActive} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// HTTPMetrics returns a Gin middleware that counts requests and records
// latency by method and route pattern.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	m := &httpMetrics{}
	otelOn := cfg.MeterProvider != nil && cfg.MeterProvider.IsEnabled()
	if otelOn {
		if err := newOTelHTTPMetrics(cfg.MeterProvider.Meter("http.server"), m); err != nil {
			log.Warn("HTTP OTel metrics disabled", zap.Error(err))
			otelOn = false
		}
	}
	promOn := cfg.Registerer != nil
	if promOn {
		if err := newPromHTTPMetrics(cfg.Registerer, m); err != nil {
			log.Warn("HTTP Prometheus metrics disabled", zap.Error(err))
			promOn = false
		}
	}

	if !otelOn && !promOn {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		if otelOn {
			m.activeRequests.Add(ctx, 1)
		}
		if promOn {
			m.promActive.Inc()
		}

		c.Next()

		duration := time.Since(start)
		route := getRoutePattern(c)
		method := c.Request.Method
		status := c.Writer.Status()

		if promOn {
			m.promActive.Dec()
			m.promRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.promDuration.WithLabelValues(method, route).Observe(duration.Seconds())
		}
		if otelOn {
			m.activeRequests.Add(ctx, -1)
			attrs := []attribute.KeyValue{
				telemetry.AttrHTTPMethod.String(method),
				telemetry.AttrHTTPRoute.String(route),
			}
			m.requestTotal.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(status))...)
			m.requestDuration.RecordDuration(ctx, duration, attrs...)
			if size := c.Writer.Size(); size > 0 {
				m.responseSize.Record(ctx, float64(size), attrs...)
			}
		}
	}
}

// getRoutePattern returns the matched route ("/api/v1/invoices/:id"),
// not the raw path, to keep label cardinality bounded.
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
