package middleware

import (
	"slices"
	"strconv"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "landing"

// Surfaces separate the visitor-facing API from the admin CMS in dashboards
const (
	SurfacePublic = "public"
	SurfaceAdmin  = "admin"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by surface, method, route template and status",
		},
		[]string{"surface", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"surface", "method", "route"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_inflight_requests",
			Help:      "HTTP requests currently being served",
		},
	)
)

// Metrics records request counts and latencies. Requests to skipPaths (the scrape
// endpoint, health probes) are not observed.
func Metrics(skipPaths ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if slices.Contains(skipPaths, c.Path()) {
			return c.Next()
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		// route template, so download tokens and ids never become label values
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		surface := requestSurface(c)
		method := c.Method()

		httpRequestsTotal.WithLabelValues(surface, method, route, strconv.Itoa(c.Response().StatusCode())).Inc()
		httpRequestDuration.WithLabelValues(surface, method, route).Observe(time.Since(start).Seconds())

		return err
	}
}

// requestSurface reports admin once AdminAuthenticate has accepted the session
func requestSurface(c fiber.Ctx) string {
	if c.Locals(utils.AdminKey) != nil {
		return SurfaceAdmin
	}
	return SurfacePublic
}
