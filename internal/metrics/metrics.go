// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HierarchyCacheCounter counts subordinate-set cache lookups by result
	// (hit, miss, error, bypass).
	HierarchyCacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_hierarchy_cache_total",
			Help: "Subordinate id cache lookups by result",
		},
		[]string{"result"},
	)

	// HierarchyInvalidationCounter counts cache keys removed after manager edits.
	HierarchyInvalidationCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenancy_hierarchy_invalidated_keys_total",
			Help: "Subordinate id cache keys invalidated after manager changes",
		},
	)

	// IntegrityFaultCounter counts detected manager cycles.
	IntegrityFaultCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenancy_hierarchy_integrity_faults_total",
			Help: "Manager cycles detected during traversal",
		},
	)

	// VisibilityScopeCounter counts scope decisions by entity and tier
	// (none, all, hierarchy, self).
	VisibilityScopeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_visibility_scopes_total",
			Help: "Visibility scopes computed by entity and tier",
		},
		[]string{"entity", "tier"},
	)

	// BackfillRecordCounter counts backfill outcomes by phase and outcome
	// (created, linked, skipped, errored).
	BackfillRecordCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_backfill_records_total",
			Help: "Backfill outcomes by phase",
		},
		[]string{"phase", "outcome"},
	)

	// HTTPRequestCounter counts requests by route, method and status.
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenancy_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

func init() {
	prometheus.MustRegister(
		HierarchyCacheCounter,
		HierarchyInvalidationCounter,
		IntegrityFaultCounter,
		VisibilityScopeCounter,
		BackfillRecordCounter,
		HTTPRequestCounter,
		HTTPRequestDuration,
	)
}

// Middleware records request counts and latency per matched route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			method := c.Request().Method
			HTTPRequestCounter.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the default registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
