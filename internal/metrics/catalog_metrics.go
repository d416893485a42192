package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

const (
	ReasonDuplicate        = "duplicate"
	ReasonNotFound         = "not_found"
	ReasonInvalid          = "invalid"
	ReasonCanceled         = "canceled"
	ReasonDeadlineExceeded = "deadline_exceeded"
	ReasonUnknown          = "unknown"
)

// CatalogMetrics captures storefront request and catalog store signals
type CatalogMetrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	storeOps        *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	productsCreated prometheus.Counter
	imagesStored    prometheus.Counter
}

// New registers the catalog metrics on registerer (the default registerer when nil)
func New(registerer prometheus.Registerer) *CatalogMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &CatalogMetrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_store_operations_total",
			Help: "Catalog store operations by name and result.",
		}, []string{"operation", "result"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_store_errors_total",
			Help: "Catalog store failures by operation and low-cardinality reason.",
		}, []string{"operation", "reason"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_store_operation_duration_seconds",
			Help:    "Catalog store operation latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		productsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_products_created_total",
			Help: "Products committed to the catalog.",
		}),
		imagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_images_stored_total",
			Help: "Images committed together with their products.",
		}),
	}

	registerer.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.storeOps,
		m.storeErrors,
		m.storeDuration,
		m.productsCreated,
		m.imagesStored,
	)
	return m
}

// ObserveHTTP records one finished request
func (m *CatalogMetrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveStore records one store operation; classify maps errors to reasons
func (m *CatalogMetrics) ObserveStore(operation string, err error, elapsed time.Duration, classify func(error) string) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err == nil {
		m.storeOps.WithLabelValues(operation, ResultOK).Inc()
		return
	}
	m.storeOps.WithLabelValues(operation, ResultError).Inc()

	reason := ReasonUnknown
	switch {
	case errors.Is(err, context.Canceled):
		reason = ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonDeadlineExceeded
	case classify != nil:
		reason = classify(err)
	}
	m.storeErrors.WithLabelValues(operation, reason).Inc()
}

// ProductCreated counts a committed product and its images
func (m *CatalogMetrics) ProductCreated(images int) {
	if m == nil {
		return
	}
	m.productsCreated.Inc()
	m.imagesStored.Add(float64(images))
}
