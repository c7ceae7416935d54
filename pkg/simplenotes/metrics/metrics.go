// Package metrics exposes Prometheus counters for note and image
// operations and an HTTP middleware for request metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

const namespace = "simplenotes"

// Metrics holds the collectors registered on one registry. It implements
// simplenotes.EventSink so the service can report domain events.
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveRequests      prometheus.Gauge

	NotesOperationsTotal  *prometheus.CounterVec
	ImagesOperationsTotal *prometheus.CounterVec
	BlobsOrphanedTotal    prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_active_requests",
				Help:      "Current number of active HTTP requests",
			},
		),
		NotesOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notes_operations_total",
				Help:      "Total number of note operations",
			},
			[]string{"operation"}, // create, update, delete
		),
		ImagesOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_operations_total",
				Help:      "Total number of image operations",
			},
			[]string{"operation"}, // upload, delete
		),
		BlobsOrphanedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blobs_orphaned_total",
				Help:      "Blobs left behind after a failed compensation delete",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency, labelled by the chi route
// pattern rather than the raw path so ids don't explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) NoteCreated(ctx context.Context, note *simplenotes.Note) error {
	m.NotesOperationsTotal.WithLabelValues("create").Inc()
	return nil
}

func (m *Metrics) NoteUpdated(ctx context.Context, note *simplenotes.Note) error {
	m.NotesOperationsTotal.WithLabelValues("update").Inc()
	return nil
}

func (m *Metrics) NoteDeleted(ctx context.Context, noteID uuid.UUID) error {
	m.NotesOperationsTotal.WithLabelValues("delete").Inc()
	return nil
}

func (m *Metrics) ImageUploaded(ctx context.Context, image *simplenotes.Image) error {
	m.ImagesOperationsTotal.WithLabelValues("upload").Inc()
	return nil
}

func (m *Metrics) ImageDeleted(ctx context.Context, image *simplenotes.Image) error {
	m.ImagesOperationsTotal.WithLabelValues("delete").Inc()
	return nil
}

func (m *Metrics) BlobOrphaned(ctx context.Context, objectName string, cause error) error {
	m.BlobsOrphanedTotal.Inc()
	return nil
}
