package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	entities  *prometheus.GaugeVec
	loadTimes prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roadgpkg",
			Name:      "http_requests_total",
			Help:      "number of http requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roadgpkg",
			Name:      "http_request_duration_seconds",
			Help:      "http request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "roadgpkg",
			Name:      "road_network_entities",
			Help:      "number of junctions, segments, lanes and connections in the served road network.",
		}, []string{"kind"}),
		loadTimes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roadgpkg",
			Name:      "road_network_load_seconds",
			Help:      "time spent loading the road network.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.entities, m.loadTimes)
	return m
}

func (m *Metrics) ObserveLoad(stats roadnetwork.Stats, elapsed time.Duration) {
	m.entities.WithLabelValues("junction").Set(float64(stats.Junctions))
	m.entities.WithLabelValues("segment").Set(float64(stats.Segments))
	m.entities.WithLabelValues("lane").Set(float64(stats.Lanes))
	m.entities.WithLabelValues("connection").Set(float64(stats.Connections))
	m.loadTimes.Observe(elapsed.Seconds())
}

// PromeHttpMiddleware records request counts and latencies labelled with the chi route pattern.
func PromeHttpMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
