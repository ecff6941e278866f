// Package metrics exposes Prometheus metrics for a matching run.
package metrics

import (
	"errors"
	"net"
	"net/http"
	"time"

	"imagematch/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Phases of a run used as label values.
const (
	PhaseTarget = "target"
	PhaseSearch = "search"
)

// Metrics holds all collectors for a run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ImagesTotal    *prometheus.CounterVec
	FailuresTotal  *prometheus.CounterVec
	MatchesTotal   prometheus.Counter
	BestSimilarity prometheus.Histogram
	BatchDuration  *prometheus.HistogramVec
	IndexSize      prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		ImagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagematch_images_total",
				Help: "Images run through feature extraction",
			},
			[]string{"phase", "outcome"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagematch_failures_total",
				Help: "Skipped images by failure reason",
			},
			[]string{"phase", "reason"},
		),
		MatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "imagematch_matches_total",
				Help: "Accepted query/target matches",
			},
		),
		BestSimilarity: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imagematch_best_similarity",
				Help:    "Best cosine similarity per evaluated query",
				Buckets: []float64{0, 0.5, 0.6, 0.7, 0.8, 0.85, 0.87, 0.9, 0.95, 0.99, 1},
			},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagematch_batch_duration_seconds",
				Help:    "Wall time per extraction batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		IndexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "imagematch_index_size",
				Help: "Reference vectors in the similarity index",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.ImagesTotal,
		m.FailuresTotal,
		m.MatchesTotal,
		m.BestSimilarity,
		m.BatchDuration,
		m.IndexSize,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordBatch records one extraction batch.
func (m *Metrics) RecordBatch(phase string, ok int, reasons map[string]int, duration time.Duration) {
	if m == nil {
		return
	}
	failed := 0
	for reason, n := range reasons {
		m.FailuresTotal.WithLabelValues(phase, reason).Add(float64(n))
		failed += n
	}
	m.ImagesTotal.WithLabelValues(phase, "ok").Add(float64(ok))
	m.ImagesTotal.WithLabelValues(phase, "failed").Add(float64(failed))
	m.BatchDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordSearchFailure counts images dropped because their batch query
// failed. They were already counted as extracted.
func (m *Metrics) RecordSearchFailure(n int) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(PhaseSearch, "search").Add(float64(n))
}

// RecordEvaluation records the best score of one query.
func (m *Metrics) RecordEvaluation(similarity float32, matched bool) {
	if m == nil {
		return
	}
	m.BestSimilarity.Observe(float64(similarity))
	if matched {
		m.MatchesTotal.Inc()
	}
}

// SetIndexSize records the number of reference vectors.
func (m *Metrics) SetIndexSize(n int) {
	if m == nil {
		return
	}
	m.IndexSize.Set(float64(n))
}

// Serve exposes /metrics on addr in the background. The returned server
// should be shut down by the caller.
func (m *Metrics) Serve(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError("Metrics server stopped: %v", err)
		}
	}()
	logging.LogInfo("Serving metrics on http://%s/metrics", ln.Addr())
	return srv, nil
}
