// Package metrics exposes crawl progress as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mdspider"

// Page outcome labels for PagesTotal.
const (
	PageFetched = "fetched"
	PageSkipped = "skipped"
	PageFailed  = "failed"
	PageEmpty   = "empty"
)

// Metrics holds the crawl collectors on a registry of their own, so several
// crawls in one process (tests) do not collide on the default registry.
type Metrics struct {
	Registry *prometheus.Registry

	PagesTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	FrontierDepth prometheus.Gauge
	VisitedURLs   prometheus.Gauge
	FilesWritten  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages processed, by outcome.",
		}, []string{"status"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching a page.",
			Buckets:   prometheus.DefBuckets,
		}),
		FrontierDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_depth",
			Help:      "Tasks waiting in the frontier.",
		}),
		VisitedURLs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visited_urls",
			Help:      "Distinct URLs claimed by the frontier.",
		}),
		FilesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Output files, by write action.",
		}, []string{"action"}),
	}
}

func (m *Metrics) IncPages(status string) {
	m.PagesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncFilesWritten(action string) {
	m.FilesWritten.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) SetFrontier(queued, visited int) {
	m.FrontierDepth.Set(float64(queued))
	m.VisitedURLs.Set(float64(visited))
}
