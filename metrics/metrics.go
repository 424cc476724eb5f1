package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	runsStarted       *prometheus.CounterVec
	runsCompleted     *prometheus.CounterVec
	runsFailed        *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	publishedResults  *prometheus.CounterVec
	tailHeightGauge   prometheus.Gauge
	libHeightGauge    prometheus.Gauge
	nbreHeightGauge   prometheus.Gauge
	scheduledDipGauge prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(namespace string, registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := Metrics{
		// computation runs, labelled by kind (nr, dip)
		runsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_runs_started_total", namespace),
			Help: "The number of started computation runs",
		}, []string{"kind"}),
		runsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_runs_completed_total", namespace),
			Help: "The number of completed computation runs",
		}, []string{"kind"}),
		runsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_runs_failed_total", namespace),
			Help: "The number of failed computation runs",
		}, []string{"kind"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_run_duration_seconds", namespace),
			Help:    "The duration of completed computation runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"kind"}),
		publishedResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_published_results_total", namespace),
			Help: "The number of results published to kafka",
		}, []string{"kind"}),
		// chain heights
		tailHeightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_source_tail_height", namespace),
			Help: "The latest known tail height of the node",
		}),
		libHeightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_source_lib_height", namespace),
			Help: "The latest known irreversible height of the node",
		}),
		nbreHeightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_nbre_max_height", namespace),
			Help: "The highest height available to the analytics",
		}),
		scheduledDipGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_scheduled_dip_height", namespace),
			Help: "The height of the last scheduled dip run",
		}),
	}
	return &m
}

func (metrics *Metrics) RunStarted(kind string) {
	metrics.runsStarted.WithLabelValues(kind).Inc()
}

func (metrics *Metrics) RunCompleted(kind string, duration time.Duration) {
	metrics.runsCompleted.WithLabelValues(kind).Inc()
	metrics.runDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (metrics *Metrics) RunFailed(kind string) {
	metrics.runsFailed.WithLabelValues(kind).Inc()
}

func (metrics *Metrics) IncPublished(kind string) {
	metrics.publishedResults.WithLabelValues(kind).Inc()
}

func (metrics *Metrics) SetSourceHeights(tail, lib uint64) {
	metrics.tailHeightGauge.Set(float64(tail))
	metrics.libHeightGauge.Set(float64(lib))
}

func (metrics *Metrics) SetNbreMaxHeight(height uint64) {
	metrics.nbreHeightGauge.Set(float64(height))
}

func (metrics *Metrics) SetScheduledDipHeight(height uint64) {
	metrics.scheduledDipGauge.Set(float64(height))
}
