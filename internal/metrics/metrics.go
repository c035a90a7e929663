// Package metrics exposes the importer's Prometheus collectors.
//
// All Observe/Inc helpers accept a nil *Registry so components can run
// without metrics (tests, the CLI).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RemoteRequests  *prometheus.CounterVec
	RemoteLatency   *prometheus.HistogramVec
	StageDuration   *prometheus.HistogramVec
	RowsProcessed   *prometheus.CounterVec
	AutoFixApplied  *prometheus.CounterVec
	BatchesFinished *prometheus.CounterVec
	UploadsRejected *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	ActiveBatches   prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	remoteRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "importer_remote_requests_total",
		Help: "ERPNext API calls by doctype and outcome.",
	}, []string{"doctype", "outcome"})
	remoteLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "importer_remote_request_seconds",
		Help:    "ERPNext API call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"doctype"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "importer_stage_seconds",
		Help:    "Time spent in parse, map and validate.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"stage"})
	rowsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "importer_rows_processed_total",
		Help: "Rows replayed against ERPNext by module and outcome.",
	}, []string{"module", "outcome"})
	autoFixApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "importer_autofix_applied_total",
		Help: "Auto-fix strategies applied before a retry.",
	}, []string{"strategy"})
	batchesFinished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "importer_batches_finished_total",
		Help: "Batches that reached a terminal status.",
	}, []string{"status"})
	uploadsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "importer_uploads_rejected_total",
		Help: "Uploads refused before a batch was created.",
	}, []string{"reason"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "importer_queue_depth",
		Help: "Batches waiting for a worker.",
	})
	activeBatches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "importer_active_batches",
		Help: "Batches currently being processed.",
	})

	r.MustRegister(remoteRequests, remoteLatency, stageDuration, rowsProcessed,
		autoFixApplied, batchesFinished, uploadsRejected, queueDepth, activeBatches)

	return &Registry{
		reg:             r,
		RemoteRequests:  remoteRequests,
		RemoteLatency:   remoteLatency,
		StageDuration:   stageDuration,
		RowsProcessed:   rowsProcessed,
		AutoFixApplied:  autoFixApplied,
		BatchesFinished: batchesFinished,
		UploadsRejected: uploadsRejected,
		QueueDepth:      queueDepth,
		ActiveBatches:   activeBatches,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) ObserveRemote(doctype string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.RemoteRequests.WithLabelValues(doctype, outcome).Inc()
	r.RemoteLatency.WithLabelValues(doctype).Observe(d.Seconds())
}

func (r *Registry) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncRow counts a finished row. outcome is success, autofixed or failed.
func (r *Registry) IncRow(module, outcome string) {
	if r == nil {
		return
	}
	r.RowsProcessed.WithLabelValues(module, outcome).Inc()
}

func (r *Registry) IncAutoFix(strategy string) {
	if r == nil {
		return
	}
	r.AutoFixApplied.WithLabelValues(strategy).Inc()
}

func (r *Registry) IncBatchFinished(status string) {
	if r == nil {
		return
	}
	r.BatchesFinished.WithLabelValues(status).Inc()
}

func (r *Registry) IncUploadRejected(reason string) {
	if r == nil {
		return
	}
	r.UploadsRejected.WithLabelValues(reason).Inc()
}

func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(n))
}

func (r *Registry) BatchStarted() {
	if r == nil {
		return
	}
	r.ActiveBatches.Inc()
}

func (r *Registry) BatchDone() {
	if r == nil {
		return
	}
	r.ActiveBatches.Dec()
}
