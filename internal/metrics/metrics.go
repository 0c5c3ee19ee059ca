// Package metrics holds the document pipeline counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Histogram
	rejections      *prometheus.CounterVec
	orphanCleanups  *prometheus.CounterVec
	integrityFaults prometheus.Counter
	downloads       prometheus.Counter
	blobDeleteFails prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casedocs_uploads_total",
				Help: "Documents stored successfully, by category.",
			},
			[]string{"category"},
		),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "casedocs_upload_size_bytes",
			Help:    "Size of stored documents.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casedocs_upload_rejections_total",
				Help: "Uploads rejected before any write, by reason.",
			},
			[]string{"reason"},
		),
		orphanCleanups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casedocs_orphan_cleanups_total",
				Help: "Compensating blob deletes after a failed metadata insert, by outcome.",
			},
			[]string{"outcome"},
		),
		integrityFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casedocs_integrity_faults_total",
			Help: "Metadata rows found without a backing blob.",
		}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casedocs_downloads_total",
			Help: "Documents streamed to clients.",
		}),
		blobDeleteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casedocs_blob_delete_failures_total",
			Help: "Blob deletes that failed after the metadata row was removed.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.uploads, m.uploadBytes, m.rejections, m.orphanCleanups,
		m.integrityFaults, m.downloads, m.blobDeleteFails,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) UploadStored(category string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(category).Inc()
	m.uploadBytes.Observe(float64(size))
}

func (m *Metrics) UploadRejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// OrphanCleanup records the outcome ("deleted" or "failed") of a compensating delete.
func (m *Metrics) OrphanCleanup(outcome string) {
	if m == nil {
		return
	}
	m.orphanCleanups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IntegrityFault() {
	if m == nil {
		return
	}
	m.integrityFaults.Inc()
}

func (m *Metrics) Download() {
	if m == nil {
		return
	}
	m.downloads.Inc()
}

func (m *Metrics) BlobDeleteFailed() {
	if m == nil {
		return
	}
	m.blobDeleteFails.Inc()
}
