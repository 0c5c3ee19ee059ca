package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.UploadStored("medical", 2048)
	m.UploadStored("medical", 10)
	m.UploadRejected("too_large")
	m.OrphanCleanup("deleted")
	m.IntegrityFault()
	m.Download()
	m.BlobDeleteFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads.WithLabelValues("medical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("too_large")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orphanCleanups.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.integrityFaults))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.downloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.blobDeleteFails))
	assert.Equal(t, 1, testutil.CollectAndCount(m.uploadBytes))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.UploadStored("general", 1)
		m.UploadRejected("x")
		m.OrphanCleanup("failed")
		m.IntegrityFault()
		m.Download()
		m.BlobDeleteFailed()
	})
}
