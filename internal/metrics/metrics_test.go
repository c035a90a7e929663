package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveRemote("Item", true, time.Millisecond)
		r.ObserveStage("parse", time.Millisecond)
		r.IncRow("Item", "success")
		r.IncAutoFix("x")
		r.IncBatchFinished("completed")
		r.IncUploadRejected("validation")
		r.SetQueueDepth(3)
		r.BatchStarted()
		r.BatchDone()
	})
}

func TestCountersAndHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveRemote("Customer", false, 20*time.Millisecond)
	r.ObserveRemote("Customer", false, 10*time.Millisecond)
	r.IncRow("Customer", "failed")
	r.SetQueueDepth(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.RemoteRequests.WithLabelValues("Customer", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RowsProcessed.WithLabelValues("Customer", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.QueueDepth))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "importer_remote_requests_total")
	assert.Contains(t, string(body), "importer_queue_depth 4")
}
