package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Registry accumulates process-lifetime counters for the storage layer and
// the delivery workers. All fields are accessed through atomic ops so a
// pebblestore.DB and a delivery.Pool can share one Registry from different
// goroutines without a lock.
type Registry struct {
	writes          int64
	writeBytes      int64
	reads           int64
	readBytes       int64
	batchCommits    int64
	batchOps        int64
	batchBytes      int64

	sent          int64
	deadEndpoint  int64
	rateLimited   int64
	transient     int64
	rejected      int64
	inFlight      int64
}

// New returns an empty Registry.
func New() *Registry { return &Registry{} }

// ObserveWrite implements pebblestore.MetricsHook.
func (r *Registry) ObserveWrite(_ time.Duration, bytes int) {
	atomic.AddInt64(&r.writes, 1)
	atomic.AddInt64(&r.writeBytes, int64(bytes))
}

// ObserveRead implements pebblestore.MetricsHook.
func (r *Registry) ObserveRead(_ time.Duration, bytes int) {
	atomic.AddInt64(&r.reads, 1)
	atomic.AddInt64(&r.readBytes, int64(bytes))
}

// ObserveBatchCommit implements pebblestore.MetricsHook.
func (r *Registry) ObserveBatchCommit(_ time.Duration, numOps int, bytes int) {
	atomic.AddInt64(&r.batchCommits, 1)
	atomic.AddInt64(&r.batchOps, int64(numOps))
	atomic.AddInt64(&r.batchBytes, int64(bytes))
}

// DeliveryStarted marks one worker entering an outbound push attempt.
func (r *Registry) DeliveryStarted() { atomic.AddInt64(&r.inFlight, 1) }

// DeliveryFinished marks a worker leaving an outbound push attempt and
// records the outcome it finished with.
func (r *Registry) DeliveryFinished(outcome string) {
	atomic.AddInt64(&r.inFlight, -1)
	switch outcome {
	case "sent":
		atomic.AddInt64(&r.sent, 1)
	case "dead_endpoint":
		atomic.AddInt64(&r.deadEndpoint, 1)
	case "rate_limited":
		atomic.AddInt64(&r.rateLimited, 1)
	case "transient":
		atomic.AddInt64(&r.transient, 1)
	case "rejected":
		atomic.AddInt64(&r.rejected, 1)
	}
}

// QueueGauges is a point-in-time snapshot supplied by the caller at render
// time, since depth and live_bytes live in the workqueue, not the registry.
type QueueGauges struct {
	Depth     int
	LiveBytes uint64
}

// WriteProm renders the registry plus gauges as Prometheus text exposition.
func (r *Registry) WriteProm(w io.Writer, gauges QueueGauges) error {
	lines := []struct {
		name string
		help string
		typ  string
		val  int64
	}{
		{"webhookpush_storage_writes_total", "total Pebble writes", "counter", atomic.LoadInt64(&r.writes)},
		{"webhookpush_storage_write_bytes_total", "total bytes written to Pebble", "counter", atomic.LoadInt64(&r.writeBytes)},
		{"webhookpush_storage_reads_total", "total Pebble reads", "counter", atomic.LoadInt64(&r.reads)},
		{"webhookpush_storage_read_bytes_total", "total bytes read from Pebble", "counter", atomic.LoadInt64(&r.readBytes)},
		{"webhookpush_storage_batch_commits_total", "total Pebble batch commits", "counter", atomic.LoadInt64(&r.batchCommits)},
		{"webhookpush_storage_batch_ops_total", "total ops across committed batches", "counter", atomic.LoadInt64(&r.batchOps)},
		{"webhookpush_storage_batch_bytes_total", "total bytes across committed batches", "counter", atomic.LoadInt64(&r.batchBytes)},
		{"webhookpush_delivery_sent_total", "push attempts that succeeded", "counter", atomic.LoadInt64(&r.sent)},
		{"webhookpush_delivery_dead_endpoint_total", "push attempts against a gone endpoint", "counter", atomic.LoadInt64(&r.deadEndpoint)},
		{"webhookpush_delivery_rate_limited_total", "push attempts rate limited by the push service", "counter", atomic.LoadInt64(&r.rateLimited)},
		{"webhookpush_delivery_transient_total", "push attempts that failed transiently", "counter", atomic.LoadInt64(&r.transient)},
		{"webhookpush_delivery_rejected_total", "push attempts rejected as malformed", "counter", atomic.LoadInt64(&r.rejected)},
		{"webhookpush_delivery_in_flight", "push attempts currently outstanding", "gauge", atomic.LoadInt64(&r.inFlight)},
		{"webhookpush_queue_depth", "entries currently queued", "gauge", int64(gauges.Depth)},
		{"webhookpush_queue_live_bytes", "payload bytes currently queued", "gauge", int64(gauges.LiveBytes)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", l.name, l.help, l.name, l.typ, l.name, l.val); err != nil {
			return err
		}
	}
	return nil
}
