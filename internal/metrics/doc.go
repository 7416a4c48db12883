// Package metrics implements storage.pebble.MetricsHook and a handful of
// delivery-outcome counters, rendered as Prometheus text exposition by
// GET /metrics.
//
// No metrics client library appears anywhere in the example pack as a
// direct dependency (the one occurrence is an indirect, transitive entry
// pulled in by an unrelated package, never imported by any repo's own
// code), so this is a small hand-rolled counter set behind the teacher's
// own MetricsHook interface rather than an adopted third-party exporter.
package metrics
