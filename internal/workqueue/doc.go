// Package workqueue implements the bounded, crash-safe disk queue that
// decouples webhook ingest from encrypted push delivery.
//
// There is exactly one queue (no namespaces, groups, or partitions): every
// chunk envelope produced by the chunker is enqueued here and later leased,
// one at a time, by a delivery worker. Index families track an entry's
// state over a single Pebble keyspace:
//
//	q/msg/{seq}                   - framed (header|payload|crc32c) record
//	q/ready/{seq}                  - available for lease, ascending = FIFO
//	q/delay/{fire_ms}/{seq}        - held until fire_ms, used by Nack backoff
//	q/lease/{seq}                   - current lease (expires_at_ms)
//	q/leaseidx/{expires_ms}/{seq}   - lease expiry index for reclaim
//	q/reqidx/{request_id}/{seq}     - secondary index for AbortRequest
//	q/meta                          - next_seq (8B) | live_bytes (8B)
//
// # Lifecycle
//
//  1. Enqueue: record framed and written, indexed into ready; live_bytes
//     checked and incremented in the same batch, atomically rejecting the
//     insert with ErrQueueFull if it would exceed the configured budget.
//  2. Lease: oldest ready entries moved to the lease state with a
//     visibility timeout.
//  3. Ack: record and all its indices deleted, live_bytes decremented.
//  4. Nack: record rewritten with a bumped attempt count, re-indexed into
//     ready (no delay) or delay (with backoff).
//  5. AbortRequest: every record sharing a request_id is deleted outright;
//     stale ready/delay/lease pointers left behind are skipped the next
//     time Lease or the reclaim loop walks past them.
//
// # Crash safety
//
// On open, every outstanding lease is moved back to ready — a process that
// died mid-delivery loses no work, only delivery ordering. A background
// reclaim loop additionally recovers leases abandoned by a worker that
// stalled past its visibility timeout without the whole process crashing.
package workqueue
