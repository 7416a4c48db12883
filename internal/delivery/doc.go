// Package delivery runs the fixed pool of workers that lease chunk
// envelopes off the disk queue, encrypt and POST them through
// internal/push, and translate the outcome into ack/nack/abort decisions.
//
// The claim → send → ack/nack/requeue shape follows the original service's
// worker_loop (original_source/src/queue.rs), re-expressed over
// internal/workqueue's lease/ack/nack vocabulary instead of redb tables,
// and widened from that loop's fixed retry delay to the exponential
// backoff the wire contract calls for on 5xx/transport failures.
package delivery
