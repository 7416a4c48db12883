// Package workqueue implements the bounded, crash-safe FIFO disk queue that
// sits between chunked ingest and delivery workers.
//
// Every chunk envelope is framed with EncodeMessage (a small header plus the
// envelope bytes, CRC32C-checked) and indexed into one of three states:
// ready (available to lease), delayed (held until a fire time, used for
// nack-with-backoff), or leased (checked out by a worker, with an expiry
// index for crash/stall recovery). A byte budget tracked in the meta key is
// checked and updated in the same batch as every insert, so a request that
// would push the queue over QUEUE_MAX_BYTES is rejected atomically rather
// than partially admitted.
//
// Entries also carry a request_id, indexed separately so AbortRequest can
// drop every chunk belonging to a request in one pass (used both for
// ingest-time rollback on QueueFull and for worker-side cleanup after a
// dead-endpoint response). Abort only removes the message record and its
// request index entry; any ready/delay/lease index pointer left behind is
// harmless and is reaped lazily the next time Lease or the reclaim loop
// walks past it and finds the message gone, mirroring how Lease already
// tolerates a missing message.
package workqueue

import (
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
)

// ErrQueueFull is returned by Enqueue when admitting the record would push
// live_bytes over the configured budget.
var ErrQueueFull = errors.New("workqueue: queue full")

const defaultLeaseDuration = 30 * time.Second

// Entry is a leased record returned by Lease.
type Entry struct {
	Seq     uint64
	Header  Header
	Payload []byte
}

// Queue is the single, implicit disk queue for this relay.
type Queue struct {
	db      *pebblestore.DB
	maxBytes uint64

	mu        sync.Mutex
	nextSeq   uint64
	liveBytes uint64

	reclaimStop chan struct{}
}

// OpenQueue opens (or initializes) the disk queue backed by db, restores its
// sequence counter and byte budget from the meta key, and clears any leases
// left over from a previous process — on restart every leased entry becomes
// ready again, per the crash-safety contract.
func OpenQueue(db *pebblestore.DB, maxBytes uint64) (*Queue, error) {
	q := &Queue{db: db, maxBytes: maxBytes}
	if meta, err := db.Get(metaKey()); err == nil && len(meta) >= 16 {
		q.nextSeq = binary.BigEndian.Uint64(meta[0:8])
		q.liveBytes = binary.BigEndian.Uint64(meta[8:16])
	}
	if _, err := q.reclaimAllLeases(context.Background()); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) writeMeta(b *pebble.Batch) error {
	var meta [16]byte
	binary.BigEndian.PutUint64(meta[0:8], q.nextSeq)
	binary.BigEndian.PutUint64(meta[8:16], q.liveBytes)
	return b.Set(metaKey(), meta[:], nil)
}

// Depth returns the number of ready entries, for /metrics.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	lo, hi := prefixRange(prefixReady)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}

// LiveBytes returns the current byte budget usage, for /metrics.
func (q *Queue) LiveBytes() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.liveBytes
}

// Enqueue appends envelope bytes tagged with targetUUID and requestID. If
// admitting the record would exceed the configured byte budget it returns
// ErrQueueFull without mutating state.
func (q *Queue) Enqueue(ctx context.Context, targetUUID, requestID string, payload []byte, nowMs int64) (uint64, error) {
	header := Header{TargetUUID: targetUUID, RequestID: requestID, Attempts: 0, EnqueuedAtMs: nowMs}
	headerBytes, err := encodeHeader(header)
	if err != nil {
		return 0, err
	}
	reqID, err := requestIDBytes(requestID)
	if err != nil {
		return 0, err
	}
	rec := EncodeMessage(headerBytes, payload)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.liveBytes+uint64(len(rec)) > q.maxBytes {
		return 0, ErrQueueFull
	}

	seq := q.nextSeq + 1
	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Set(msgKey(seq), rec, nil); err != nil {
		return 0, err
	}
	if err := b.Set(readyKey(seq), nil, nil); err != nil {
		return 0, err
	}
	if err := b.Set(reqIdxKey(reqID, seq), nil, nil); err != nil {
		return 0, err
	}
	q.nextSeq = seq
	q.liveBytes += uint64(len(rec))
	if err := q.writeMeta(b); err != nil {
		return 0, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		q.nextSeq--
		q.liveBytes -= uint64(len(rec))
		return 0, err
	}
	return seq, nil
}

// AbortRequest removes every queued entry tagged with requestID, used for
// ingest-time rollback on QueueFull and for worker-side cleanup after a
// dead-endpoint response. Returns the number of entries removed.
func (q *Queue) AbortRequest(ctx context.Context, requestID string) (int, error) {
	reqID, err := requestIDBytes(requestID)
	if err != nil {
		return 0, err
	}
	prefix := reqIdxPrefix(reqID)
	hi := append(append([]byte{}, prefix...), 0xFF)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()
	removed := 0
	var freed uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		seq, ok2 := seqFromKey(iter.Key())
		if !ok2 {
			continue
		}
		if err := b.Delete(append([]byte{}, iter.Key()...), nil); err != nil {
			return removed, err
		}
		val, errGet := q.db.Get(msgKey(seq))
		if errGet == nil {
			freed += uint64(len(val))
		}
		if err := b.Delete(msgKey(seq), nil); err != nil {
			return removed, err
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	if freed > q.liveBytes {
		freed = q.liveBytes
	}
	q.liveBytes -= freed
	if err := q.writeMeta(b); err != nil {
		return removed, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return removed, err
	}
	return removed, nil
}

// promoteDue moves delayed entries whose fire time has passed into ready.
// Callers must hold q.mu: it iterates then commits, and an interleaved
// commit from another goroutine between those two steps would let two
// lessees promote (and then lease) the same entry.
func (q *Queue) promoteDue(ctx context.Context, nowMs int64) error {
	lo, hi := prefixRange(prefixDelay)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	promoted := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if len(key) < len(prefixDelay)+16 {
			continue
		}
		fire := binary.BigEndian.Uint64(key[len(prefixDelay) : len(prefixDelay)+8])
		if int64(fire) > nowMs {
			break
		}
		seq, ok2 := seqFromKey(key)
		if !ok2 {
			continue
		}
		if err := b.Delete(append([]byte{}, key...), nil); err != nil {
			return err
		}
		if err := b.Set(readyKey(seq), nil, nil); err != nil {
			return err
		}
		promoted++
	}
	if promoted == 0 {
		return nil
	}
	return q.db.CommitBatch(ctx, b)
}

// Lease checks out up to max ready entries, oldest sequence first, under a
// visibility lease of leaseDuration.
func (q *Queue) Lease(ctx context.Context, max int, leaseDuration time.Duration, nowMs int64) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max <= 0 {
		max = 1
	}
	if leaseDuration <= 0 {
		leaseDuration = defaultLeaseDuration
	}
	if err := q.promoteDue(ctx, nowMs); err != nil {
		return nil, err
	}

	lo, hi := prefixRange(prefixReady)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	entries := make([]Entry, 0, max)
	expiresAt := nowMs + leaseDuration.Milliseconds()
	for ok := iter.First(); ok && len(entries) < max; ok = iter.Next() {
		key := iter.Key()
		seq, ok2 := seqFromKey(key)
		if !ok2 {
			continue
		}
		if err := b.Delete(append([]byte{}, key...), nil); err != nil {
			return nil, err
		}
		rec, errGet := q.db.Get(msgKey(seq))
		if errGet != nil {
			// Message already gone (aborted); drop the stale ready pointer.
			continue
		}
		dec, okDec := DecodeMessage(rec)
		if !okDec {
			continue
		}
		header, okHdr := decodeHeader(dec.Header)
		if !okHdr {
			continue
		}
		var lbuf [8]byte
		binary.BigEndian.PutUint64(lbuf[:], uint64(expiresAt))
		if err := b.Set(leaseKey(seq), lbuf[:], nil); err != nil {
			return nil, err
		}
		if err := b.Set(leaseIdxKey(uint64(expiresAt), seq), nil, nil); err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Seq: seq, Header: header, Payload: dec.Payload})
	}
	if len(entries) == 0 {
		// Still commit any stale ready pointers dropped above.
		if !b.Empty() {
			if err := q.db.CommitBatch(ctx, b); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return entries, nil
}

func (q *Queue) leaseExpiry(seq uint64) (uint64, bool) {
	val, err := q.db.Get(leaseKey(seq))
	if err != nil || len(val) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(val[:8]), true
}

// Ack permanently removes a leased entry: delivery succeeded, the target was
// gone, or it was otherwise terminal.
func (q *Queue) Ack(ctx context.Context, seq uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.db.Get(msgKey(seq))
	if err != nil {
		// Already gone (e.g. aborted concurrently); acking is idempotent.
		return nil
	}
	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Delete(msgKey(seq), nil); err != nil {
		return err
	}
	if exp, ok := q.leaseExpiry(seq); ok {
		if err := b.Delete(leaseKey(seq), nil); err != nil {
			return err
		}
		if err := b.Delete(leaseIdxKey(exp, seq), nil); err != nil {
			return err
		}
	}
	if dec, ok := DecodeMessage(rec); ok {
		if h, ok := decodeHeader(dec.Header); ok {
			if reqID, err := requestIDBytes(h.RequestID); err == nil {
				if err := b.Delete(reqIdxKey(reqID, seq), nil); err != nil {
					return err
				}
			}
		}
	}
	freed := uint64(len(rec))
	if freed > q.liveBytes {
		freed = q.liveBytes
	}
	q.liveBytes -= freed
	if err := q.writeMeta(b); err != nil {
		return err
	}
	return q.db.CommitBatch(ctx, b)
}

// Nack releases a leased entry back for redelivery, bumping its attempt
// count. If retryAfter is zero the entry becomes immediately ready;
// otherwise it is held in the delay index until retryAfter has elapsed.
func (q *Queue) Nack(ctx context.Context, seq uint64, retryAfter time.Duration, nowMs int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.db.Get(msgKey(seq))
	if err != nil {
		return nil
	}
	dec, ok := DecodeMessage(rec)
	if !ok {
		return nil
	}
	header, ok := decodeHeader(dec.Header)
	if !ok {
		return nil
	}
	header.Attempts++
	newHeaderBytes, err := encodeHeader(header)
	if err != nil {
		return err
	}
	newRec := EncodeMessage(newHeaderBytes, dec.Payload)

	b := q.db.NewBatch()
	defer b.Close()
	if exp, ok := q.leaseExpiry(seq); ok {
		if err := b.Delete(leaseKey(seq), nil); err != nil {
			return err
		}
		if err := b.Delete(leaseIdxKey(exp, seq), nil); err != nil {
			return err
		}
	}
	if err := b.Set(msgKey(seq), newRec, nil); err != nil {
		return err
	}
	if retryAfter > 0 {
		fire := uint64(nowMs) + uint64(retryAfter.Milliseconds())
		if err := b.Set(delayKey(fire, seq), nil, nil); err != nil {
			return err
		}
	} else {
		if err := b.Set(readyKey(seq), nil, nil); err != nil {
			return err
		}
	}
	return q.db.CommitBatch(ctx, b)
}

// reclaimAllLeases moves every leased entry back to ready, used once on
// startup to recover from an unclean shutdown.
func (q *Queue) reclaimAllLeases(ctx context.Context) (int, error) {
	lo, hi := prefixRange(prefixLease)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	reclaimed := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		seq, ok2 := seqFromKey(key)
		if !ok2 {
			continue
		}
		val := iter.Value()
		if err := b.Delete(append([]byte{}, key...), nil); err != nil {
			return reclaimed, err
		}
		if len(val) >= 8 {
			exp := binary.BigEndian.Uint64(val[:8])
			if err := b.Delete(leaseIdxKey(exp, seq), nil); err != nil {
				return reclaimed, err
			}
		}
		if err := b.Set(readyKey(seq), nil, nil); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}
	if reclaimed == 0 {
		return 0, nil
	}
	return reclaimed, q.db.CommitBatch(ctx, b)
}

// ReclaimExpiredLeases moves leases past their visibility timeout back to
// ready, for crashed or stalled workers. Returns the number reclaimed.
func (q *Queue) ReclaimExpiredLeases(ctx context.Context, nowMs int64, max int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	lo, hi := prefixRange(prefixLeaseIdx)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	reclaimed := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if len(key) < len(prefixLeaseIdx)+16 {
			continue
		}
		exp := binary.BigEndian.Uint64(key[len(prefixLeaseIdx) : len(prefixLeaseIdx)+8])
		if int64(exp) > nowMs {
			break
		}
		seq, ok2 := seqFromKey(key)
		if !ok2 {
			continue
		}
		if err := b.Delete(append([]byte{}, key...), nil); err != nil {
			return reclaimed, err
		}
		if err := b.Delete(leaseKey(seq), nil); err != nil {
			return reclaimed, err
		}
		if err := b.Set(readyKey(seq), nil, nil); err != nil {
			return reclaimed, err
		}
		reclaimed++
		if max > 0 && reclaimed >= max {
			break
		}
	}
	if reclaimed == 0 {
		return 0, nil
	}
	return reclaimed, q.db.CommitBatch(ctx, b)
}

// StartReclaimLoop runs ReclaimExpiredLeases on a jittered interval until
// StopReclaimLoop is called.
func (q *Queue) StartReclaimLoop(interval time.Duration) {
	if q.reclaimStop != nil || interval <= 0 {
		return
	}
	q.reclaimStop = make(chan struct{})
	stop := q.reclaimStop
	go func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			select {
			case <-stop:
				return
			case <-time.After(interval + time.Duration(rng.Int63n(int64(interval/10+1)))):
				_, _ = q.ReclaimExpiredLeases(context.Background(), time.Now().UnixMilli(), 1024)
			}
		}
	}()
}

// StopReclaimLoop stops the background reclaim loop started by
// StartReclaimLoop.
func (q *Queue) StopReclaimLoop() {
	if q.reclaimStop != nil {
		close(q.reclaimStop)
		q.reclaimStop = nil
	}
}
