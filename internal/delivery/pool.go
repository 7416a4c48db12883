package delivery

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/metrics"
	"github.com/SalindaGunarathna/WebhookPush/internal/push"
	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	"github.com/SalindaGunarathna/WebhookPush/internal/workqueue"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

const (
	leaseDuration  = 30 * time.Second
	idleBackoffMin = 50 * time.Millisecond
	idleBackoffMax = 200 * time.Millisecond

	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 30 * time.Second
)

// Config bounds a Pool.
type Config struct {
	Workers    int
	ChunkDelay time.Duration
	// Metrics is optional; when set, delivery outcomes are recorded there
	// for GET /metrics to render.
	Metrics *metrics.Registry
}

// Pool is the fixed-size set of workers draining the disk queue into Web
// Push deliveries.
type Pool struct {
	queue  *workqueue.Queue
	store  *store.Store
	sender *push.Sender
	cfg    Config
	logger log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Pool. cfg.Workers defaults to 8 and cfg.ChunkDelay to 50ms
// when left at their zero values.
func New(queue *workqueue.Queue, subs *store.Store, sender *push.Sender, cfg Config, logger log.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ChunkDelay <= 0 {
		cfg.ChunkDelay = 50 * time.Millisecond
	}
	return &Pool{queue: queue, store: subs, sender: sender, cfg: cfg, logger: logger.WithComponent("delivery")}
}

// Start launches the worker goroutines. Stop tears them down.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Stop signals every worker to exit and waits for in-flight sends to
// finish, up to grace.
func (p *Pool) Stop(grace time.Duration) {
	if p.cancel == nil {
		return
	}
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		p.logger.Warn("delivery pool stop timed out waiting for workers")
	}
}

// run is one worker's lease -> resolve -> send -> outcome loop.
func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	var lastRequestID string
	var lastSentAt time.Time

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries, err := p.queue.Lease(ctx, 1, leaseDuration, time.Now().UnixMilli())
		if err != nil {
			p.logger.Error("lease failed", log.Err(err))
			sleepCtx(ctx, idleBackoff(rng))
			continue
		}
		if len(entries) == 0 {
			sleepCtx(ctx, idleBackoff(rng))
			continue
		}
		entry := entries[0]

		if entry.Header.RequestID == lastRequestID {
			if wait := p.cfg.ChunkDelay - time.Since(lastSentAt); wait > 0 {
				sleepCtx(ctx, wait)
			}
		}

		p.deliver(ctx, entry)
		lastRequestID = entry.Header.RequestID
		lastSentAt = time.Now()
	}
}

func idleBackoff(rng *rand.Rand) time.Duration {
	span := int64(idleBackoffMax - idleBackoffMin)
	return idleBackoffMin + time.Duration(rng.Int63n(span+1))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// deliver resolves the subscription, sends one chunk, and applies the
// outcome mapping from the wire contract's delivery worker algorithm.
func (p *Pool) deliver(ctx context.Context, entry workqueue.Entry) {
	sub, err := p.store.Get(ctx, entry.Header.TargetUUID)
	if err != nil {
		p.logger.Error("subscription lookup failed", log.Str("uuid", entry.Header.TargetUUID), log.Err(err))
		_ = p.queue.Nack(ctx, entry.Seq, baseBackoff, time.Now().UnixMilli())
		return
	}
	if sub == nil {
		// Subscriber deleted since this chunk was enqueued; drop silently.
		_ = p.queue.Ack(ctx, entry.Seq)
		return
	}

	target := push.Target{Endpoint: sub.Endpoint, P256dh: sub.P256dh, Auth: sub.Auth}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.DeliveryStarted()
	}
	result := p.sender.Send(target, entry.Payload)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.DeliveryFinished(outcomeName(result.Outcome))
	}
	now := time.Now().UnixMilli()

	switch result.Outcome {
	case push.OutcomeSent:
		_ = p.queue.Ack(ctx, entry.Seq)

	case push.OutcomeDeadEndpoint:
		if err := p.store.DeleteUnchecked(ctx, entry.Header.TargetUUID); err != nil {
			p.logger.Error("failed to delete dead subscription", log.Str("uuid", entry.Header.TargetUUID), log.Err(err))
		}
		_ = p.queue.Ack(ctx, entry.Seq)
		if _, err := p.queue.AbortRequest(ctx, entry.Header.RequestID); err != nil {
			p.logger.Error("failed to abort remaining chunks", log.Str("request_id", entry.Header.RequestID), log.Err(err))
		}

	case push.OutcomeRateLimited:
		retryAfter := result.RetryAfter
		if retryAfter <= 0 || retryAfter > maxBackoff {
			retryAfter = maxBackoff
		}
		_ = p.queue.Nack(ctx, entry.Seq, retryAfter, now)

	case push.OutcomeTransient:
		_ = p.queue.Nack(ctx, entry.Seq, backoffFor(entry.Header.Attempts), now)

	case push.OutcomeRejected:
		p.logger.Warn("push rejected as malformed", log.Str("uuid", entry.Header.TargetUUID), log.Err(result.Err))
		_ = p.queue.Ack(ctx, entry.Seq)

	default:
		_ = p.queue.Nack(ctx, entry.Seq, baseBackoff, now)
	}

	if result.Err != nil && result.Outcome != push.OutcomeRejected {
		p.logger.Warn("push attempt failed", log.Str("uuid", entry.Header.TargetUUID), log.Str("outcome", outcomeName(result.Outcome)), log.Err(result.Err))
	}
}

// backoffFor computes the exponential delay for a transient failure: base
// 500ms, factor 2, capped at 30s.
func backoffFor(attempts uint32) time.Duration {
	d := baseBackoff
	for i := uint32(0); i < attempts && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func outcomeName(o push.Outcome) string {
	switch o {
	case push.OutcomeSent:
		return "sent"
	case push.OutcomeDeadEndpoint:
		return "dead_endpoint"
	case push.OutcomeRateLimited:
		return "rate_limited"
	case push.OutcomeTransient:
		return "transient"
	case push.OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
