package cleanup

import (
	"context"
	"math/rand"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

const (
	defaultInterval = time.Hour
	jitterFraction  = 10 // adds 0 to interval/10, matching the teacher's sweeper
)

// Config bounds a Scheduler.
type Config struct {
	// Interval between sweeps. Defaults to one hour.
	Interval time.Duration
	// TTL is the subscription max age; subscriptions created before
	// now-TTL are purged.
	TTL time.Duration
}

// Scheduler runs Store.PurgeExpired on a jittered ticker, the same shape as
// the disk queue's expired-lease sweeper.
type Scheduler struct {
	store  *store.Store
	cfg    Config
	logger log.Logger

	stop chan struct{}
}

// New builds a Scheduler. cfg.Interval defaults to one hour when left at
// its zero value.
func New(subs *store.Store, cfg Config, logger log.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Scheduler{store: subs, cfg: cfg, logger: logger.WithComponent("cleanup")}
}

// Start launches the background sweep loop. It is a no-op if already
// running.
func (s *Scheduler) Start() {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	go s.run()
}

// Stop halts the sweep loop. Safe to call even if Start was never called.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

func (s *Scheduler) run() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-s.stop:
			return
		case <-time.After(jittered(s.cfg.Interval, rng)):
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.PurgeExpired(ctx, s.cfg.TTL, time.Now())
	if err != nil {
		s.logger.Error("subscription sweep failed", log.Err(err))
		return
	}
	if n > 0 {
		s.logger.Info("purged expired subscriptions", log.Int("count", n))
	}
}

func jittered(interval time.Duration, rng *rand.Rand) time.Duration {
	span := int64(interval / jitterFraction)
	if span <= 0 {
		return interval
	}
	return interval + time.Duration(rng.Int63n(span+1))
}
