package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/SalindaGunarathna/WebhookPush/internal/config"
	"github.com/SalindaGunarathna/WebhookPush/internal/metrics"
	"github.com/SalindaGunarathna/WebhookPush/internal/push"
	"github.com/SalindaGunarathna/WebhookPush/internal/ratelimit"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	"github.com/SalindaGunarathna/WebhookPush/internal/workqueue"
)

// Options for building the Runtime.
type Options struct {
	Fsync  pebblestore.FsyncMode
	Config cfgpkg.Config
}

// Runtime wires the two Pebble instances (subscription store, disk queue)
// and the domain objects built directly on top of them, the way the
// teacher's Runtime wires one DB plus its namespace/eventlog/workqueue
// facades.
type Runtime struct {
	subDB   *pebblestore.DB
	queueDB *pebblestore.DB

	store   *store.Store
	queue   *workqueue.Queue
	limiter *ratelimit.Limiter
	sender  *push.Sender
	metrics *metrics.Registry

	config cfgpkg.Config
}

// Open initializes both Pebble instances and the domain objects built on
// top of them, and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	reg := metrics.New()

	subDB, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.Config.DBPath,
		Fsync:         opts.Fsync,
		FsyncInterval: time.Duration(opts.Config.FsyncIntervalMs) * time.Millisecond,
		Metrics:       reg,
	})
	if err != nil {
		return nil, err
	}

	queueDB, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.Config.QueueDBPath,
		Fsync:         opts.Fsync,
		FsyncInterval: time.Duration(opts.Config.FsyncIntervalMs) * time.Millisecond,
		Metrics:       reg,
	})
	if err != nil {
		_ = subDB.Close()
		return nil, err
	}

	queue, err := workqueue.OpenQueue(queueDB, uint64(opts.Config.QueueMaxBytes))
	if err != nil {
		_ = subDB.Close()
		_ = queueDB.Close()
		return nil, err
	}

	rt := &Runtime{
		subDB:   subDB,
		queueDB: queueDB,
		store:   store.Open(subDB),
		queue:   queue,
		limiter: ratelimit.New(opts.Config.RateLimitPerMinute),
		sender:  push.New(opts.Config.VAPIDPublicKey, opts.Config.VAPIDPrivateKey, opts.Config.VAPIDSubject),
		metrics: reg,
		config:  opts.Config,
	}
	return rt, nil
}

// Close closes both underlying Pebble instances.
func (r *Runtime) Close() error {
	var errs []error
	if r.queueDB != nil {
		if err := r.queueDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.subDB != nil {
		if err := r.subDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckHealth performs a simple liveness check against both databases.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	for _, db := range []*pebblestore.DB{r.subDB, r.queueDB} {
		if db == nil {
			return errors.New("db not open")
		}
		it, err := db.NewIter(nil)
		if err != nil {
			return err
		}
		it.Close()
	}
	return nil
}

// Store returns the Subscription Store.
func (r *Runtime) Store() *store.Store { return r.store }

// Queue returns the disk queue.
func (r *Runtime) Queue() *workqueue.Queue { return r.queue }

// Limiter returns the ingest rate limiter.
func (r *Runtime) Limiter() *ratelimit.Limiter { return r.limiter }

// Sender returns the Web Push sender built from the configured VAPID keys.
func (r *Runtime) Sender() *push.Sender { return r.sender }

// Metrics returns the shared metrics registry fed by both Pebble instances.
func (r *Runtime) Metrics() *metrics.Registry { return r.metrics }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
