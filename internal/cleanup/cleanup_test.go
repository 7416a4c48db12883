package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

// Keys that pass the store's length checks (65 and 16 bytes, base64url).
const (
	testP256dh = "BKAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	testAuth   = "AAAAAAAAAAAAAAAAAAAAAA"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.Open(db)
}

func newTestLogger() log.Logger {
	return log.NewLogger(log.WithLevel(log.ErrorLevel), log.WithOutput(log.NullOutput{}))
}

func TestSchedulerPurgesExpiredSubscriptions(t *testing.T) {
	subs := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	expired, err := subs.Create(ctx, store.NewSubscription{Endpoint: "https://push.example.com/old", P256dh: testP256dh, Auth: testAuth}, nil, func() time.Time { return old })
	if err != nil {
		t.Fatalf("create expired subscription: %v", err)
	}
	fresh, err := subs.Create(ctx, store.NewSubscription{Endpoint: "https://push.example.com/new", P256dh: testP256dh, Auth: testAuth}, nil, nil)
	if err != nil {
		t.Fatalf("create fresh subscription: %v", err)
	}

	s := New(subs, Config{TTL: 24 * time.Hour}, newTestLogger())
	s.sweep()

	if got, _ := subs.Get(ctx, expired.UUID); got != nil {
		t.Fatalf("expected expired subscription to be purged")
	}
	if got, _ := subs.Get(ctx, fresh.UUID); got == nil {
		t.Fatalf("expected fresh subscription to survive the sweep")
	}
}

func TestSchedulerStartStopIsIdempotent(t *testing.T) {
	subs := newTestStore(t)
	s := New(subs, Config{Interval: time.Millisecond, TTL: time.Hour}, newTestLogger())
	s.Start()
	s.Start() // no-op, must not deadlock or spawn a second loop
	time.Sleep(5 * time.Millisecond)
	s.Stop()
	s.Stop() // no-op
}
