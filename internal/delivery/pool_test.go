package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/push"
	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
	"github.com/SalindaGunarathna/WebhookPush/internal/workqueue"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

const (
	testVAPIDPublic  = "BEfz089O1oWwOr-bY77_dr9EyAK5MSKRcHzaSYlNQC58jv3PLq7ufb5tbeGPX4H38XcoaNuPLe9W7CMtkMozuP0"
	testVAPIDPrivate = "rEc7pnjiIDNeUhR_nGNqElOGtR1YGYlKjATtJahCUw4"
	testUUID         = "0123456789ab"
	// testAuth is a 16-byte base64url auth secret; testVAPIDPublic doubles as
	// a valid 65-byte P-256 p256dh key.
	testAuth = "AAAAAAAAAAAAAAAAAAAAAA"
)

func reqID(tag byte) string { return strings.Repeat(string([]byte{tag}), 32) }

func newTestQueue(t *testing.T) *workqueue.Queue {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	q, err := workqueue.OpenQueue(db, 1<<20)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

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

func waitForDepth(t *testing.T, q *workqueue.Queue, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		depth, err := q.Depth(context.Background())
		if err != nil {
			t.Fatalf("depth: %v", err)
		}
		if depth == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for depth %d, last seen %d", want, depth)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoolAcksOnSuccessfulSend(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	q := newTestQueue(t)
	subs := newTestStore(t)
	sub, err := subs.Create(context.Background(), store.NewSubscription{Endpoint: srv.URL, P256dh: testVAPIDPublic, Auth: testAuth}, nil, nil)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	if _, err := q.Enqueue(context.Background(), sub.UUID, reqID('1'), []byte(`{"request_id":"1","chunk_index":1,"total_chunks":1,"is_last":true,"data":""}`), time.Now().UnixMilli()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sender := push.New(testVAPIDPublic, testVAPIDPrivate, "mailto:ops@example.com")
	pool := New(q, subs, sender, Config{Workers: 2, ChunkDelay: time.Millisecond}, newTestLogger())
	pool.Start()
	defer pool.Stop(time.Second)

	waitForDepth(t, q, 0, 2*time.Second)
	if hits == 0 {
		t.Fatalf("expected the push endpoint to be hit at least once")
	}
}

func TestPoolDropsChunkForMissingSubscription(t *testing.T) {
	q := newTestQueue(t)
	subs := newTestStore(t)

	if _, err := q.Enqueue(context.Background(), testUUID, reqID('2'), []byte("payload"), time.Now().UnixMilli()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	sender := push.New(testVAPIDPublic, testVAPIDPrivate, "mailto:ops@example.com")
	pool := New(q, subs, sender, Config{Workers: 1, ChunkDelay: time.Millisecond}, newTestLogger())
	pool.Start()
	defer pool.Stop(time.Second)

	waitForDepth(t, q, 0, 2*time.Second)
}

func TestPoolDeletesSubscriptionOnDeadEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	q := newTestQueue(t)
	subs := newTestStore(t)
	sub, err := subs.Create(context.Background(), store.NewSubscription{Endpoint: srv.URL, P256dh: testVAPIDPublic, Auth: testAuth}, nil, nil)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	rid := reqID('3')
	if _, err := q.Enqueue(context.Background(), sub.UUID, rid, []byte("chunk-1"), time.Now().UnixMilli()); err != nil {
		t.Fatalf("enqueue chunk 1: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), sub.UUID, rid, []byte("chunk-2"), time.Now().UnixMilli()); err != nil {
		t.Fatalf("enqueue chunk 2: %v", err)
	}

	sender := push.New(testVAPIDPublic, testVAPIDPrivate, "mailto:ops@example.com")
	pool := New(q, subs, sender, Config{Workers: 1, ChunkDelay: time.Millisecond}, newTestLogger())
	pool.Start()
	defer pool.Stop(time.Second)

	waitForDepth(t, q, 0, 2*time.Second)

	if got, _ := subs.Get(context.Background(), sub.UUID); got != nil {
		t.Fatalf("expected subscription to be deleted after a dead-endpoint response")
	}
}
