package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/chunker"
	"github.com/SalindaGunarathna/WebhookPush/internal/push"
	"github.com/SalindaGunarathna/WebhookPush/internal/ratelimit"
	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
	"github.com/SalindaGunarathna/WebhookPush/internal/workqueue"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

const (
	testVAPIDPublic  = "BEfz089O1oWwOr-bY77_dr9EyAK5MSKRcHzaSYlNQC58jv3PLq7ufb5tbeGPX4H38XcoaNuPLe9W7CMtkMozuP0"
	testVAPIDPrivate = "rEc7pnjiIDNeUhR_nGNqElOGtR1YGYlKjATtJahCUw4"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *workqueue.Queue) {
	t.Helper()

	subDB, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open subscription pebble: %v", err)
	}
	t.Cleanup(func() { _ = subDB.Close() })
	subs := store.Open(subDB)

	queueDB, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open queue pebble: %v", err)
	}
	t.Cleanup(func() { _ = queueDB.Close() })
	queue, err := workqueue.OpenQueue(queueDB, 1<<20)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}

	chunk := chunker.New(queue, chunker.Config{MaxPayloadBytes: 102400, ChunkDataBytes: 2400, ReadTimeout: time.Second})
	limiter := ratelimit.New(0)
	sender := push.New(testVAPIDPublic, testVAPIDPrivate, "mailto:ops@example.com")
	logger := log.NewLogger(log.WithLevel(log.ErrorLevel), log.WithOutput(log.NullOutput{}))

	s := New(subs, queue, chunk, limiter, sender, nil, Config{PublicBaseURL: "https://relay.example.com"}, logger)
	return s, subs, queue
}

func createSubscription(t *testing.T, subs *store.Store) *store.Subscription {
	t.Helper()
	sub, err := subs.Create(context.Background(), store.NewSubscription{
		Endpoint: "https://push.example.com/ep",
		P256dh:   "BKAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Auth:     "AAAAAAAAAAAAAAAAAAAAAA",
	}, nil, nil)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

func TestHealthAndConfig(t *testing.T) {
	s, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/api/config")
	if err != nil {
		t.Fatalf("GET /api/config: %v", err)
	}
	defer resp2.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp2.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["public_key"] != testVAPIDPublic {
		t.Fatalf("expected public_key %q, got %q", testVAPIDPublic, body["public_key"])
	}
}

func TestSubscribeThenDelete(t *testing.T) {
	s, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	reqBody := `{"endpoint":"https://push.example.com/ep","keys":{"p256dh":"BKAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","auth":"AAAAAAAAAAAAAAAAAAAAAA"}}`
	resp, err := http.Post(srv.URL+"/api/subscribe", "application/json", bytes.NewBufferString(reqBody))
	if err != nil {
		t.Fatalf("POST /api/subscribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var created map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["uuid"] == "" || created["delete_token"] == "" {
		t.Fatalf("expected uuid and delete_token in response, got %v", created)
	}

	delReq, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/subscribe/"+created["uuid"], nil)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("DELETE without token: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", delResp.StatusCode)
	}

	delReq2, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/subscribe/"+created["uuid"], nil)
	delReq2.Header.Set("X-Delete-Token", created["delete_token"])
	delResp2, err := http.DefaultClient.Do(delReq2)
	if err != nil {
		t.Fatalf("DELETE with token: %v", err)
	}
	delResp2.Body.Close()
	if delResp2.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp2.StatusCode)
	}
}

func TestIngestUnknownUUIDReturns404(t *testing.T) {
	s, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ffffffffffff", "application/octet-stream", bytes.NewBufferString("payload"))
	if err != nil {
		t.Fatalf("POST ingest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestIngestEnqueuesChunks(t *testing.T) {
	s, subs, queue := newTestServer(t)
	sub := createSubscription(t, subs)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/hook/"+sub.UUID, "application/json", bytes.NewBufferString(`{"hello":"world"}`))
	if err != nil {
		t.Fatalf("POST ingest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	depth, err := queue.Depth(context.Background())
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth == 0 {
		t.Fatalf("expected at least one chunk enqueued")
	}
}
