package runtime

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "github.com/SalindaGunarathna/WebhookPush/internal/config"
	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.DBPath = filepath.Join(dir, "subs.db")
	cfg.QueueDBPath = filepath.Join(dir, "queue.db")
	cfg.VAPIDPublicKey = "pub"
	cfg.VAPIDPrivateKey = "priv"
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Fsync: pebblestore.FsyncModeAlways, Config: testConfig(t)})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestRuntimeWiresDomainObjects(t *testing.T) {
	rt, err := Open(Options{Fsync: pebblestore.FsyncModeAlways, Config: testConfig(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	sub, err := rt.Store().Create(context.Background(), store.NewSubscription{
		Endpoint: "https://push.example.com/ep",
		P256dh:   "BKAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Auth:     "AAAAAAAAAAAAAAAAAAAAAA",
	}, nil, nil)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	if _, err := rt.Queue().Enqueue(context.Background(), sub.UUID, strings.Repeat("1", 32), []byte("payload"), 1000); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	depth, err := rt.Queue().Depth(context.Background())
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected depth 1, got %d", depth)
	}

	if !rt.Limiter().Allow(sub.UUID) {
		t.Fatalf("expected limiter to admit a fresh uuid")
	}
	if rt.Sender() == nil {
		t.Fatalf("expected a configured push sender")
	}
}
