package serverrun

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	cfgpkg "github.com/SalindaGunarathna/WebhookPush/internal/config"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.BindAddr = "127.0.0.1:0"
	cfg.DBPath = filepath.Join(dir, "subs.db")
	cfg.QueueDBPath = filepath.Join(dir, "queue.db")
	cfg.VAPIDPublicKey = "pub"
	cfg.VAPIDPrivateKey = "priv"
	return Options{Fsync: pebblestore.FsyncModeNever, Config: cfg}
}

// TestRunShutsDownOnContextCancel is a light integration test: it starts
// every component wired by Run and verifies a cancelled context unwinds
// them cleanly instead of hanging or returning an error.
func TestRunShutsDownOnContextCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, testOptions(t)) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned an error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not shut down after context cancellation")
	}
}
