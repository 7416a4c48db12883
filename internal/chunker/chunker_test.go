package chunker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"
	"time"

	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
	"github.com/SalindaGunarathna/WebhookPush/internal/workqueue"
)

const testUUID = "0123456789ab"

func reqID(tag byte) string {
	return strings.Repeat(string([]byte{tag}), 32)
}

func openTestQueue(t *testing.T) *workqueue.Queue {
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

func drain(t *testing.T, q *workqueue.Queue, n int) []workqueue.Entry {
	t.Helper()
	entries, err := q.Lease(context.Background(), n, 30*time.Second, 1000)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d entries, got %d", n, len(entries))
	}
	return entries
}

func TestStreamReassemblesFrameAndBody(t *testing.T) {
	q := openTestQueue(t)
	c := New(q, Config{MaxPayloadBytes: 1 << 16, ChunkDataBytes: 2400, ReadTimeout: time.Second})

	body := bytes.Repeat([]byte("x"), 5000)
	meta := RequestMeta{Method: "POST", Path: "/hook/abc", Query: "a=b", Headers: map[string][]string{"Content-Type": {"text/plain"}}, SourceIP: "1.2.3.4", Timestamp: 1000}

	n, err := c.Stream(context.Background(), testUUID, reqID('1'), meta, bytes.NewReader(body), func() int64 { return 1000 })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected more than one chunk for 5000 byte body, got %d", n)
	}

	entries := drain(t, q, n)
	var reassembled []byte
	for i, e := range entries {
		var env ChunkEnvelope
		if err := json.Unmarshal(e.Payload, &env); err != nil {
			t.Fatalf("unmarshal envelope %d: %v", i, err)
		}
		if env.ChunkIndex != i+1 {
			t.Fatalf("expected chunk_index %d, got %d", i+1, env.ChunkIndex)
		}
		isLast := i == len(entries)-1
		if env.IsLast != isLast {
			t.Fatalf("chunk %d: is_last=%v, want %v", i, env.IsLast, isLast)
		}
		if isLast {
			if env.TotalChunks != n {
				t.Fatalf("expected total_chunks %d on final chunk, got %d", n, env.TotalChunks)
			}
		} else if env.TotalChunks != 0 {
			t.Fatalf("expected total_chunks 0 (unknown) before final chunk")
		}
		data, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			t.Fatalf("decode chunk %d: %v", i, err)
		}
		reassembled = append(reassembled, data...)
	}

	if !bytes.HasPrefix(reassembled, frameMagic[:]) {
		t.Fatalf("expected reassembled stream to start with WHP1 magic")
	}
	metaLen := binary.BigEndian.Uint32(reassembled[4:8])
	metaJSON := reassembled[8 : 8+metaLen]
	gotBody := reassembled[8+metaLen:]

	var gotMeta RequestMeta
	if err := json.Unmarshal(metaJSON, &gotMeta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	if gotMeta.Method != "POST" || gotMeta.Path != "/hook/abc" {
		t.Fatalf("unexpected meta: %+v", gotMeta)
	}
	if !bytes.Equal(gotBody, body) {
		t.Fatalf("reassembled body did not round-trip")
	}
}

func TestStreamEmitsOneChunkForEmptyBody(t *testing.T) {
	q := openTestQueue(t)
	c := New(q, Config{MaxPayloadBytes: 1 << 16, ChunkDataBytes: 2400, ReadTimeout: time.Second})

	n, err := c.Stream(context.Background(), testUUID, reqID('2'), RequestMeta{Method: "GET"}, bytes.NewReader(nil), func() int64 { return 1000 })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 chunk for an empty body, got %d", n)
	}
}

func TestStreamRollsBackOnOversizedBody(t *testing.T) {
	q := openTestQueue(t)
	c := New(q, Config{MaxPayloadBytes: 100, ChunkDataBytes: 2400, ReadTimeout: time.Second})

	body := bytes.Repeat([]byte("y"), 1000)
	_, err := c.Stream(context.Background(), testUUID, reqID('3'), RequestMeta{Method: "POST"}, bytes.NewReader(body), func() int64 { return 1000 })
	if err == nil {
		t.Fatalf("expected PayloadTooLarge")
	}

	depth, derr := q.Depth(context.Background())
	if derr != nil {
		t.Fatalf("depth: %v", derr)
	}
	if depth != 0 {
		t.Fatalf("expected rollback to leave queue empty, got depth %d", depth)
	}
}

func TestStreamRollsBackOnQueueFull(t *testing.T) {
	q := openTestQueue(t)
	// Fill the queue to within a few hundred bytes of its budget so the very
	// first chunk overflows it.
	if _, err := q.Enqueue(context.Background(), testUUID, reqID('5'), bytes.Repeat([]byte("z"), (1<<20)-200), 1000); err != nil {
		t.Fatalf("filler enqueue: %v", err)
	}

	c := New(q, Config{MaxPayloadBytes: 1 << 16, ChunkDataBytes: 2400, ReadTimeout: time.Second})
	body := bytes.Repeat([]byte("w"), 5000)
	_, err := c.Stream(context.Background(), testUUID, reqID('4'), RequestMeta{Method: "POST"}, bytes.NewReader(body), func() int64 { return 1000 })
	if err == nil {
		t.Fatalf("expected QueueFull")
	}
	if !strings.Contains(err.Error(), "full") {
		t.Fatalf("expected a queue full error, got %v", err)
	}
}
