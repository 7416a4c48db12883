package chunker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/apperror"
	"github.com/SalindaGunarathna/WebhookPush/internal/workqueue"
)

// Config bounds one Stream call.
type Config struct {
	MaxPayloadBytes int
	ChunkDataBytes  int
	ReadTimeout     time.Duration
}

// Chunker durably enqueues an inbound request body as a stream of
// ChunkEnvelopes, holding at most one 32 KiB read buffer plus one partial
// chunk of the body in memory, never the whole body.
type Chunker struct {
	queue *workqueue.Queue
	cfg   Config
}

// New wraps queue as the destination for a Chunker configured with cfg.
func New(queue *workqueue.Queue, cfg Config) *Chunker {
	return &Chunker{queue: queue, cfg: cfg}
}

// Stream reads body to completion (or until a limit trips), splitting it
// into ChunkEnvelopes under targetUUID/requestID and enqueuing each one
// synchronously. meta is attached to chunk 1 only. On QueueFull or
// PayloadTooLarge it rolls back every chunk already enqueued for
// requestID and returns the triggering error.
func (c *Chunker) Stream(ctx context.Context, targetUUID, requestID string, meta RequestMeta, body io.Reader, nowMs func() int64) (int, error) {
	chunkSize, err := resolveChunkSize(requestID, c.cfg.ChunkDataBytes, c.cfg.MaxPayloadBytes)
	if err != nil {
		return 0, err
	}

	header, err := buildFrameHeader(meta)
	if err != nil {
		return 0, apperror.New(apperror.KindInternal, "failed to encode request metadata")
	}

	pending := header
	bodyBytes := 0
	chunkIndex := 0
	readBuf := make([]byte, 32*1024)

	emit := func(data []byte, final bool) error {
		chunkIndex++
		env := ChunkEnvelope{RequestID: requestID, ChunkIndex: chunkIndex, IsLast: final, Data: base64.StdEncoding.EncodeToString(data)}
		if final {
			env.TotalChunks = chunkIndex
		}
		payload, err := json.Marshal(env)
		if err != nil {
			return apperror.New(apperror.KindInternal, "failed to encode chunk envelope")
		}
		if _, err := c.queue.Enqueue(ctx, targetUUID, requestID, payload, nowMs()); err != nil {
			if errors.Is(err, workqueue.ErrQueueFull) {
				return apperror.New(apperror.KindQueueFull, "queue is full")
			}
			return apperror.New(apperror.KindInternal, err.Error())
		}
		return nil
	}

	rollback := func(cause error) (int, error) {
		_, _ = c.queue.AbortRequest(ctx, requestID)
		return chunkIndex, cause
	}

	for {
		n, readErr := readChunk(ctx, body, readBuf, c.cfg.ReadTimeout)
		if n > 0 {
			bodyBytes += n
			if bodyBytes > c.cfg.MaxPayloadBytes {
				return rollback(apperror.New(apperror.KindPayloadTooLarge, "request body exceeds MAX_PAYLOAD_BYTES"))
			}
			pending = append(pending, readBuf[:n]...)
			for len(pending) >= chunkSize {
				if err := emit(pending[:chunkSize], false); err != nil {
					return rollback(err)
				}
				pending = pending[chunkSize:]
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				if err := emit(pending, true); err != nil {
					return rollback(err)
				}
				return chunkIndex, nil
			}
			var appErr *apperror.Error
			if errors.As(readErr, &appErr) {
				return rollback(appErr)
			}
			return rollback(apperror.New(apperror.KindInternal, readErr.Error()))
		}
	}
}

// readChunk reads once from r, failing with ReadTimeout if nothing arrives
// within idleTimeout. A zero idleTimeout disables the deadline.
func readChunk(ctx context.Context, r io.Reader, buf []byte, idleTimeout time.Duration) (int, error) {
	if idleTimeout <= 0 {
		return r.Read(buf)
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := r.Read(buf)
		done <- result{n, err}
	}()

	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, apperror.New(apperror.KindReadTimeout, "webhook body read timed out")
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
