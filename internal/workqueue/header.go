package workqueue

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Header is the fixed-size record header framed by EncodeMessage ahead of
// every chunk envelope payload: 6-byte target uuid, 16-byte request id,
// 4-byte attempt counter, 8-byte enqueue timestamp.
type Header struct {
	TargetUUID   string
	RequestID    string
	Attempts     uint32
	EnqueuedAtMs int64
}

const headerLen = 6 + 16 + 4 + 8

func encodeHeader(h Header) ([]byte, error) {
	uuidRaw, err := hex.DecodeString(h.TargetUUID)
	if err != nil || len(uuidRaw) != 6 {
		return nil, fmt.Errorf("workqueue: target uuid must be 12 hex chars: %q", h.TargetUUID)
	}
	reqRaw, err := hex.DecodeString(h.RequestID)
	if err != nil || len(reqRaw) != 16 {
		return nil, fmt.Errorf("workqueue: request id must be 32 hex chars: %q", h.RequestID)
	}
	buf := make([]byte, headerLen)
	copy(buf[0:6], uuidRaw)
	copy(buf[6:22], reqRaw)
	binary.BigEndian.PutUint32(buf[22:26], h.Attempts)
	binary.BigEndian.PutUint64(buf[26:34], uint64(h.EnqueuedAtMs))
	return buf, nil
}

func decodeHeader(b []byte) (Header, bool) {
	if len(b) != headerLen {
		return Header{}, false
	}
	return Header{
		TargetUUID:   hex.EncodeToString(b[0:6]),
		RequestID:    hex.EncodeToString(b[6:22]),
		Attempts:     binary.BigEndian.Uint32(b[22:26]),
		EnqueuedAtMs: int64(binary.BigEndian.Uint64(b[26:34])),
	}, true
}

func requestIDBytes(requestID string) ([16]byte, error) {
	var out [16]byte
	raw, err := hex.DecodeString(requestID)
	if err != nil || len(raw) != 16 {
		return out, fmt.Errorf("workqueue: request id must be 32 hex chars: %q", requestID)
	}
	copy(out[:], raw)
	return out, nil
}
