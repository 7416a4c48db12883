package workqueue

import "encoding/binary"

// Keyspace for the disk queue. Unlike the multi-tenant namespace/queue/group
// keyspace this package grew up with, a webhook relay has exactly one
// queue, so every key is a flat prefix with no namespace or group segment.
const (
	prefixMeta     = "q/meta"
	prefixMsg      = "q/msg/"
	prefixReady    = "q/ready/"
	prefixDelay    = "q/delay/"
	prefixLease    = "q/lease/"
	prefixLeaseIdx = "q/leaseidx/"
	prefixReqIdx   = "q/reqidx/"
)

func metaKey() []byte {
	return []byte(prefixMeta)
}

func seqBytes(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

func msgKey(seq uint64) []byte {
	return append([]byte(prefixMsg), seqBytes(seq)...)
}

func readyKey(seq uint64) []byte {
	return append([]byte(prefixReady), seqBytes(seq)...)
}

// delayKey sorts by fire time first so a forward scan can stop at the first
// entry not yet due.
func delayKey(fireAtMs uint64, seq uint64) []byte {
	key := make([]byte, 0, len(prefixDelay)+16)
	key = append(key, prefixDelay...)
	var fb [8]byte
	binary.BigEndian.PutUint64(fb[:], fireAtMs)
	key = append(key, fb[:]...)
	key = append(key, seqBytes(seq)...)
	return key
}

func leaseKey(seq uint64) []byte {
	return append([]byte(prefixLease), seqBytes(seq)...)
}

// leaseIdxKey sorts by expiry first so a forward scan can stop at the first
// lease not yet expired.
func leaseIdxKey(expiresAtMs uint64, seq uint64) []byte {
	key := make([]byte, 0, len(prefixLeaseIdx)+16)
	key = append(key, prefixLeaseIdx...)
	var eb [8]byte
	binary.BigEndian.PutUint64(eb[:], expiresAtMs)
	key = append(key, eb[:]...)
	key = append(key, seqBytes(seq)...)
	return key
}

func reqIdxPrefix(requestID [16]byte) []byte {
	key := make([]byte, 0, len(prefixReqIdx)+16+1)
	key = append(key, prefixReqIdx...)
	key = append(key, requestID[:]...)
	key = append(key, '/')
	return key
}

func reqIdxKey(requestID [16]byte, seq uint64) []byte {
	return append(reqIdxPrefix(requestID), seqBytes(seq)...)
}

// seqFromKey extracts the trailing 8-byte big-endian sequence number shared
// by every indexed key in this package.
func seqFromKey(key []byte) (uint64, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(key)-8:]), true
}

// prefixRange returns the [lo, hi) bounds for an iterator that should visit
// every key sharing the given prefix.
func prefixRange(prefix string) ([]byte, []byte) {
	lo := []byte(prefix)
	hi := make([]byte, len(prefix))
	copy(hi, prefix)
	hi = append(hi, 0xFF)
	return lo, hi
}
