package chunker

import "github.com/SalindaGunarathna/WebhookPush/internal/apperror"

// maxEnvelopeBytes is the push service's ceiling on an encrypted payload;
// staying under it with room to spare keeps VAPID/AES-GCM overhead safe.
const maxEnvelopeBytes = 3300

// maxChunkDataBytes returns the largest number of raw (pre-base64) bytes
// that fit in one envelope alongside overhead bytes of JSON scaffolding,
// capped at configured.
func maxChunkDataBytes(configured, overhead int) (int, error) {
	if overhead >= maxEnvelopeBytes {
		return 0, apperror.New(apperror.KindPayloadTooLarge, "chunk overhead exceeds push envelope limit")
	}
	available := maxEnvelopeBytes - overhead
	maxRaw := (available / 4) * 3
	for maxRaw > 0 && 4*((maxRaw+2)/3) > available {
		maxRaw--
	}

	chunkSize := configured
	if maxRaw < chunkSize {
		chunkSize = maxRaw
	}
	if chunkSize <= 0 {
		return 0, apperror.New(apperror.KindPayloadTooLarge, "chunk size too small for push envelope limit")
	}
	return chunkSize, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// resolveChunkSize fixes the raw chunk size once, before any bytes are
// read. Because the stream's total length is unknown up front, it solves
// against the worst case chunk count implied by maxPayloadBytes instead of
// the true payload length the original's resolve_chunking uses.
func resolveChunkSize(requestID string, configuredDataBytes, maxPayloadBytes int) (int, error) {
	overhead, err := envelopeOverheadBytes(requestID, 1, 1, true)
	if err != nil {
		return 0, err
	}
	chunkSize, err := maxChunkDataBytes(configuredDataBytes, overhead)
	if err != nil {
		return 0, err
	}
	estTotal := ceilDiv(maxPayloadBytes, chunkSize)
	if estTotal < 1 {
		estTotal = 1
	}

	for {
		overhead, err = envelopeOverheadBytes(requestID, estTotal, estTotal, true)
		if err != nil {
			return 0, err
		}
		nextSize, err := maxChunkDataBytes(configuredDataBytes, overhead)
		if err != nil {
			return 0, err
		}
		nextTotal := ceilDiv(maxPayloadBytes, nextSize)
		if nextTotal < 1 {
			nextTotal = 1
		}
		if nextSize == chunkSize && nextTotal == estTotal {
			return chunkSize, nil
		}
		chunkSize, estTotal = nextSize, nextTotal
	}
}
