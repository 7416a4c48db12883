package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/apperror"
	"github.com/SalindaGunarathna/WebhookPush/internal/chunker"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

// handleIngest serves both /hook/{uuid} and /{uuid} — the spec treats them
// as aliases for the same webhook ingest operation, streamed through the
// Chunker under admission from the rate limiter.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	sub, err := s.store.Get(r.Context(), uuid)
	if err != nil {
		writeError(w, err)
		return
	}
	if sub == nil {
		writeError(w, apperror.New(apperror.KindNotFound, "subscription not found"))
		return
	}

	if !s.limiter.Allow(uuid) {
		writeError(w, apperror.New(apperror.KindRateLimited, "too many requests"))
		return
	}

	meta := chunker.RequestMeta{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		Headers:   filterHeaders(r.Header),
		SourceIP:  clientIP(r),
		Timestamp: time.Now().UnixMilli(),
	}

	requestID, err := newRequestID()
	if err != nil {
		writeError(w, apperror.Wrap(err))
		return
	}
	if _, err := s.chunk.Stream(r.Context(), uuid, requestID, meta, r.Body, func() int64 { return time.Now().UnixMilli() }); err != nil {
		s.logger.Warn("ingest chunking failed", log.Str("uuid", uuid), log.Str("request_id", requestID), log.Err(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID})
}

// newRequestID mints a 16-byte random, hex-encoded request_id: 32 hex
// chars, matching internal/workqueue's header framing exactly.
func newRequestID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// filterHeaders drops headers that would leak transport-internal or
// re-identify the caller beyond what source_ip already carries.
func filterHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		switch strings.ToLower(k) {
		case "cookie", "authorization":
			continue
		}
		out[k] = v
	}
	return out
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
