package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SalindaGunarathna/WebhookPush/internal/apperror"
	"github.com/SalindaGunarathna/WebhookPush/internal/metrics"
	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": s.sender.PublicKey()})
}

type pushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type pushSubscriptionReq struct {
	Endpoint       string               `json:"endpoint"`
	ExpirationTime *float64             `json:"expirationTime"`
	Keys           pushSubscriptionKeys `json:"keys"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubscribeBodyBytes)

	var req pushSubscriptionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, apperror.New(apperror.KindPayloadTooLarge, "subscription body exceeds 8 KiB"))
			return
		}
		writeError(w, apperror.New(apperror.KindInvalidSubscription, "malformed subscription json"))
		return
	}

	sub, err := s.store.Create(r.Context(), store.NewSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}, s.cfg.AllowedPushHosts, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("subscription created", log.Str("uuid", sub.UUID))

	writeJSON(w, http.StatusOK, map[string]string{
		"uuid":         sub.UUID,
		"url":          strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + sub.UUID,
		"delete_token": sub.DeleteToken,
	})
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, map[string]any{
		"uuid":       sub.UUID,
		"created_at": sub.CreatedAt,
	})
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	token := r.Header.Get("X-Delete-Token")
	if token == "" {
		writeError(w, apperror.New(apperror.KindUnauthorized, "X-Delete-Token header required"))
		return
	}
	if err := s.store.Delete(r.Context(), uuid, token); err != nil {
		writeError(w, err)
		return
	}
	s.limiter.Forget(uuid)
	s.logger.Info("subscription deleted", log.Str("uuid", uuid))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	depth, _ := s.queue.Depth(r.Context())
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	gauges := metrics.QueueGauges{Depth: depth, LiveBytes: s.queue.LiveBytes()}
	if s.metrics != nil {
		_ = s.metrics.WriteProm(w, gauges)
	}
}
