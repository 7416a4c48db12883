package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/apperror"
	"github.com/SalindaGunarathna/WebhookPush/internal/chunker"
	"github.com/SalindaGunarathna/WebhookPush/internal/metrics"
	"github.com/SalindaGunarathna/WebhookPush/internal/push"
	"github.com/SalindaGunarathna/WebhookPush/internal/ratelimit"
	"github.com/SalindaGunarathna/WebhookPush/internal/store"
	"github.com/SalindaGunarathna/WebhookPush/internal/workqueue"
	"github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

const maxSubscribeBodyBytes = 8 * 1024

// Config bounds a Server.
type Config struct {
	PublicBaseURL    string
	CORSOrigins      []string
	AllowedPushHosts []string
}

// Server is the HTTP Surface: subscribe/unsubscribe/config/health/metrics
// plus the webhook ingest routes.
type Server struct {
	store   *store.Store
	queue   *workqueue.Queue
	chunk   *chunker.Chunker
	limiter *ratelimit.Limiter
	sender  *push.Sender
	metrics *metrics.Registry
	cfg     Config
	logger  log.Logger

	mux *http.ServeMux
	srv *http.Server
	lis net.Listener
}

// New wires a Server. reg may be nil, in which case GET /metrics responds
// with an empty body.
func New(subs *store.Store, queue *workqueue.Queue, chunk *chunker.Chunker, limiter *ratelimit.Limiter, sender *push.Sender, reg *metrics.Registry, cfg Config, logger log.Logger) *Server {
	s := &Server{
		store:   subs,
		queue:   queue,
		chunk:   chunk,
		limiter: limiter,
		sender:  sender,
		metrics: reg,
		cfg:     cfg,
		logger:  logger.WithComponent("httpapi"),
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.srv = &http.Server{Handler: s.cors(s.mux)}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/config", s.handleConfig)
	s.mux.HandleFunc("POST /api/subscribe", s.handleSubscribe)
	s.mux.HandleFunc("GET /api/subscribe/{uuid}", s.handleGetSubscription)
	s.mux.HandleFunc("DELETE /api/subscribe/{uuid}", s.handleDeleteSubscription)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("/hook/{uuid}", s.handleIngest)
	s.mux.HandleFunc("/{uuid}", s.handleIngest)
}

// ListenAndServe binds addr and serves until ctx is cancelled, then shuts
// down gracefully, exactly as internal/cmd/server/run.go's signal-driven
// shutdown expects of every long-running component.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(cctx)
	case err := <-errCh:
		return err
	}
}

// Close releases the listener without waiting for in-flight requests;
// serverrun.Run calls it after ListenAndServe has returned.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Handler exposes the wrapped mux for tests using httptest.Server directly.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.corsOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Delete-Token")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsOrigin(origin string) string {
	if len(s.cfg.CORSOrigins) == 0 {
		return "*"
	}
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return o
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.Wrap(err)
	writeJSON(w, appErr.Status, map[string]string{"error": appErr.Message})
}
