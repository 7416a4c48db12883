package push

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/imjasonh/webpush"
)

// Target is the subscriber-side half of a push: the browser's endpoint and
// the two keys negotiated at subscribe time.
type Target struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender signs and encrypts outbound messages with one VAPID identity.
type Sender struct {
	publicKey  string
	privateKey string
	subject    string
	ttl        int
	client     *http.Client
}

// New builds a Sender using the relay's VAPID key pair. subject is the
// mailto: or https: contact URI carried in the VAPID JWT's "sub" claim.
func New(vapidPublicKey, vapidPrivateKey, subject string) *Sender {
	return &Sender{
		publicKey:  vapidPublicKey,
		privateKey: vapidPrivateKey,
		subject:    subject,
		ttl:        60,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// PublicKey returns the VAPID public key this Sender signs with, the value
// GET /api/config hands browsers so they can call pushManager.subscribe.
func (s *Sender) PublicKey() string { return s.publicKey }

// Send encrypts payload for target and posts it to the push service,
// returning a classified Result rather than a bare error so the delivery
// worker never has to parse status codes itself.
func (s *Sender) Send(target Target, payload []byte) Result {
	sub := &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			P256dh: target.P256dh,
			Auth:   target.Auth,
		},
	}
	opts := &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		HTTPClient:      s.client,
	}

	resp, err := webpush.SendNotification(payload, sub, opts)
	if err != nil {
		return Result{Outcome: OutcomeTransient, Err: fmt.Errorf("push transport error: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Outcome: OutcomeSent}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Result{Outcome: OutcomeDeadEndpoint, Err: fmt.Errorf("push endpoint gone: %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{Outcome: OutcomeRateLimited, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")), Err: errors.New("push service rate limited")}
	case resp.StatusCode >= 500:
		return Result{Outcome: OutcomeTransient, Err: fmt.Errorf("push service error: %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return Result{Outcome: OutcomeRejected, Err: fmt.Errorf("push rejected: %d", resp.StatusCode)}
	default:
		return Result{Outcome: OutcomeSent}
	}
}

// parseRetryAfter reads a Retry-After header expressed in seconds, the only
// form push services in practice send; an unparsable or absent header
// leaves the caller's own backoff schedule in charge.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
