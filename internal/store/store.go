package store

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/SalindaGunarathna/WebhookPush/internal/apperror"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
)

const keyPrefix = "sub/"

// Subscription is a durable record of one browser push target.
type Subscription struct {
	UUID        string    `json:"uuid"`
	Endpoint    string    `json:"endpoint"`
	P256dh      string    `json:"p256dh"`
	Auth        string    `json:"auth"`
	DeleteToken string    `json:"delete_token"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSubscription is the caller-supplied shape before uuid/token/timestamp
// assignment (the PushSubscription JSON body of POST /api/subscribe).
type NewSubscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Store is the Subscription Store of the system: a uuid -> Subscription
// mapping with authenticated delete and TTL purge.
type Store struct {
	db *pebblestore.DB
}

// Open wraps an already-opened Pebble instance as a Subscription Store.
func Open(db *pebblestore.DB) *Store {
	return &Store{db: db}
}

func subKey(uuid string) []byte {
	return []byte(keyPrefix + uuid)
}

// Create validates sub, allocates a unique uuid and a fresh delete token,
// and persists the record. Returns InvalidSubscription if the endpoint or
// keys are malformed or the endpoint host isn't allowlisted.
func (s *Store) Create(ctx context.Context, sub NewSubscription, allowedHosts []string, nowFn func() time.Time) (*Subscription, error) {
	if err := validateSubscription(sub, allowedHosts); err != nil {
		return nil, err
	}

	uuid, err := s.allocateUUID()
	if err != nil {
		return nil, err
	}
	token, err := randomHex(16)
	if err != nil {
		return nil, apperror.New(apperror.KindInternal, "failed to generate delete token")
	}

	now := time.Now
	if nowFn != nil {
		now = nowFn
	}

	record := &Subscription{
		UUID:        uuid,
		Endpoint:    sub.Endpoint,
		P256dh:      sub.P256dh,
		Auth:        sub.Auth,
		DeleteToken: token,
		CreatedAt:   now().UTC(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return nil, apperror.New(apperror.KindInternal, "failed to encode subscription")
	}
	if err := s.db.Set(subKey(uuid), value); err != nil {
		return nil, apperror.New(apperror.KindInternal, "failed to persist subscription")
	}
	return record, nil
}

// allocateUUID generates a 12-hex-char uuid (48 bits of CSPRNG entropy),
// retrying on the negligible chance of collision.
func (s *Store) allocateUUID() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		candidate, err := randomHex(6)
		if err != nil {
			return "", apperror.New(apperror.KindInternal, "failed to generate uuid")
		}
		if _, err := s.db.Get(subKey(candidate)); err != nil {
			return candidate, nil
		}
	}
	return "", apperror.New(apperror.KindInternal, "failed to allocate a unique uuid")
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Get returns the subscription for uuid, or nil if none exists.
func (s *Store) Get(ctx context.Context, uuid string) (*Subscription, error) {
	val, err := s.db.Get(subKey(uuid))
	if err != nil {
		return nil, nil
	}
	var sub Subscription
	if err := json.Unmarshal(val, &sub); err != nil {
		return nil, apperror.New(apperror.KindInternal, "corrupt subscription record")
	}
	return &sub, nil
}

// Delete removes uuid's subscription after a constant-time comparison of
// token against its delete_token. Returns NotFound or Forbidden errors
// rather than booleans so the HTTP layer can map them directly.
func (s *Store) Delete(ctx context.Context, uuid, token string) error {
	sub, err := s.Get(ctx, uuid)
	if err != nil {
		return err
	}
	if sub == nil {
		return apperror.New(apperror.KindNotFound, "subscription not found")
	}
	if subtle.ConstantTimeCompare([]byte(sub.DeleteToken), []byte(token)) != 1 {
		return apperror.New(apperror.KindForbidden, "delete token mismatch")
	}
	return s.DeleteUnchecked(ctx, uuid)
}

// DeleteUnchecked removes uuid's subscription without an auth check, used
// by TTL purge and by delivery workers after a dead-endpoint response.
func (s *Store) DeleteUnchecked(ctx context.Context, uuid string) error {
	return s.db.Delete(subKey(uuid))
}

// PurgeExpired deletes every subscription whose created_at is older than
// ttl, relative to now. Acceptable at this system's subscriber counts as a
// full scan; there is no sharding to make it incremental.
func (s *Store) PurgeExpired(ctx context.Context, ttl time.Duration, now time.Time) (int, error) {
	lo := []byte(keyPrefix)
	hi := append([]byte{}, lo...)
	hi = append(hi, 0xFF)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	cutoff := now.Add(-ttl)
	var expired []string
	for ok := iter.First(); ok; ok = iter.Next() {
		var sub Subscription
		if err := json.Unmarshal(iter.Value(), &sub); err != nil {
			continue
		}
		if sub.CreatedAt.Before(cutoff) {
			expired = append(expired, sub.UUID)
		}
	}
	for _, uuid := range expired {
		if err := s.DeleteUnchecked(ctx, uuid); err != nil {
			return len(expired), err
		}
	}
	return len(expired), nil
}

func validateSubscription(sub NewSubscription, allowedHosts []string) error {
	endpoint := strings.TrimSpace(sub.Endpoint)
	if endpoint == "" {
		return apperror.New(apperror.KindInvalidSubscription, "endpoint required")
	}
	if len(endpoint) > 2048 {
		return apperror.New(apperror.KindInvalidSubscription, "endpoint too long")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return apperror.New(apperror.KindInvalidSubscription, "invalid endpoint url")
	}
	if !strings.EqualFold(u.Scheme, "https") && !isLocalhost(u.Hostname()) {
		return apperror.New(apperror.KindInvalidSubscription, "endpoint must be https")
	}
	if !hostAllowed(u.Hostname(), allowedHosts) {
		return apperror.New(apperror.KindInvalidSubscription, "endpoint host not allowed")
	}

	p256dh, err := decodeB64URL(sub.P256dh)
	if err != nil || len(p256dh) != 65 {
		return apperror.New(apperror.KindInvalidSubscription, "p256dh must decode to 65 bytes")
	}
	auth, err := decodeB64URL(sub.Auth)
	if err != nil || len(auth) != 16 {
		return apperror.New(apperror.KindInvalidSubscription, "auth must decode to 16 bytes")
	}
	return nil
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func hostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, h := range allowed {
		if h == "*" || strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

func decodeB64URL(value string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return b, nil
	}
	if b, err := base64.URLEncoding.DecodeString(value); err == nil {
		return b, nil
	}
	return nil, fmt.Errorf("invalid base64url")
}
