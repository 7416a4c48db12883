package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config is the top-level configuration loaded from file/env, following
// original_source/src/config.rs's field set.
type Config struct {
	BindAddr      string `json:"bindAddr"`
	PublicBaseURL string `json:"publicBaseUrl"`

	DBPath      string `json:"dbPath"`
	QueueDBPath string `json:"queueDbPath"`

	CORSOrigins      []string `json:"corsOrigins"`
	AllowedPushHosts []string `json:"allowedPushHosts"`

	VAPIDPublicKey  string `json:"vapidPublicKey"`
	VAPIDPrivateKey string `json:"vapidPrivateKey"`
	VAPIDSubject    string `json:"vapidSubject"`

	MaxPayloadBytes      int   `json:"maxPayloadBytes"`
	ChunkDataBytes       int   `json:"chunkDataBytes"`
	ChunkDelayMs         int   `json:"chunkDelayMs"`
	SubscriptionTTLDays  int   `json:"subscriptionTtlDays"`
	RateLimitPerMinute   int   `json:"rateLimitPerMinute"`
	WebhookReadTimeoutMs int   `json:"webhookReadTimeoutMs"`
	QueueMaxBytes        int64 `json:"queueMaxBytes"`
	QueueWorkers         int   `json:"queueWorkers"`

	LogLevel        string `json:"logLevel"`
	LogFormat       string `json:"logFormat"`
	FsyncMode       string `json:"fsyncMode"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs"`
	ShutdownGraceMs int    `json:"shutdownGraceMs"`
}

// Default returns built-in defaults, matching original_source/src/config.rs's
// env_or fallbacks.
func Default() Config {
	return Config{
		BindAddr:      "0.0.0.0:3000",
		PublicBaseURL: "http://localhost:3000",

		DBPath:      "webhookpush-subscriptions.db",
		QueueDBPath: "webhookpush-queue.db",

		CORSOrigins: []string{"http://localhost:3000"},
		AllowedPushHosts: []string{
			"fcm.googleapis.com",
			"updates.push.services.mozilla.com",
			"wns.windows.com",
			"notify.windows.com",
			"web.push.apple.com",
		},

		VAPIDSubject: "mailto:admin@example.com",

		MaxPayloadBytes:      100 * 1024,
		ChunkDataBytes:       2400,
		ChunkDelayMs:         50,
		SubscriptionTTLDays:  30,
		RateLimitPerMinute:   60,
		WebhookReadTimeoutMs: 3000,
		QueueMaxBytes:        1 << 30,
		QueueWorkers:         8,

		LogLevel:        "info",
		LogFormat:       "text",
		FsyncMode:       "always",
		FsyncIntervalMs: 5,
		ShutdownGraceMs: 5000,
	}
}

// Load reads configuration from a JSON file layered on top of Default. If
// path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".json", "":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, errors.New("config: only JSON config files are supported")
	}
	return cfg, nil
}

// Validate applies the guardrail checks original_source/src/config.rs runs
// after parsing: a zero chunk/payload size or a missing VAPID key pair is
// rejected rather than silently producing a broken relay.
func (c Config) Validate() error {
	if c.ChunkDataBytes <= 0 {
		return errors.New("config: CHUNK_DATA_BYTES must be > 0")
	}
	if c.MaxPayloadBytes <= 0 {
		return errors.New("config: MAX_PAYLOAD_BYTES must be > 0")
	}
	if c.VAPIDPublicKey == "" {
		return errors.New("config: VAPID_PUBLIC_KEY is required")
	}
	if c.VAPIDPrivateKey == "" {
		return errors.New("config: VAPID_PRIVATE_KEY is required")
	}
	return nil
}
