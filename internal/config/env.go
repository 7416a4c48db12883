package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays this system's environment variables onto cfg, following
// the env var list in the wire contract and original_source/src/config.rs's
// env_or/env_or_parse shape.
func FromEnv(cfg *Config) {
	if v := os.Getenv("BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.PublicBaseURL = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("QUEUE_DB_PATH"); v != "" {
		cfg.QueueDBPath = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = parseList(v)
	}
	if v := os.Getenv("ALLOWED_PUSH_HOSTS"); v != "" {
		cfg.AllowedPushHosts = parseList(v)
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.VAPIDPublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.VAPIDPrivateKey = v
	}
	if v := os.Getenv("VAPID_SUBJECT"); v != "" {
		cfg.VAPIDSubject = v
	}
	if v := os.Getenv("MAX_PAYLOAD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPayloadBytes = n
		}
	}
	if v := os.Getenv("CHUNK_DATA_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkDataBytes = n
		}
	}
	if v := os.Getenv("CHUNK_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkDelayMs = n
		}
	}
	if v := os.Getenv("SUBSCRIPTION_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SubscriptionTTLDays = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("WEBHOOK_READ_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebhookReadTimeoutMs = n
		}
	}
	if v := os.Getenv("QUEUE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.QueueMaxBytes = n
		}
	}
	if v := os.Getenv("QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueWorkers = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("FSYNC_MODE"); v != "" {
		cfg.FsyncMode = v
	}
	if v := os.Getenv("FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("SHUTDOWN_GRACE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ShutdownGraceMs = n
		}
	}
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
