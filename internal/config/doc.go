// Package config provides loading and environment overlay for this
// relay's runtime configuration. It exposes a Default() baseline and
// helpers to layer a JSON file and environment variables on top of it
// before it is validated and handed to runtime.Open.
//
// Example:
//
//	cfg, err := config.Load("/etc/webhookpush.json")
//	if err != nil {
//	    cfg = config.Default()
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { ... }
//	rt, _ := runtime.Open(runtime.Options{Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
package config
