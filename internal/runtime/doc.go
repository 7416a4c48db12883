// Package runtime wires storage, config, and the domain objects built on
// top of it into a single-node instance. It exposes Open/Close, a basic
// health check, and accessors for the Subscription Store, disk queue,
// rate limiter, Web Push sender, and metrics registry that higher-level
// components (the HTTP surface, the delivery pool, the cleanup scheduler)
// are constructed from.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
package runtime
