// Package serverrun exposes a shared Run entrypoint used by the CLI to open
// the Runtime and start the HTTP surface, delivery pool, and cleanup
// scheduler together, handling lifecycle and graceful shutdown.
//
// Example:
//
//	opts := serverrun.Options{Fsync: pebblestore.FsyncModeAlways, Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
