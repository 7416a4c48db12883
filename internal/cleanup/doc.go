// Package cleanup runs the background sweep that purges expired push
// subscriptions.
//
// It is the same ticker-with-jitter shape the workqueue package uses to
// reclaim expired leases, retargeted at the subscription store's TTL sweep
// instead of lease reclaim.
package cleanup
