// Package store is the Subscription Store: a durable uuid -> subscription
// mapping with an authenticated delete and a TTL purge, backed by one
// Pebble instance of its own (separate from the queue's).
//
// Keys are flat JSON values under sub/<uuid>; there is no secondary index
// and no namespace segment, unlike the multi-tenant keyspaces elsewhere in
// this codebase's lineage — a single relay has one flat table of
// subscribers, not one per tenant.
package store
