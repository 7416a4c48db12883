// Package httpapi is the HTTP Surface: subscribe/unsubscribe, webhook
// ingest, and the ambient health/config/metrics endpoints.
//
// It is built the way the teacher's internal/server/http package is built
// — stdlib net/http.ServeMux with Go 1.22 method-and-pattern routing, a
// CORS wrapper, and graceful shutdown via http.Server.Shutdown driven by a
// caller-supplied context — generalized from the teacher's channel/stream
// endpoint set to this domain's subscribe/ingest set.
package httpapi
