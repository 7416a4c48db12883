// Package apperror carries typed, HTTP-status-bearing errors from storage
// and domain code up to the HTTP surface, the way a panic-free translation
// of the original service's AppError{status, message} works.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies the failure independent of the HTTP status it maps to,
// so callers deeper in the stack (delivery workers, the cleanup scheduler)
// can branch on it without importing net/http.
type Kind string

const (
	KindInvalidSubscription Kind = "invalid_subscription"
	KindUnauthorized        Kind = "auth_missing"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindPayloadTooLarge     Kind = "payload_too_large"
	KindRateLimited         Kind = "rate_limited"
	KindReadTimeout         Kind = "read_timeout"
	KindQueueFull           Kind = "queue_full"
	KindBadGateway          Kind = "bad_gateway"
	KindTimeout             Kind = "timeout"
	KindInternal            Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindInvalidSubscription: http.StatusBadRequest,
	KindUnauthorized:        http.StatusUnauthorized,
	KindNotFound:            http.StatusNotFound,
	KindForbidden:           http.StatusForbidden,
	KindPayloadTooLarge:     http.StatusRequestEntityTooLarge,
	KindRateLimited:         http.StatusTooManyRequests,
	KindReadTimeout:         http.StatusRequestTimeout,
	KindQueueFull:           http.StatusServiceUnavailable,
	KindBadGateway:          http.StatusBadGateway,
	KindTimeout:             http.StatusRequestTimeout,
	KindInternal:            http.StatusInternalServerError,
}

// Error is a small struct error carrying an HTTP status alongside a
// human-readable message, instead of a sentinel-only or panic-based model.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// New constructs an Error for kind with the given message, defaulting its
// status from the kind's standard mapping.
func New(kind Kind, message string) *Error {
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

// Wrap folds any error into an internal Error, preserving an existing
// *Error unchanged.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(KindInternal, err.Error())
}

// HTTPStatus returns the status code an error should be reported with,
// defaulting to 500 for errors that were never classified.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
