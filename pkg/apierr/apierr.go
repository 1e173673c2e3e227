// Package apierr assigns every error the control plane can return one of a
// fixed set of kinds, and maps each kind to an HTTP status the way
// pkg/api turns internal errors into responses.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error taxonomy entries from the control plane's
// propagation policy: authorization is checked first, and every
// tenant-scoped query predicates on team_id so a cross-tenant read reports
// NotFound rather than leaking existence.
type Kind string

const (
	NotFound            Kind = "NOT_FOUND"
	Forbidden           Kind = "FORBIDDEN"
	Invalid             Kind = "INVALID"
	ShardsExhausted     Kind = "SHARDS_EXHAUSTED"
	ProvisioningFailed  Kind = "PROVISIONING_FAILED"
	AgentMisconfigured  Kind = "AGENT_MISCONFIGURED"
	Internal            Kind = "INTERNAL"
)

// Error wraps an underlying error with a Kind for HTTP-layer dispatch.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal for anything
// that wasn't constructed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code the HTTP layer should send.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Invalid:
		return http.StatusBadRequest
	case ShardsExhausted:
		return http.StatusConflict
	case ProvisioningFailed:
		return http.StatusOK // never blocks the caller; surfaced as a warning
	case AgentMisconfigured, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
