package protocol

import (
	"errors"

	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/persist"
	"github.com/rzbill/logcache/internal/registry"
)

var (
	ErrUnknownOp         = errors.New("unknown command")
	ErrMessageTooLong    = errors.New("message too long")
	ErrAuthRequired      = errors.New("authentication required")
	ErrMalformedArgument = errors.New("invalid argument provided")
)

// ReasonFor maps an operation error to the reason text of a FAILED reply.
// Errors outside the protocol taxonomy are reported as an i/o failure.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrUnknownOp):
		return "unknown command"
	case errors.Is(err, ErrMessageTooLong):
		return "message too long"
	case errors.Is(err, ErrAuthRequired):
		return "authentication required"
	case errors.Is(err, ErrMalformedArgument):
		return "invalid argument provided"
	case errors.Is(err, registry.ErrRegistryFull):
		return "registry full"
	case errors.Is(err, registry.ErrNotFound):
		return "service not found"
	case errors.Is(err, logstore.ErrAllocation):
		return "allocation failure"
	case errors.Is(err, logstore.ErrClosed):
		return "service unsubscribed"
	default:
		return persist.ErrIO.Error()
	}
}

// Result labels an outcome for metrics.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, ErrUnknownOp):
		return "unknown_op"
	case errors.Is(err, ErrMessageTooLong):
		return "too_long"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrMalformedArgument):
		return "malformed"
	case errors.Is(err, registry.ErrRegistryFull):
		return "registry_full"
	case errors.Is(err, registry.ErrNotFound):
		return "not_found"
	case errors.Is(err, logstore.ErrAllocation):
		return "alloc_failure"
	case errors.Is(err, logstore.ErrClosed):
		return "closed"
	default:
		return "io_failure"
	}
}
