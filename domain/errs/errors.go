package errs

import (
	"errors"
	"fmt"
)

var (
	// Sweep level. The dispatcher aborts the sweep and the next tick retries.
	ErrStoreUnavailable = errors.New("post store unavailable")

	// Per post, terminal.
	ErrOwnerNotEligible = errors.New("owner not eligible for publishing")
	ErrPublishFailure   = errors.New("publish failed")

	// Per call, swallowed by the metrics client.
	ErrMetricsFetchFailure = errors.New("metrics fetch failed")

	// Publish failure kinds reported by the platform client.
	ErrAuth             = errors.New("auth error")
	ErrRateLimited      = errors.New("rate limited")
	ErrValidation       = errors.New("validation error")
	ErrTransientNetwork = errors.New("transient network error")

	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrClaimLost         = errors.New("claim lost")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPlanLimit         = errors.New("plan limit reached")
	ErrForbidden         = errors.New("forbidden")
)

// PublishError is returned by the publish and metrics clients. It matches
// ErrPublishFailure and its Kind through errors.Is.
type PublishError struct {
	Op         string
	Kind       error
	StatusCode int
	Err        error
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PublishError) Unwrap() []error {
	out := []error{ErrPublishFailure}
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewPublishError builds a PublishError of the given kind.
func NewPublishError(op string, kind error, status int, err error) *PublishError {
	return &PublishError{Op: op, Kind: kind, StatusCode: status, Err: err}
}

// KindOf returns a stable label for err, used in logs, events and metrics.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTransientNetwork):
		return "transient_network"
	case errors.Is(err, ErrOwnerNotEligible):
		return "owner_not_eligible"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrClaimLost):
		return "claim_lost"
	default:
		return "unknown"
	}
}
