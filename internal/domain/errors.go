package domain

import "errors"

// Domain errors
var (
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrStoreUnavailable = errors.New("profile store unavailable")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)

// IsRejection reports whether an error rejected a single event without any
// mutation, as opposed to a store-level failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnknownEventKind) || errors.Is(err, ErrInvalidUserID)
}
