package ordering

import "errors"

var (
	// ErrNotFound is returned when the task does not exist for the owner.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidPosition is returned when a target index is outside the
	// destination column.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrInvalidStatus is returned for a status outside the board columns.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrConflict marks a transient uniqueness or isolation failure. Retryable.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrUnavailable marks a transport or timeout failure of the store. Retryable.
	ErrUnavailable = errors.New("task store unavailable")
)

// IsRetryable reports whether a failed transaction may be attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}
