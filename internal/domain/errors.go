package domain

import "errors"

var (
	// ErrPermissionDenied is returned when the alarm facility refuses precise scheduling.
	ErrPermissionDenied = errors.New("precise alarm permission denied")
	// ErrAuthorizationRequired is returned when a calendar source needs interactive consent.
	ErrAuthorizationRequired = errors.New("calendar authorization required")
	// ErrNotFound is returned when a reminder or wake-up no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrTimeout is returned when a remote fetch exceeds its deadline.
	ErrTimeout = errors.New("remote fetch timed out")
	// ErrNetworkUnavailable is returned when a remote fetch fails in transport.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrInvalidReminder is returned for reminders or settings that fail validation.
	ErrInvalidReminder = errors.New("invalid reminder")
)

// AuthError signals that a calendar source requires the user to go through a
// consent flow before the sync can be retried. RecoveryURL is where the user
// should be sent; it may be empty when the source gives no hint.
type AuthError struct {
	Source      string
	RecoveryURL string
	Err         error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "calendar source " + e.Source + ": authorization required: " + e.Err.Error()
	}
	return "calendar source " + e.Source + ": authorization required"
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthorizationRequired}
	}
	return []error{ErrAuthorizationRequired, e.Err}
}
