package gateway

import "fmt"

// NetworkError wraps a transport-level failure. Callers surface it as a
// generic retry-later message; retries are always user-initiated.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError means the session token is missing or was rejected. Callers
// escalate it to session teardown and a login prompt.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// ValidationError carries the remote's rejection message verbatim, e.g. a
// slot conflict detected server-side after the local pre-check passed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError means the target record no longer exists on the remote.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointment %s not found", e.ID)
}
