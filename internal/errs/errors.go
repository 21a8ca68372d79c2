// Package errs contains the error taxonomy used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels; typed errors below match them through Is so callers can
// branch with errors.Is without knowing the concrete type.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication or a gated operation
	// invoked without a session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRemote indicates a transport or response failure of the remote store.
	ErrRemote = errors.New("remote failure")
)

// AuthError reports an identity-provider rejection with its reason, or
// "no user found" when a gated mutation runs without a session.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "auth: " + e.Reason }

// Is matches ErrUnauthorized.
func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// NoUser is the AuthError returned by gated mutations without a session.
func NoUser() *AuthError { return &AuthError{Reason: "no user found"} }

// RemoteError reports a transport or HTTP failure. Status is zero when the
// request never produced a response.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote: %s", e.Body)
	}
	return fmt.Sprintf("remote: status %d: %s", e.Status, e.Body)
}

// Is matches ErrRemote.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// NotFoundError reports a mutation target missing from the current snapshot.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("entity %q not found", e.ID) }

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
