package intra

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLogin is returned for empty or placeholder logins before
	// any request is made.
	ErrInvalidLogin = errors.New("invalid login")

	// ErrUnauthenticated is returned when no credential is stored. It is
	// distinct from a server-side auth failure (an expired token surfaces
	// as an *APIError); the remediation is a new login, not a retry.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrInvalidResponse is returned when a 2xx response body does not
	// decode as a profile.
	ErrInvalidResponse = errors.New("invalid profile response")
)

// NotFoundError reports that no user exists for a login. 404 is a normal
// outcome of a lookup, never conflated with transport failures.
type NotFoundError struct {
	Login string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such user %q", e.Login)
}

// APIError reports a non-2xx response or a transport failure.
// Status is 0 when the request never produced a response (timeout,
// connection refused); Message then carries the network reason.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("intra api: %s", e.Message)
	}
	return fmt.Sprintf("intra api: status %d: %s", e.Status, e.Message)
}
