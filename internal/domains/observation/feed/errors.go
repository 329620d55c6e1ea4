package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrFatalAuth aborts a sync run. The task queue retries it a bounded number of times.
	ErrFatalAuth = errors.New("feed authentication failed")

	// ErrTransientFetch ends the current pagination loop. Nothing fetched so far is committed.
	ErrTransientFetch = errors.New("feed fetch failed")
)

// AuthError is returned by Authenticate and by any request the upstream
// rejects with 401/403.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", ErrFatalAuth, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", ErrFatalAuth, e.Err)
}

func (e *AuthError) Unwrap() []error { return []error{ErrFatalAuth, e.Err} }

// FetchError describes a failed page or cluster request. An unparsable body
// is a FetchError, never an empty page.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d", ErrTransientFetch, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransientFetch, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrTransientFetch, e.Err} }
