package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies resolution failures.
type ErrorKind string

const (
	// KindParse means a title or tracklist line lacks the artist-track separator
	KindParse ErrorKind = "parse_error"
	// KindNotFound means the video or its description is missing
	KindNotFound ErrorKind = "not_found"
	// KindUpstream means a collaborator answered with a non-success response
	KindUpstream ErrorKind = "upstream_error"
	// KindCredential means the token exchange failed
	KindCredential ErrorKind = "credential_error"
	// KindCanceled means the batch was canceled before the item finished
	KindCanceled ErrorKind = "canceled"
	// KindInternal means the item's resolution panicked
	KindInternal ErrorKind = "internal_error"
)

var (
	// ErrParse is wrapped by all separator/split failures.
	ErrParse = errors.New("missing artist-track separator")
	// ErrNotFound is wrapped when a video or description is missing.
	ErrNotFound = errors.New("not found")
	// ErrUpstream is wrapped by every non-success collaborator response.
	ErrUpstream = errors.New("upstream failure")
	// ErrCredential is wrapped when the catalog token exchange fails.
	ErrCredential = errors.New("credential exchange failed")
)

// UpstreamError is a failed call to one of the collaborators.
type UpstreamError struct {
	Service string
	Status  int
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s returned status %d: %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// Transient reports whether the failure is worth retrying (429, 5xx, or no status at all).
func (e *UpstreamError) Transient() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// NewUpstreamError wraps err as a failure of service with the given HTTP status.
func NewUpstreamError(service string, status int, err error) *UpstreamError {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	return &UpstreamError{Service: service, Status: status, Err: err}
}

// KindOf maps an error onto the ErrorKind taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrCredential):
		return KindCredential
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUpstream
	}
}
