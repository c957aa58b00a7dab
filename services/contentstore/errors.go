package contentstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("revision conflict")
	ErrAuth      = errors.New("store authentication failed")
	ErrTransient = errors.New("transient store failure")
	ErrRejected  = errors.New("store rejected request")
)

// Error describes a failed store operation
type Error struct {
	Op         string // exists, read, write, provision
	Path       string
	StatusCode int
	Kind       error
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Op, e.Path, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsNotFound reports whether err means the path does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a stale or unexpected revision
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable reports whether repeating the operation with a freshly
// fetched revision can succeed
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTransient)
}

// kindForStatus maps an HTTP status from a REST store to an error kind
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return ErrConflict
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return ErrTransient
	default:
		return ErrRejected
	}
}

// transportError wraps a failure that happened before a response arrived.
// Deadlines and broken connections are transient; a caller cancelling
// its own context is passed through unchanged.
func transportError(op, path string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Op: op, Path: path, Kind: ErrTransient, Err: err}
}
