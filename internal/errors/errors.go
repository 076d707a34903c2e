// Package errors provides centralized error definitions and error handling
// utilities for filetrack. It defines the sentinel errors of the tracking
// registry, typed errors that carry call-site provenance, numeric error
// codes for polling-style callers, and classification helpers.
//
// # Usage
//
// Creating errors:
//
//	// Typed error with operation and call-site context
//	err := errors.NewTrackError("filetrack_fclose", errors.ErrUntrackedHandle, site)
//
//	// Double-close with both provenance records
//	err := errors.NewDoubleCloseError(firstSite, secondSite)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrAlreadyClosed) { ... }
//
//	var dce *errors.DoubleCloseError
//	if errors.As(err, &dce) { ... }
package errors

import (
	"errors"
	"fmt"

	"github.com/softcask/filetrack/internal/callsite"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Code is a coarse numeric classification of a failure, kept for
// polling-style callers that want an errno-like value next to the
// failing operation name. Every sentinel error maps to exactly one code.
type Code int

const (
	// CodeNone means no failure has been recorded.
	CodeNone Code = iota
	// CodeInvalidArgument covers nil handles, empty names or modes, and
	// non-positive length bounds.
	CodeInvalidArgument
	// CodeNotPermitted covers operations on handles the registry never saw.
	CodeNotPermitted
	// CodeProtocol covers structural inconsistencies between the handle
	// index and the filename index.
	CodeProtocol
	// CodePrimitive covers failures of the underlying file primitive itself.
	CodePrimitive
)

// String returns the string representation of the code.
func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotPermitted:
		return "not_permitted"
	case CodeProtocol:
		return "protocol"
	case CodePrimitive:
		return "primitive"
	default:
		return "unknown"
	}
}

// Errno returns the closest POSIX errno value for the code, for callers
// bridging into errno-keyed tooling. CodeNone maps to 0.
func (c Code) Errno() int {
	switch c {
	case CodeInvalidArgument:
		return 22 // EINVAL
	case CodeNotPermitted:
		return 1 // EPERM
	case CodeProtocol:
		return 71 // EPROTO
	case CodePrimitive:
		return 5 // EIO
	default:
		return 0
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Registry lifecycle sentinel errors
var (
	// ErrInvalidArgument indicates a nil handle, an empty filename or mode,
	// or a non-positive length bound.
	ErrInvalidArgument = New("invalid argument")
	// ErrUntrackedHandle indicates an operation on a handle the registry
	// has no entry for.
	ErrUntrackedHandle = New("handle is not tracked")
	// ErrAlreadyClosed indicates a close transition applied to an entry
	// that was already closed.
	ErrAlreadyClosed = New("handle already closed")
	// ErrStillOpen indicates a removal refused because the file's most
	// recent handle is still open.
	ErrStillOpen = New("file is still open")
	// ErrStoreInconsistent indicates the filename index referenced a handle
	// with no corresponding entry in the handle index.
	ErrStoreInconsistent = New("filename index references a missing entry")
	// ErrNameTruncated indicates a filename or mode copy was cut at its
	// length bound.
	ErrNameTruncated = New("name truncated at length bound")
	// ErrShutDown indicates an operation raced the shutdown sweep.
	ErrShutDown = New("registry has been shut down")
)

// CodeOf returns the numeric code for err, unwrapping as needed.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeNone
	case Is(err, ErrInvalidArgument), Is(err, ErrAlreadyClosed),
		Is(err, ErrStillOpen), Is(err, ErrNameTruncated):
		return CodeInvalidArgument
	case Is(err, ErrUntrackedHandle), Is(err, ErrShutDown):
		return CodeNotPermitted
	case Is(err, ErrStoreInconsistent):
		return CodeProtocol
	default:
		return CodePrimitive
	}
}

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// TrackError is an error raised by a registry or façade operation. It
// carries the failing operation's name and the caller's site so diagnostics
// can point at the code that triggered the failure.
type TrackError struct {
	Op   string        // operation name, e.g. "filetrack_fopen"
	Site callsite.Site // where the caller invoked the operation
	Err  error         // underlying cause, usually a sentinel
}

// NewTrackError creates a TrackError for the given operation and cause.
func NewTrackError(op string, err error, site callsite.Site) *TrackError {
	return &TrackError{Op: op, Err: err, Site: site}
}

// Error implements the error interface.
func (e *TrackError) Error() string {
	if e.Site.IsZero() {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (at %s)", e.Op, e.Err, e.Site)
}

// Unwrap returns the underlying cause.
func (e *TrackError) Unwrap() error { return e.Err }

// Code returns the numeric code for the underlying cause.
func (e *TrackError) Code() Code { return CodeOf(e.Err) }

// DoubleCloseError reports a close applied to an already-closed entry.
// It retains both provenance records: where the entry was first closed
// and where the re-close was attempted.
type DoubleCloseError struct {
	FirstClose callsite.Site // site of the original, successful close
	Reclose    callsite.Site // site of the rejected second close
}

// NewDoubleCloseError creates a DoubleCloseError from both close sites.
func NewDoubleCloseError(first, reclose callsite.Site) *DoubleCloseError {
	return &DoubleCloseError{FirstClose: first, Reclose: reclose}
}

// Error implements the error interface.
func (e *DoubleCloseError) Error() string {
	return fmt.Sprintf("handle already closed: first close at %s, reclose at %s",
		e.FirstClose, e.Reclose)
}

// Unwrap lets errors.Is match ErrAlreadyClosed.
func (e *DoubleCloseError) Unwrap() error { return ErrAlreadyClosed }

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsFailOpen reports whether err is a condition the registry reports but
// deliberately does not let block the caller's requested action, such as a
// dangling filename-index reference.
func IsFailOpen(err error) bool {
	return Is(err, ErrStoreInconsistent) || Is(err, ErrNameTruncated)
}

// IsAnomaly reports whether err indicates a protocol anomaly: the caller
// used the tracking layer in an order the registry did not expect, without
// corrupting registry state.
func IsAnomaly(err error) bool {
	return Is(err, ErrUntrackedHandle) || Is(err, ErrStoreInconsistent)
}
