package chanlab

import (
	"errors"
	"fmt"
)

// Status is the numeric result code a caller would see across an FFI
// boundary. The core API returns idiomatic Go errors; Code maps any such
// error back to this encoding for callers that need the legacy numeric
// contract.
type Status int32

// Numeric encodings fixed by the external contract. Full and Empty share
// the value 0; callers disambiguate by which operation returned it.
const (
	StatusFull               Status = 0
	StatusEmpty              Status = 0
	StatusSuccess            Status = 1
	StatusGenericError       Status = -1
	StatusClosed             Status = -2
	StatusDestroyOnOpenError Status = -3
)

// StatusError is an error carrying one of the fixed status codes. It is
// the concrete type behind every sentinel error this package exports, so
// errors.Is against ErrClosed, ErrFull, etc. works, and errors.As recovers
// the numeric Status for callers that need it.
type StatusError struct {
	code Status
	msg  string
}

func (e *StatusError) Error() string { return e.msg }

// Code returns the numeric status encoded by this error.
func (e *StatusError) Code() Status { return e.code }

// Is lets errors.Is(err, ErrClosed) etc. match on status code rather than
// identity, since distinct StatusError values legitimately carry the same
// code.
func (e *StatusError) Is(target error) bool {
	other, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return e.code == other.code
}

var (
	// ErrFull is returned by a non-blocking send against a full channel.
	ErrFull = &StatusError{code: StatusFull, msg: "chanlab: channel full"}
	// ErrEmpty is returned by a non-blocking receive against an empty channel.
	ErrEmpty = &StatusError{code: StatusEmpty, msg: "chanlab: channel empty"}
	// ErrClosed is returned by any operation on a closed channel.
	ErrClosed = &StatusError{code: StatusClosed, msg: "chanlab: channel closed"}
	// ErrGeneric covers invalid-handle and unexpected-state conditions.
	ErrGeneric = &StatusError{code: StatusGenericError, msg: "chanlab: generic error"}
	// ErrDestroyOnOpen is returned by Destroy on a channel that is still open.
	ErrDestroyOnOpen = &StatusError{code: StatusDestroyOnOpenError, msg: "chanlab: destroy called on open channel"}
)

// Code maps err (nil or a *StatusError) to the numeric status contract.
// A nil error maps to StatusSuccess.
func Code(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.code
	}
	return StatusGenericError
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusClosed:
		return "closed"
	case StatusGenericError:
		return "generic-error"
	case StatusDestroyOnOpenError:
		return "destroy-on-open-error"
	case StatusFull: // == StatusEmpty, 0
		return "full/empty"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}
