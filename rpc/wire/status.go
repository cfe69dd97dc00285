package wire

import "fmt"

// Status is the signed 32-bit code carried in the first four bytes of
// every response. Zero means success; the nonzero values form a closed
// enumeration mapped 1:1 to error kinds. Codes outside the enumeration
// are treated as StatusInternalError, never silently ignored.
type Status int32

const (
	StatusOK Status = iota
	StatusObjectDoesntExist
	StatusObjectExists
	StatusWrongVersion
	StatusTableDoesntExist
	StatusUnimplementedRequest
	StatusTimeout
	StatusNotConnected
	StatusInternalError
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusObjectDoesntExist:
		return "object doesn't exist"
	case StatusObjectExists:
		return "object exists"
	case StatusWrongVersion:
		return "rejected by version"
	case StatusTableDoesntExist:
		return "table doesn't exist"
	case StatusUnimplementedRequest:
		return "unimplemented request"
	case StatusTimeout:
		return "timeout"
	case StatusNotConnected:
		return "not connected"
	case StatusInternalError:
		return "internal error"
	default:
		return fmt.Sprintf("unknown status %d", int32(s))
	}
}

// IsPreconditionFailure reports whether the status is a normal
// conditional-operation outcome (carries the current version) rather
// than a hard failure.
func (s Status) IsPreconditionFailure() bool {
	switch s {
	case StatusObjectDoesntExist, StatusObjectExists, StatusWrongVersion:
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Error type
// --------------------------------------------------------------------------

// Error wraps a wire status together with a message. It is the error type
// raised by the client for every failed call; callers can switch on the
// Status field (or use errors.As) to distinguish the error kinds.
type Error struct {
	Status Status
	Msg    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Msg)
}

// NewError creates an Error with the given status and message.
func NewError(status Status, format string, args ...interface{}) *Error {
	return &Error{Status: status, Msg: fmt.Sprintf(format, args...)}
}

// ErrorForStatus maps a decoded status code to an error kind. It returns
// nil for StatusOK and an InternalError for codes outside the closed
// enumeration.
func ErrorForStatus(s Status) error {
	switch {
	case s == StatusOK:
		return nil
	case s > StatusOK && s <= StatusInternalError:
		return &Error{Status: s}
	default:
		return NewError(StatusInternalError, "unrecognized status code %d", int32(s))
	}
}

// StatusOf extracts the wire status of an error, StatusInternalError if
// the error does not carry one.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	if e, ok := err.(*Error); ok {
		return e.Status
	}
	return StatusInternalError
}
