package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorPermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrorDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	ErrorNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrorServerRejected    ErrorCode = "SERVER_REJECTED"
)

// ErrBusy is returned when a dispatch is attempted while another exchange
// is still in flight.
var ErrBusy = errors.New("domain: an exchange is already in flight")

// ErrNotFound is returned by history stores for an unknown conversation.
var ErrNotFound = errors.New("domain: conversation not found")

// Error is a coded failure crossing a component boundary.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain.
func CodeOf(err error) (ErrorCode, bool) {
	var de *Error
	if !errors.As(err, &de) {
		return "", false
	}
	return de.Code, true
}
