package mididev

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Error represents a structured device-session error with context and
// errno mapping
type Error struct {
	Op       string        // Operation that failed (e.g., "OPEN_INPUT", "SUBMIT")
	DeviceID int           // Device ID (-1 if not applicable)
	Code     ErrorCode     // High-level error category
	Errno    syscall.Errno // Driver errno (0 if not applicable)
	Msg      string        // Human-readable message
	Inner    error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.DeviceID >= 0 {
		parts = append(parts, fmt.Sprintf("device=%d", e.DeviceID))
	}

	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", int(e.Errno)))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("mididev: %s (%s)", msg, strings.Join(parts, ", "))
	}

	return fmt.Sprintf("mididev: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches two structured errors by category, so sentinel comparisons
// like errors.Is(err, ErrDeviceNotFound) work regardless of context fields
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	// ErrCodeDriver covers any failed registry call: open, close,
	// start, stop, reset, prepare, unprepare, submit, capability query
	ErrCodeDriver ErrorCode = "driver call failed"

	// ErrCodeResource means a signal or worker could not be created at
	// session construction or open; the session is unusable
	ErrCodeResource ErrorCode = "session resource unavailable"

	// ErrCodeOutOfMemory is a descriptor allocation failure, kept apart
	// from ErrCodeDriver so callers can apply different recovery
	ErrCodeOutOfMemory ErrorCode = "insufficient memory"

	ErrCodeDeviceNotFound    ErrorCode = "device not found"
	ErrCodeDeviceBusy        ErrorCode = "device busy"
	ErrCodeInvalidParameters ErrorCode = "invalid parameters"
	ErrCodeNotSupported      ErrorCode = "operation not supported"
	ErrCodeClosed            ErrorCode = "device not open"
)

// Sentinel errors for errors.Is comparisons
var (
	ErrDriver            = &Error{DeviceID: -1, Code: ErrCodeDriver}
	ErrResource          = &Error{DeviceID: -1, Code: ErrCodeResource}
	ErrOutOfMemory       = &Error{DeviceID: -1, Code: ErrCodeOutOfMemory}
	ErrDeviceNotFound    = &Error{DeviceID: -1, Code: ErrCodeDeviceNotFound}
	ErrDeviceBusy        = &Error{DeviceID: -1, Code: ErrCodeDeviceBusy}
	ErrInvalidParameters = &Error{DeviceID: -1, Code: ErrCodeInvalidParameters}
	ErrNotSupported      = &Error{DeviceID: -1, Code: ErrCodeNotSupported}
	ErrClosed            = &Error{DeviceID: -1, Code: ErrCodeClosed}
)

// Error constructors

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:       op,
		DeviceID: -1,
		Code:     code,
		Msg:      msg,
	}
}

// NewDeviceError creates a new device-specific error
func NewDeviceError(op string, deviceID int, code ErrorCode, msg string) *Error {
	return &Error{
		Op:       op,
		DeviceID: deviceID,
		Code:     code,
		Msg:      msg,
	}
}

// WrapError wraps an existing error with session context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation
	if se, ok := inner.(*Error); ok {
		return &Error{
			Op:       op,
			DeviceID: se.DeviceID,
			Code:     se.Code,
			Errno:    se.Errno,
			Msg:      se.Msg,
			Inner:    se.Inner,
		}
	}

	// Map driver errnos to error codes
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:       op,
			DeviceID: -1,
			Code:     mapErrnoToCode(errno),
			Errno:    errno,
			Msg:      errno.Error(),
			Inner:    inner,
		}
	}

	return &Error{
		Op:       op,
		DeviceID: -1,
		Code:     ErrCodeDriver,
		Msg:      inner.Error(),
		Inner:    inner,
	}
}

// WrapDeviceError is WrapError with device context attached
func WrapDeviceError(op string, deviceID int, inner error) *Error {
	e := WrapError(op, inner)
	if e != nil {
		e.DeviceID = deviceID
	}
	return e
}

// mapErrnoToCode maps driver errnos to session error codes
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT, syscall.ENODEV, syscall.ENXIO:
		return ErrCodeDeviceNotFound
	case syscall.EBUSY:
		return ErrCodeDeviceBusy
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeInvalidParameters
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return ErrCodeNotSupported
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrCodeOutOfMemory
	default:
		return ErrCodeDriver
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Errno == errno
	}
	return false
}
