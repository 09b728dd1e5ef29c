// Package errclass defines the stable, machine-readable error classes
// returned by epubpack.
package errclass

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// IOKind narrows an E_IO error to the filesystem condition that caused it.
type IOKind string

const (
	KindNone             IOKind = ""
	KindNotFound         IOKind = "not_found"
	KindPermissionDenied IOKind = "permission_denied"
	KindAlreadyExists    IOKind = "already_exists"
	KindOther            IOKind = "other"
)

// Error is a stable error class with an optional message and, for E_IO,
// the filesystem kind.
type Error struct {
	Code    string
	Message string
	Kind    IOKind
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code only, so errors.Is(err, errclass.ErrIO) holds for every
// E_IO regardless of kind or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Message: fmt.Sprintf(format, args...)}
}

// WithKind returns a copy carrying the given IO kind.
func (e *Error) WithKind(kind IOKind) *Error {
	return &Error{Code: e.Code, Kind: kind, Message: e.Message, cause: e.cause}
}

// Wrap returns a copy that records cause for errors.Unwrap.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Message: e.Message, cause: cause}
}

// All stable error classes.
var (
	// ErrState is returned when the API is called out of sequence.
	ErrState = &Error{Code: "E_STATE"}
	// ErrIO is returned when a filesystem operation fails.
	ErrIO = &Error{Code: "E_IO"}
	// ErrStructure is returned when the staged tree or archive stream
	// violates a container invariant.
	ErrStructure = &Error{Code: "E_STRUCTURE"}
	// ErrPermission is returned when no writable destination can be resolved.
	ErrPermission = &Error{Code: "E_PERMISSION"}
	// ErrPathEscape is returned when a relative path leaves its root.
	ErrPathEscape = &Error{Code: "E_PATH_ESCAPE"}
	// ErrConfigInvalid is returned for unusable configuration values.
	ErrConfigInvalid = &Error{Code: "E_CONFIG_INVALID"}
)

// IO classifies a filesystem error as E_IO with the matching kind.
// Errors that already carry a class are returned as-is.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var classed *Error
	if errors.As(err, &classed) {
		return err
	}
	return ErrIO.WithKind(KindOf(err)).WithMessagef("%s %s: %v", op, path, err).Wrap(err)
}

// KindOf maps an os/fs error to an IOKind.
func KindOf(err error) IOKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		return KindPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	default:
		return KindOther
	}
}

// IsKind reports whether err is an E_IO error of the given kind.
func IsKind(err error, kind IOKind) bool {
	var classed *Error
	if !errors.As(err, &classed) {
		return false
	}
	return classed.Code == ErrIO.Code && classed.Kind == kind
}

// Code returns the class code of err, or "" when err is unclassified.
func Code(err error) string {
	var classed *Error
	if errors.As(err, &classed) {
		return classed.Code
	}
	return ""
}

// IsNotExist is a convenience for os.IsNotExist that also understands
// classified E_IO errors.
func IsNotExist(err error) bool {
	return IsKind(err, KindNotFound) || os.IsNotExist(err)
}
