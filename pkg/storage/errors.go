package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
)

// Error is a stream or file system error code.
type Error int

// Error codes.
const (
	ErrorOK Error = iota
	ErrorNotReady
	ErrorExists
	ErrorNotExists
	ErrorInvalidParameter
	ErrorDenied
	ErrorInvalidName
	ErrorInternal
	ErrorNotImplemented
	ErrorAlreadyOpen
)

var errorDescs = map[Error]string{
	ErrorOK:               "OK",
	ErrorNotReady:         "filesystem not ready",
	ErrorExists:           "file/dir already exist",
	ErrorNotExists:        "file/dir not exist",
	ErrorInvalidParameter: "invalid parameter",
	ErrorDenied:           "access denied",
	ErrorInvalidName:      "invalid name/path",
	ErrorInternal:         "internal error",
	ErrorNotImplemented:   "function not implemented",
	ErrorAlreadyOpen:      "file is already open",
}

// Error implements error.
func (e Error) Error() string {
	if desc, ok := errorDescs[e]; ok {
		return desc
	}
	return "unknown error"
}

// FromOSError converts an error from the os package into an Error.
// nil and io.EOF are returned unchanged.
func FromOSError(err error) error {
	var e Error
	switch {
	case err == nil, err == io.EOF:
		return err
	case errors.As(err, &e):
		return e
	case errors.Is(err, fs.ErrExist):
		return ErrorExists
	case errors.Is(err, fs.ErrNotExist):
		return ErrorNotExists
	case errors.Is(err, fs.ErrPermission):
		return ErrorDenied
	case errors.Is(err, fs.ErrClosed):
		return ErrorNotReady
	case errors.Is(err, fs.ErrInvalid), errors.Is(err, syscall.EINVAL):
		return ErrorInvalidParameter
	case errors.Is(err, syscall.ENAMETOOLONG), errors.Is(err, syscall.ENOTDIR), errors.Is(err, syscall.EISDIR):
		return ErrorInvalidName
	case errors.Is(err, syscall.ENOSYS), errors.Is(err, errors.ErrUnsupported):
		return ErrorNotImplemented
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrorNotReady
	}
	return ErrorInternal
}
