package kernel

import "fmt"

// Status is the status code reported by kernel primitives.
// Any non-OK status means the operation did not complete.
type Status int32

// Status codes.
const (
	StatusOK             Status = 0
	StatusError          Status = -1 // unspecified kernel error
	StatusErrorTimeout   Status = -2
	StatusErrorResource  Status = -3 // resource not available
	StatusErrorParameter Status = -4
	StatusErrorNoMemory  Status = -5
	StatusErrorISR       Status = -6 // not allowed from interrupt context
)

// IsOK indicates the operation succeeded.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// Err converts the status into an error, nil for StatusOK.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return s
}

// Error implements error.
func (s Status) Error() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "kernel error"
	case StatusErrorTimeout:
		return "timeout"
	case StatusErrorResource:
		return "resource not available"
	case StatusErrorParameter:
		return "invalid parameter"
	case StatusErrorNoMemory:
		return "out of memory"
	case StatusErrorISR:
		return "not allowed in ISR context"
	}
	return fmt.Sprintf("kernel status %d", int32(s))
}

// IsTimeout checks whether err reports an elapsed timeout.
func IsTimeout(err error) bool {
	s, ok := err.(Status)
	return ok && s == StatusErrorTimeout
}

// IsResourceExhausted checks whether err reports unavailable resources
// or memory.
func IsResourceExhausted(err error) bool {
	s, ok := err.(Status)
	return ok && (s == StatusErrorResource || s == StatusErrorNoMemory)
}
