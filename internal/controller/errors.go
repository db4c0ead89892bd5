package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrorKind is the category of a failed controller request.
type ErrorKind int

const (
	// KindNetwork covers connection failures and aborted requests.
	KindNetwork ErrorKind = iota
	// KindTimeout means an attempt exceeded its time budget.
	KindTimeout
	// KindHTTP means the controller answered with a 4xx/5xx status.
	KindHTTP
	// KindDecode means the response envelope could not be interpreted.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http error"
	case KindDecode:
		return "protocol decode error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against *Error.
var (
	ErrTimeout = errors.New("controller request timed out")
	ErrNetwork = errors.New("controller unreachable")
	ErrHTTP    = errors.New("controller returned an error status")
	ErrDecode  = errors.New("malformed controller response")
)

// Error is the final classification of a controller request.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Status   int // HTTP status, KindHTTP only
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Endpoint, e.Kind)
	if e.Kind == KindHTTP {
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrHTTP:
		return e.Kind == KindHTTP
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// Retryable reports whether another attempt could succeed. Client errors
// (4xx), decode failures and caller cancellation are final.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout:
		return true
	case KindNetwork:
		return !errors.Is(e.Err, context.Canceled)
	case KindHTTP:
		return e.Status >= 500
	default:
		return false
	}
}

// classify turns a transport-level failure into an *Error.
func classify(endpoint string, err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &Error{Kind: KindTimeout, Endpoint: endpoint, Err: err}
	}
	return &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
}

func decodeError(endpoint string, format string, args ...any) *Error {
	return &Error{Kind: KindDecode, Endpoint: endpoint, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of a controller error, or false for other errors.
func KindOf(err error) (ErrorKind, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind, true
	}
	return 0, false
}
