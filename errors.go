package lux

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAlreadySent is returned by Send, SendBytes and JSON once the
	// response has been finalized.
	ErrAlreadySent = errors.New("lux: response already sent")
	// ErrNextCalled is returned when a continuation is invoked twice.
	ErrNextCalled = errors.New("lux: next called more than once")
	// ErrInvalidPath reports a path that cannot be normalized.
	ErrInvalidPath = errors.New("lux: invalid path")
	// ErrInvalidHeader reports a header name or value rejected by SetHeader.
	ErrInvalidHeader = errors.New("lux: invalid header field")
	// ErrRouterSealed is the panic value for registration after serving began.
	ErrRouterSealed = errors.New("lux: router is sealed, register routes before serving")
	// ErrHandlerPanic wraps a value recovered from a panicking handler.
	ErrHandlerPanic = errors.New("lux: handler panicked")
)

// HTTPError is an error that carries the status code the Router should
// answer with when it escapes the handler chain.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

// NewHTTPError returns an HTTPError. An empty message defaults to the
// standard status text.
func NewHTTPError(code int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{Code: code, Message: message}
}

// Wrap attaches a cause to the error and returns it.
func (e *HTTPError) Wrap(err error) *HTTPError {
	e.Err = err
	return e
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// StatusOf returns the status code a Router produces for err: the code of
// the first HTTPError in the chain, 500 otherwise, and 200 for nil.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var he *HTTPError
	if errors.As(err, &he) && he.Code > 0 {
		return he.Code
	}
	return http.StatusInternalServerError
}
