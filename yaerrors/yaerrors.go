// Package yaerrors provides the error type used across the framework's
// infrastructure layers. An Error carries an HTTP-style code and a traceback
// that grows as the error travels up the call stack, so a single log line at
// the top shows the whole path the failure took.
package yaerrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/YaCodeDev/GoVKTeamsBot/yalogger"
)

// Error is the framework error contract. It implements the standard error
// interface and adds a numeric code plus traceback wrapping.
type Error interface {
	error
	// Wrap prepends a message to the traceback. Call it every time the error
	// is returned to a higher level.
	Wrap(msg string) Error
	// WrapWithLog is Wrap plus an immediate Error-level log of the message.
	WrapWithLog(msg string, log yalogger.Logger) Error
	// Code returns the HTTP-style code attached at creation time.
	Code() int
	Unwrap() error
}

const (
	codeSeparator  = " | "
	traceSeparator = " -> "
)

type yaError struct {
	code      int
	cause     error
	traceback string
}

// FromError builds an Error from an existing cause with a code and a context
// message.
func FromError(code int, cause error, wrap string) Error {
	return &yaError{
		code:      code,
		cause:     cause,
		traceback: fmt.Sprintf("%s: %v", wrap, cause),
	}
}

// FromErrorWithLog is FromError plus an immediate Error-level log.
func FromErrorWithLog(code int, cause error, wrap string, log yalogger.Logger) Error {
	msg := fmt.Sprintf("%s: %v", wrap, cause)
	log.Error(msg)

	return &yaError{
		code:      code,
		cause:     cause,
		traceback: msg,
	}
}

// FromString builds an Error from a bare message with a code.
func FromString(code int, msg string) Error {
	return &yaError{
		code:      code,
		cause:     errors.New(msg), //nolint:err113
		traceback: msg,
	}
}

// FromStringWithLog is FromString plus an immediate Error-level log.
func FromStringWithLog(code int, msg string, log yalogger.Logger) Error {
	log.Error(msg)

	return &yaError{
		code:      code,
		cause:     errors.New(msg), //nolint:err113
		traceback: msg,
	}
}

func (e *yaError) Error() string {
	safetyCheck(&e)

	return fmt.Sprintf("%d%s%s", e.code, codeSeparator, e.traceback)
}

func (e *yaError) Unwrap() error {
	safetyCheck(&e)

	return e.cause
}

func (e *yaError) Wrap(msg string) Error {
	safetyCheck(&e)
	e.traceback = msg + traceSeparator + e.traceback

	return e
}

func (e *yaError) WrapWithLog(msg string, log yalogger.Logger) Error {
	log.Error(msg)

	return e.Wrap(msg)
}

func (e *yaError) Code() int {
	safetyCheck(&e)

	return e.code
}

// LastMessage returns the most recent traceback entry without the older tail.
func (e *yaError) LastMessage() string {
	safetyCheck(&e)

	if end := strings.Index(e.traceback, traceSeparator); end != -1 {
		return e.traceback[:end]
	}

	return e.traceback
}

// safetyCheck guards methods called on a nil *yaError, substituting the
// teapot error so the caller never dereferences nil.
func safetyCheck(err **yaError) {
	if *err == nil {
		*err = &yaError{
			code:      http.StatusTeapot,
			cause:     ErrTeapot,
			traceback: ErrTeapot.Error(),
		}
	}
}
