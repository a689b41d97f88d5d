package materializer

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies a materialization failure.
type Code string

const (
	CodeInternal       Code = "internal"
	CodeInvalidRequest Code = "invalid_request"
	CodeResolution     Code = "resolution"
	CodeStreamNotFound Code = "stream_not_found"
	CodeTransfer       Code = "transfer"
	CodeAssembly       Code = "assembly"
	CodeStore          Code = "store"
	CodeCanceled       Code = "canceled"
)

// Error is returned by Materialize for every failure.
type Error struct {
	Code Code
	Key  string // empty when the key could not be derived
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Code, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, CodeCanceled for bare context errors,
// and CodeInternal for anything else.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeInternal
}

// ErrNoStream is wrapped by CodeStreamNotFound errors.
var ErrNoStream = errors.New("no matching stream")

// fail builds an *Error, reporting cancellation instead of code when ctx is done.
func fail(ctx context.Context, code Code, key string, err error) *Error {
	if ctx.Err() != nil && code != CodeStreamNotFound {
		code = CodeCanceled
		if !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
	}
	return &Error{Code: code, Key: key, Err: err}
}
