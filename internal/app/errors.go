package app

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run so callers can map it to a response.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindNotLinked          Kind = "not_linked"
	KindTokenRefreshFailed Kind = "token_refresh_failed"
	KindProvider           Kind = "provider"
	KindStore              Kind = "store"
	KindCanceled           Kind = "canceled"
	KindInternal           Kind = "internal"
)

// Error is a run failure tagged with its Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
