// Package apperr defines the failure kinds surfaced by the auth and portfolio
// services so transports can map them to responses without matching messages.
package apperr

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindUnknown             Kind = ""
	KindUnauthenticated     Kind = "unauthenticated"
	KindConfiguration       Kind = "configuration_error"
	KindAggregationFailure  Kind = "aggregation_failure"
	KindHistoryFetchFailure Kind = "history_fetch_failure"
)

// Error carries a Kind alongside the operation that produced it and the
// underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Unauthenticated(op, msg string, err error) *Error {
	return &Error{Kind: KindUnauthenticated, Op: op, Msg: msg, Err: err}
}

func Configuration(op, msg string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Msg: msg, Err: err}
}

func AggregationFailure(op, msg string, err error) *Error {
	return &Error{Kind: KindAggregationFailure, Op: op, Msg: msg, Err: err}
}

func HistoryFetchFailure(op, msg string, err error) *Error {
	return &Error{Kind: KindHistoryFetchFailure, Op: op, Msg: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsServerFault reports whether a failure of the given kind is caused by the
// server rather than the client.
func IsServerFault(kind Kind) bool {
	return kind != KindUnauthenticated
}
