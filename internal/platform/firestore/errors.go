package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error classifies gRPC failures for the repository layer, which maps them to
// not-found, conflict or unavailable service errors.
type Error struct {
	op   string
	err  error
	code codes.Code
}

func (e *Error) Error() string {
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool { return e.code == codes.NotFound }

// IsConflict covers contention aborts as well as create-on-existing.
func (e *Error) IsConflict() bool {
	switch e.code {
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		return true
	}
	return false
}

func (e *Error) IsUnavailable() bool {
	switch e.code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		return true
	}
	return false
}

// WrapError annotates err with op. Context cancellation passes through unwrapped so
// handlers can tell a client disconnect from a backend failure. Plain errors returned from
// a transaction callback stay reachable through Unwrap.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return &Error{op: op, err: err, code: codes.Unknown}
	}
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return &Error{op: op, err: err, code: st.Code()}
}
