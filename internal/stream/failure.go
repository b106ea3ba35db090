package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why a connection attempt or read failed. Every kind
// except FailureCancelled feeds the retry cycle; none terminates a session.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureConnectTimeout
	FailureReadTimeout
	FailureRefused
	FailureDecode
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureConnectTimeout:
		return "connect_timeout"
	case FailureReadTimeout:
		return "read_timeout"
	case FailureRefused:
		return "refused"
	case FailureDecode:
		return "decode"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// AttemptError wraps a transport error with its failure classification.
type AttemptError struct {
	Kind FailureKind
	Err  error
}

func (e *AttemptError) Error() string {
	if e.Err == nil {
		return "stream: attempt failed: " + e.Kind.String()
	}
	return fmt.Sprintf("stream: attempt failed (%s): %v", e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

func attemptErr(kind FailureKind, err error) *AttemptError {
	return &AttemptError{Kind: kind, Err: err}
}

// asAttemptError normalizes any error into an AttemptError so the capture
// loop always has a classification to act on.
func asAttemptError(err error) *AttemptError {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.Canceled) {
		return attemptErr(FailureCancelled, err)
	}
	return attemptErr(FailureRefused, err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyConnect maps errors from the dial/handshake phase.
func classifyConnect(ctx context.Context, err error) *AttemptError {
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		return attemptErr(FailureCancelled, err)
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return attemptErr(FailureConnectTimeout, err)
	default:
		return attemptErr(FailureRefused, err)
	}
}

// classifyRead maps errors from reads on an established connection.
func classifyRead(ctx context.Context, err error) *AttemptError {
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		return attemptErr(FailureCancelled, err)
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return attemptErr(FailureReadTimeout, err)
	default:
		return attemptErr(FailureRefused, err)
	}
}
