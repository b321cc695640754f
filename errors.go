package swapd

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"github.com/farcasterd/swapd/bus"
)

// ErrorKind identifies one of the error categories every service reports
// over the bus, per the daemon's error handling design: bus-level errors are
// logged and swallowed, token/integrity errors become a Failure response,
// chain-RPC errors are retried, and state-machine errors are fatal only for
// the swap that hit them.
type ErrorKind int

const (
	// ErrNotSupported means a message's family does not match the lane it
	// arrived on, or the family has no handler for that variant.
	ErrNotSupported ErrorKind = iota

	// ErrInvalidToken means a capability token did not match the one held
	// by the Wallet service.
	ErrInvalidToken

	// ErrTransport means the bus transport failed to deliver a message.
	ErrTransport

	// ErrTimeout means a synchronous request/response exchange (e.g. the
	// Farcaster<->Wallet key exchange) exceeded its deadline.
	ErrTimeout

	// ErrDataIntegrity means a checkpoint or wire message failed to
	// decode or round-trip.
	ErrDataIntegrity

	// ErrChainRPC means a chain RPC call to a Syncer's backing node
	// failed.
	ErrChainRPC

	// ErrProtocolViolation means a peer sent a swap protocol message that
	// is not valid for the swap's current Lifecycle state.
	ErrProtocolViolation

	// ErrInternal covers every other unrecoverable, service-local
	// failure.
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotSupported:
		return "NotSupported"
	case ErrInvalidToken:
		return "InvalidToken"
	case ErrTransport:
		return "TransportError"
	case ErrTimeout:
		return "Timeout"
	case ErrDataIntegrity:
		return "DataIntegrityError"
	case ErrChainRPC:
		return "ChainRpc"
	case ErrProtocolViolation:
		return "ProtocolViolation"
	default:
		return "Internal"
	}
}

// Error is the concrete error type returned by every swapd service. Internal
// errors carry a stack trace (via go-errors/errors) so an operator can tell
// where an unexpected failure originated without the trace ever reaching the
// bus or a log line touched by secret material.
type Error struct {
	Kind    ErrorKind
	Details string

	// Lane and Msg are only set for NotSupported errors, matching
	// spec section 7's NotSupported(lane, msg) shape.
	Lane bus.Lane
	Msg  string

	stack *goerrors.Error
}

// NewNotSupported builds the error returned when a message's family does not
// match the lane it arrived on.
func NewNotSupported(lane bus.Lane, msg string) *Error {
	return &Error{Kind: ErrNotSupported, Lane: lane, Msg: msg}
}

// NewInvalidToken builds the error returned on a capability token mismatch.
func NewInvalidToken() *Error {
	return &Error{Kind: ErrInvalidToken}
}

// NewTimeout builds the error returned when a synchronous exchange exceeds
// its deadline.
func NewTimeout(details string) *Error {
	return &Error{Kind: ErrTimeout, Details: details}
}

// NewDataIntegrity builds the error returned on malformed checkpoint or wire
// data.
func NewDataIntegrity(details string) *Error {
	return &Error{Kind: ErrDataIntegrity, Details: details}
}

// NewChainRPC builds the error returned when a chain RPC call fails.
func NewChainRPC(details string) *Error {
	return &Error{Kind: ErrChainRPC, Details: details}
}

// NewProtocolViolation builds the error returned when a peer message is
// invalid for the swap's current state.
func NewProtocolViolation(details string) *Error {
	return &Error{Kind: ErrProtocolViolation, Details: details}
}

// NewInternal wraps err as an Internal error, capturing a stack trace.
func NewInternal(err error) *Error {
	return &Error{
		Kind:    ErrInternal,
		Details: err.Error(),
		stack:   goerrors.Wrap(err, 1),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == ErrNotSupported {
		return fmt.Sprintf("%s(%v, %q)", e.Kind, e.Lane, e.Msg)
	}
	if e.Details == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

// Code renders Kind as the wire-level Failure.Code every service attaches
// to an Info-lane Failure response.
func (e *Error) Code() uint16 { return uint16(e.Kind) }

// Stack returns the captured stack trace for Internal errors, or the empty
// string otherwise. It is only ever used for log lines, never surfaced over
// the bus.
func (e *Error) Stack() string {
	if e.stack == nil {
		return ""
	}
	return string(e.stack.Stack())
}
