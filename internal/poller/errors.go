// internal/poller/errors.go
package poller

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect: session could not be established. The whole cycle fails.
	ErrConnect = errors.New("poller: connect failed")

	// ErrRequest: the device answered with an exception. The head read fails.
	ErrRequest = errors.New("poller: device exception")

	// ErrTimeout: no reply within the connection timeout.
	ErrTimeout = errors.New("poller: request timed out")

	// ErrTransport: the session broke mid-transaction.
	ErrTransport = errors.New("poller: transport failure")

	// ErrProtocolMismatch: a reply did not match the pending read and was dropped.
	ErrProtocolMismatch = errors.New("poller: reply does not match pending read")
)

// exceptionCoder is satisfied by device exception errors from the wire adapter.
type exceptionCoder interface{ Code() uint16 }

type timeouter interface{ Timeout() bool }

// classify maps a transaction error onto the taxonomy without assuming concrete types.
func classify(err error) (error, Outcome) {
	var ec exceptionCoder
	if errors.As(err, &ec) {
		return fmt.Errorf("%w: %w", ErrRequest, err), OutcomeException
	}
	var to timeouter
	if errors.As(err, &to) && to.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err), OutcomeTimeout
	}
	return fmt.Errorf("%w: %w", ErrTransport, err), OutcomeTransport
}

// ErrorCode extracts a best-effort uint16 code from an error.
// Device exceptions return their exception code; any other error returns 1.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}
	var ec exceptionCoder
	if errors.As(err, &ec) {
		return ec.Code()
	}
	return 1
}
