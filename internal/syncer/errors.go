package syncer

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned by Start on a running Manager.
var ErrAlreadyStarted = errors.New("sync manager already started")

// SendError describes one failed attempt to deliver a transaction.
//
// It is logged and returned in CycleResult.Errors; it never aborts a cycle.
type SendError struct {
	// TransactionID identifies the transaction that failed to send.
	TransactionID string

	// Attempt is the attempt number, counting this one.
	Attempt int

	// Err is the underlying transport or remote error.
	Err error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("SYNC_SEND_FAILED: transaction %s (attempt %d): %v", e.TransactionID, e.Attempt, e.Err)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}

// IsSendError returns true if err is, or wraps, a *SendError.
// Uses errors.As to handle wrapped errors.
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}

// RemoteError is a non-success response from the HTTP endpoint.
type RemoteError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Body)
}
