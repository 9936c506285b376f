package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeUnavailable means the store cannot be opened or written. Offline
	// capability is lost; callers must fall back to online-only behavior.
	CodeUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// CodeNotFound means a keyed lookup found nothing.
	CodeNotFound ErrorCode = "RECORD_NOT_FOUND"

	// CodeInvalid means the record or query was rejected before touching disk.
	CodeInvalid ErrorCode = "INVALID_RECORD"
)

var errClosed = errors.New("store is closed")

// Error is returned by every Store operation that fails for a reason a
// caller may want to branch on.
type Error struct {
	Code ErrorCode
	Op   string
	Kind Kind
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Kind != "" {
		msg += " " + string(e.Kind)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err means the store cannot be used.
// Uses errors.As to handle wrapped errors.
func IsUnavailable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == CodeUnavailable
	}
	return false
}

// IsNotFound reports whether err is a missing-record error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == CodeNotFound
	}
	return false
}

// IsInvalid reports whether err is a rejected record or query.
func IsInvalid(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == CodeInvalid
	}
	return false
}

func unavailable(op string, err error) *Error {
	return &Error{Code: CodeUnavailable, Op: op, Err: err}
}

func notFound(op string, kind Kind, key string) *Error {
	return &Error{Code: CodeNotFound, Op: op, Kind: kind, Key: key}
}

func invalid(op string, kind Kind, key string, err error) *Error {
	return &Error{Code: CodeInvalid, Op: op, Kind: kind, Key: key, Err: err}
}

// unavailableCodes are SQLite result codes that mean the database itself is
// unusable rather than the statement being wrong.
var unavailableCodes = []sqlite3.ErrNo{
	sqlite3.ErrFull,
	sqlite3.ErrCorrupt,
	sqlite3.ErrNotADB,
	sqlite3.ErrReadonly,
	sqlite3.ErrIoErr,
	sqlite3.ErrCantOpen,
	sqlite3.ErrPerm,
}

// classify maps a driver error onto the store taxonomy.
func classify(op string, kind Kind, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(op, kind, key)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return &Error{Code: CodeUnavailable, Op: op, Kind: kind, Key: key, Err: err}
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		for _, code := range unavailableCodes {
			if se.Code == code {
				return &Error{Code: CodeUnavailable, Op: op, Kind: kind, Key: key, Err: err}
			}
		}
	}
	return fmt.Errorf("%s %s: %w", op, kind, err)
}
