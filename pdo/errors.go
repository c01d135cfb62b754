package pdo

import (
	"errors"
	"fmt"
)

var (
	// ErrClosedCursor statement used after CloseCursor
	ErrClosedCursor = errors.New("statement cursor is closed")
	// ErrNotExecuted fetch before a successful Execute
	ErrNotExecuted = errors.New("statement has not been executed")
	// ErrNoResultSet the last execution produced no result set
	ErrNoResultSet = errors.New("no result set available")
)

// ConnectionError reports a failed session establishment, carrying the
// native driver's code and message.
type ConnectionError struct {
	Code    int
	Message string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: ORA-%05d: %s", e.Code, e.Message)
}

// StatementError reports a parse/prepare failure.
type StatementError struct {
	Query   string
	Code    int
	Message string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("prepare failed: %s", e.Message)
}

// BindError reports a parameter binding failure, naming the offending
// marker and value.
type BindError struct {
	Marker string
	Value  interface{}
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("could not bind %v to parameter %s: %v", e.Value, e.Marker, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ExecutionError reports a native execute failure.
type ExecutionError struct {
	Code    int
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute failed: %s", e.Message)
}

// TransactionError reports an illegal transaction-state transition:
// begin while active, or commit/rollback without an active
// transaction.
type TransactionError struct {
	Reason string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error: %s", e.Reason)
}

// NotSupportedError reports that the caller requested a capability
// this backend deliberately does not implement. It is a typed,
// catchable result so callers can branch on it.
type NotSupportedError struct {
	Feature string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported", e.Feature)
}

// NotSupported builds a NotSupportedError for the named capability.
func NotSupported(format string, args ...interface{}) *NotSupportedError {
	return &NotSupportedError{Feature: fmt.Sprintf(format, args...)}
}

// IsNotSupported reports whether err is a NotSupportedError anywhere
// in its chain.
func IsNotSupported(err error) bool {
	var nse *NotSupportedError
	return errors.As(err, &nse)
}
