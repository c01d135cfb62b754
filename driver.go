// Package oracle implements the generic pdo client interfaces on top
// of the Oracle native driver. Connection and Statement in this
// package talk to the database exclusively through the Session and
// Cursor interfaces below; the production implementation in
// session.go rides github.com/sijms/go-ora/v2.
package oracle

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/godoes/pdo-oracle/pdo"
)

// ExecMode is the commit policy applied to a single execution.
type ExecMode int

const (
	// CommitOnSuccess durably commits the statement's effects as soon
	// as it executes successfully.
	CommitOnSuccess ExecMode = iota
	// NoAutoCommit lets effects accumulate until an explicit commit
	// or rollback on the owning session.
	NoAutoCommit
)

func (m ExecMode) String() string {
	if m == NoAutoCommit {
		return "NO_AUTO_COMMIT"
	}
	return "COMMIT_ON_SUCCESS"
}

// Error is a native Oracle error: numeric ORA code plus message text.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ORA-%05d: %s", e.Code, e.Message)
}

// Session is one live handle to an Oracle session. Exactly one
// Session backs each Connection; it performs all network I/O.
//
// Commit and Rollback apply to work executed under NoAutoCommit since
// the previous Commit/Rollback; with no such work pending they
// succeed trivially.
type Session interface {
	// Prepare parses the statement text without executing it.
	Prepare(query string) (Cursor, error)
	Commit() error
	Rollback() error
	// LastError returns the session's pending error state, nil when
	// the last call succeeded.
	LastError() *Error
	Close() error
}

// Cursor is one parsed native statement. Binds accumulate until the
// next Exec; fetches walk the result set of the last Exec forward
// only.
//
// Row fetches return (nil, nil) at end of data.
type Cursor interface {
	// Bind binds a scalar to the named marker. length is the declared
	// value length.
	Bind(name string, value interface{}, length int) error
	// BindArray binds a value sequence to the named marker for a bulk
	// execution. length doubles as the array size hint and the
	// per-element length bound.
	BindArray(name string, values []interface{}, length int) error

	Exec(mode ExecMode) error

	FetchAssoc() (map[string]interface{}, error)
	FetchNum() ([]interface{}, error)
	FetchObject() (*pdo.Record, error)
	FetchAllAssoc() ([]map[string]interface{}, error)
	FetchAllNum() ([][]interface{}, error)
	// FetchAllByColumn returns the remaining rows transposed: one
	// slice per result column.
	FetchAllByColumn() ([][]interface{}, error)

	// Names returns the result column names in select-list order.
	Names() ([]string, error)
	ColumnCount() (int, error)
	// Describe reports metadata for the column at pos. pos is
	// 1-based, following the native interface.
	Describe(pos int) (*pdo.ColumnMeta, error)

	// RowsAffected reports the affected/fetched row count of the last
	// execution.
	RowsAffected() int64
	LastError() *Error
	Close() error
}

var oraErrPattern = regexp.MustCompile(`ORA-(\d{1,5}):?\s*(.*)`)

// parseOraError extracts the ORA code and message from a driver
// error. Errors without an ORA prefix keep code 0 and the full text.
func parseOraError(err error) *Error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if m := oraErrPattern.FindStringSubmatch(msg); m != nil {
		code, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			return &Error{Code: code, Message: m[2]}
		}
	}
	return &Error{Code: 0, Message: msg}
}
