// Package pdo defines the generic prepare/bind/execute/fetch client
// vocabulary shared between callers and database-specific backends:
// connection and statement capability interfaces, fetch-mode and
// parameter-type constants, and the dual-representation error codes.
//
// The constant values track the abstraction being mimicked, so code
// ported from other backends keeps its meaning.
package pdo

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// FetchMode selects the shape in which a fetched row is returned.
type FetchMode int

const (
	// FetchDefault means "no explicit style": the statement's
	// persistent fetch mode applies, if one was set.
	FetchDefault FetchMode = 0
	FetchLazy    FetchMode = 1
	// FetchAssoc returns a row as a column-name-keyed map.
	FetchAssoc FetchMode = 2
	// FetchNum returns a row as a 0-indexed value slice.
	FetchNum  FetchMode = 3
	FetchBoth FetchMode = 4
	// FetchObj returns a row as a generic *Record.
	FetchObj   FetchMode = 5
	FetchBound FetchMode = 6
	// FetchColumn flattens a result to the values of its first column.
	// Bulk fetch only; single-row fetch does not accept it.
	FetchColumn FetchMode = 7
	FetchClass  FetchMode = 8
	FetchInto   FetchMode = 9
)

func (m FetchMode) String() string {
	switch m {
	case FetchDefault:
		return "DEFAULT"
	case FetchLazy:
		return "LAZY"
	case FetchAssoc:
		return "ASSOC"
	case FetchNum:
		return "NUM"
	case FetchBoth:
		return "BOTH"
	case FetchObj:
		return "OBJ"
	case FetchBound:
		return "BOUND"
	case FetchColumn:
		return "COLUMN"
	case FetchClass:
		return "CLASS"
	case FetchInto:
		return "INTO"
	}
	return "UNKNOWN"
}

// ParamType declares the bind type of a parameter or output column.
type ParamType int

const (
	ParamNull ParamType = 0
	ParamInt  ParamType = 1
	ParamStr  ParamType = 2
	ParamLOB  ParamType = 3
	ParamStmt ParamType = 4
	ParamBool ParamType = 5
)

func (t ParamType) String() string {
	switch t {
	case ParamNull:
		return "NULL"
	case ParamInt:
		return "INT"
	case ParamStr:
		return "STR"
	case ParamLOB:
		return "LOB"
	case ParamStmt:
		return "STMT"
	case ParamBool:
		return "BOOL"
	}
	return "UNKNOWN"
}

// CursorOrientation positions the cursor for a single-row fetch.
// Statements in this module are forward-only: every orientation other
// than OriNext is rejected with a NotSupportedError.
type CursorOrientation int

const (
	OriNext CursorOrientation = iota
	OriPrior
	OriFirst
	OriLast
	OriAbs
	OriRel
)

// Attr is a connection or statement attribute key. The enumerated
// keys below are the recognized ones; any other value is accepted and
// stored verbatim (store-and-echo), matching the open-ended attribute
// bag of the mimicked abstraction.
type Attr int

const (
	AttrAutocommit Attr = iota
	AttrPersistent
	AttrTimeout
	AttrErrMode
	AttrCase
	AttrPrefetch
	AttrClientInfo
)

// Error code sentinels for the coarse half of the dual error
// representation. Callers check the coarse code first, then the
// native code/message in ErrorInfo.
const (
	CodeSuccess = "00000"
	CodeGeneral = "HY000"
)

// ErrorInfo is the detailed half of the error state: the coarse
// SQLSTATE-like code plus the native driver's numeric code and
// message text.
type ErrorInfo struct {
	SQLState   string
	NativeCode int
	Message    string
}

// Success reports whether the info carries no pending error.
func (i ErrorInfo) Success() bool { return i.SQLState == CodeSuccess }

// ColumnMeta describes one column of a result set.
//
// Table and PDOType are never populated: the native Oracle interface
// does not expose them. This is a known information gap of the
// backend, not a defect.
type ColumnMeta struct {
	Name       string
	NativeType string
	DeclType   int
	Len        int64
	Precision  int64
	Table      string
	PDOType    int
}

// Record is a generic row object with insertion-ordered fields, the
// OBJECT fetch shape. Field order follows the result set's column
// order.
type Record struct {
	fields *linkedhashmap.Map
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{fields: linkedhashmap.New()}
}

// Set stores a field value, keeping first-insertion order on rebind.
func (r *Record) Set(name string, value interface{}) {
	r.fields.Put(name, value)
}

// Get returns a field value and whether the field exists.
func (r *Record) Get(name string) (interface{}, bool) {
	return r.fields.Get(name)
}

// Fields returns the field names in insertion order.
func (r *Record) Fields() []string {
	keys := r.fields.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.(string))
	}
	return names
}

// Each calls f for every field in insertion order.
func (r *Record) Each(f func(name string, value interface{})) {
	r.fields.Each(func(key, value interface{}) {
		f(key.(string), value)
	})
}

// Len returns the number of fields.
func (r *Record) Len() int { return r.fields.Size() }

// Conn is the generic connection surface. Implementations own exactly
// one underlying database session. A Conn must outlive every Stmt it
// prepared; a Conn and its Stmts may be driven by at most one caller
// at a time.
type Conn interface {
	// Prepare parses the SQL text against the live session without
	// executing it.
	Prepare(query string) (Stmt, error)
	// Exec prepares and executes query, returning the affected row
	// count.
	Exec(query string) (int64, error)
	// Query prepares and executes query in one call; mode, when not
	// FetchDefault, becomes the statement's persistent fetch mode.
	Query(query string, mode FetchMode) (Stmt, error)

	// BeginTransaction switches subsequent statement executions to
	// no-auto-commit mode. It issues no statement itself. Fails with
	// a TransactionError if a transaction is already active.
	BeginTransaction() error
	// Commit ends the active transaction. A missing transaction is a
	// hard TransactionError; a native commit failure soft-fails with
	// (false, nil). Preserved asymmetry of the mimicked abstraction.
	Commit() (bool, error)
	// Rollback follows the same contract as Commit.
	Rollback() (bool, error)
	// InTransaction reports whether a transaction is active.
	InTransaction() bool

	// LastInsertID is not supported on Oracle; it warns and returns a
	// NotSupportedError.
	LastInsertID(name string) (string, error)
	// Quote escapes value for inline embedding. Only ParamStr is
	// supported.
	Quote(value string, paramType ParamType) (string, error)

	SetAttribute(attr Attr, value interface{})
	GetAttribute(attr Attr) interface{}

	// ErrorCode returns CodeSuccess when no error is pending on the
	// session, CodeGeneral otherwise.
	ErrorCode() string
	// ErrorInfo returns the full dual representation of the session's
	// last-error state.
	ErrorInfo() ErrorInfo

	Close() error
}

// Stmt is the generic prepared-statement surface: one parsed native
// statement plus its bindings and fetch state.
//
// Lifecycle: Prepared -> Executed -> (fetch* repeats) -> Closed.
// Execute may be called again from Executed. After CloseCursor the
// native resource is released and further fetches are undefined.
type Stmt interface {
	// Execute binds any supplied input parameters (replacing prior
	// bindings for those markers only) and runs the statement. The
	// execution commit mode follows the owning connection's
	// transaction flag.
	Execute(params map[string]interface{}) error

	// BindParam binds a marker to a caller-owned slot. Pointer values
	// are dereferenced at each execution; slice values take the array
	// bind path. length 0 means "string length of the current value",
	// recomputed per execution.
	BindParam(name string, value interface{}, dataType ParamType, length int) error
	// BindValue binds the immediate value, snapshotting pointers.
	BindValue(name string, value interface{}, dataType ParamType) error
	// BindColumn registers an output slot populated after every
	// successful fetch. column is a 1-based position (int) or a
	// column name (string). Only ParamStr and ParamInt are supported;
	// maxLen and driverOptions must be zero-valued.
	BindColumn(column interface{}, dest interface{}, dataType ParamType, maxLen int, driverOptions interface{}) error

	// Fetch advances one row and returns it in the effective style:
	// map[string]interface{} for ASSOC, []interface{} for NUM,
	// *Record for OBJ. Returns (nil, nil) at end of data.
	Fetch(style FetchMode, orientation CursorOrientation, offset int64) (interface{}, error)
	// FetchAll returns all remaining rows in the effective style.
	// OBJECT has no native bulk primitive and degrades to a
	// single-row fetch loop.
	FetchAll(style FetchMode) ([]interface{}, error)
	// FetchColumn advances one row and returns the value at index,
	// or (nil, nil) when the row or column is absent.
	FetchColumn(index int) (interface{}, error)
	// FetchObject advances one row as a generic object. A non-nil
	// dest must be a pointer to struct; every fetched field is copied
	// onto it and dest is returned. Returns (nil, nil) at end of
	// data.
	FetchObject(dest interface{}) (interface{}, error)

	// SetFetchMode sets the persistent fetch mode. Only the
	// single-argument form is supported; any auxiliary argument is a
	// NotSupportedError.
	SetFetchMode(mode FetchMode, args ...interface{}) error

	RowCount() int64
	ColumnCount() (int, error)
	// GetColumnMeta describes the column at the zero-based index.
	GetColumnMeta(index int) (*ColumnMeta, error)

	// NextRowset is not supported: statements are single-rowset.
	NextRowset() error
	// DebugDumpParams is not supported.
	DebugDumpParams() (string, error)
	// Current, Key, Next, Rewind and Valid form the random-access
	// iteration protocol, which this forward-only statement does not
	// support; each returns a NotSupportedError.
	Current() (interface{}, error)
	Key() (interface{}, error)
	Next() error
	Rewind() error
	Valid() (bool, error)

	// SetAttribute and GetAttribute mutate and read the statement's
	// attribute bag; unknown keys are stored and echoed verbatim.
	SetAttribute(attr Attr, value interface{})
	GetAttribute(attr Attr) interface{}

	// CloseCursor releases the native statement resource. Safe to
	// call with no pending results.
	CloseCursor() error

	ErrorCode() string
	ErrorInfo() ErrorInfo
}
