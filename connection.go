package oracle

import (
	"context"
	"strings"

	"github.com/godoes/pdo-oracle/logger"
	"github.com/godoes/pdo-oracle/pdo"
)

// Config collects connect-time settings.
type Config struct {
	// DSN is the oci: target descriptor, see ParseDSN.
	DSN      string
	Username string
	Password string
	// Attrs seeds the connection attribute bag. AttrPersistent
	// selects the process-wide reusable session pool.
	Attrs map[pdo.Attr]interface{}
	// Logger defaults to logger.Default.
	Logger logger.Interface
}

// Connection implements pdo.Conn over one Oracle session.
//
// A Connection and the statements prepared from it must be driven by
// one caller at a time; the Connection must outlive its statements.
type Connection struct {
	sess    Session
	options map[pdo.Attr]interface{}
	inTx    bool
	log     logger.Interface
}

var _ pdo.Conn = (*Connection)(nil)

// Connect parses the target descriptor, establishes the session and
// returns a live Connection. Connect failures carry the native error
// code and message in a pdo.ConnectionError.
func Connect(dsn, username, password string, attrs map[pdo.Attr]interface{}) (*Connection, error) {
	return Open(Config{DSN: dsn, Username: username, Password: password, Attrs: attrs})
}

// Open is Connect with explicit configuration.
func Open(config Config) (*Connection, error) {
	d, err := ParseDSN(config.DSN)
	if err != nil {
		return nil, &pdo.ConnectionError{Message: err.Error()}
	}

	persistent := false
	if v, ok := config.Attrs[pdo.AttrPersistent]; ok {
		persistent, _ = v.(bool)
	}

	sess, err := dial(d.URL(config.Username, config.Password), persistent)
	if err != nil {
		oraErr := parseOraError(err)
		return nil, &pdo.ConnectionError{Code: oraErr.Code, Message: oraErr.Message}
	}
	return newConnection(sess, config.Attrs, config.Logger), nil
}

func newConnection(sess Session, attrs map[pdo.Attr]interface{}, log logger.Interface) *Connection {
	options := make(map[pdo.Attr]interface{}, len(attrs))
	for k, v := range attrs {
		options[k] = v
	}
	if log == nil {
		log = logger.Default
	}
	return &Connection{
		sess:    sess,
		options: options,
		log:     log,
	}
}

// Prepare parses query against the live session without executing it.
func (c *Connection) Prepare(query string) (pdo.Stmt, error) {
	cur, err := c.sess.Prepare(query)
	if err != nil {
		oraErr := parseOraError(err)
		return nil, &pdo.StatementError{Query: query, Code: oraErr.Code, Message: oraErr.Message}
	}
	return newStatement(cur, c, query), nil
}

// Exec prepares and executes query, returning the affected row count.
func (c *Connection) Exec(query string) (int64, error) {
	stmt, err := c.Prepare(query)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.CloseCursor() }()

	if err = stmt.Execute(nil); err != nil {
		return 0, err
	}
	return stmt.RowCount(), nil
}

// Query prepares and executes query. A mode other than
// pdo.FetchDefault becomes the statement's persistent fetch mode.
func (c *Connection) Query(query string, mode pdo.FetchMode) (pdo.Stmt, error) {
	stmt, err := c.Prepare(query)
	if err != nil {
		return nil, err
	}
	if mode != pdo.FetchDefault {
		if err = stmt.SetFetchMode(mode); err != nil {
			_ = stmt.CloseCursor()
			return nil, err
		}
	}
	if err = stmt.Execute(nil); err != nil {
		_ = stmt.CloseCursor()
		return nil, err
	}
	return stmt, nil
}

// BeginTransaction switches subsequent executions on this connection
// to no-auto-commit mode. The flag flip is purely local: no statement
// is issued here, the mode is applied per execution.
func (c *Connection) BeginTransaction() error {
	if c.inTx {
		return &pdo.TransactionError{Reason: "a transaction is already active"}
	}
	c.inTx = true
	return nil
}

// Commit ends the active transaction. Native commit failure returns
// (false, nil) instead of an error; this soft-fail asymmetry is
// preserved from the abstraction being mimicked.
func (c *Connection) Commit() (bool, error) {
	if !c.inTx {
		return false, &pdo.TransactionError{Reason: "no active transaction"}
	}
	if err := c.sess.Commit(); err != nil {
		c.log.Error(context.Background(), "commit failed: %v", err)
		return false, nil
	}
	c.inTx = false
	return true, nil
}

// Rollback follows the same contract as Commit.
func (c *Connection) Rollback() (bool, error) {
	if !c.inTx {
		return false, &pdo.TransactionError{Reason: "no active transaction"}
	}
	if err := c.sess.Rollback(); err != nil {
		c.log.Error(context.Background(), "rollback failed: %v", err)
		return false, nil
	}
	c.inTx = false
	return true, nil
}

// InTransaction reports whether a transaction is active.
func (c *Connection) InTransaction() bool { return c.inTx }

// LastInsertID is not available on Oracle, which has no implicit
// insert-id primitive; use a sequence with RETURNING INTO instead.
func (c *Connection) LastInsertID(string) (string, error) {
	c.log.Warn(context.Background(), "LastInsertID is not supported by Oracle, use a sequence with RETURNING INTO")
	return "", pdo.NotSupported("LastInsertID")
}

// Quote escapes value for inline embedding: embedded single quotes
// are doubled and the whole value is wrapped in quotes. Only string
// quoting is supported.
func (c *Connection) Quote(value string, paramType pdo.ParamType) (string, error) {
	if paramType != pdo.ParamStr {
		return "", pdo.NotSupported("quoting values of type %s", paramType)
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'", nil
}

// SetAttribute stores an attribute. Unknown keys are stored verbatim.
func (c *Connection) SetAttribute(attr pdo.Attr, value interface{}) {
	c.options[attr] = value
}

// GetAttribute reads an attribute, nil when unset.
func (c *Connection) GetAttribute(attr pdo.Attr) interface{} {
	return c.options[attr]
}

// ErrorCode returns the coarse half of the session's last-error
// state.
func (c *Connection) ErrorCode() string {
	return c.ErrorInfo().SQLState
}

// ErrorInfo reads the session's last-error state lazily from the
// native layer.
func (c *Connection) ErrorInfo() pdo.ErrorInfo {
	return errorInfoFor(c.sess.LastError())
}

// Close releases the underlying session.
func (c *Connection) Close() error {
	return c.sess.Close()
}

func errorInfoFor(err *Error) pdo.ErrorInfo {
	if err == nil {
		return pdo.ErrorInfo{SQLState: pdo.CodeSuccess}
	}
	return pdo.ErrorInfo{
		SQLState:   pdo.CodeGeneral,
		NativeCode: err.Code,
		Message:    err.Message,
	}
}
