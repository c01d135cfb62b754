package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/godoes/pdo-oracle/pdo"
)

// driverName is the database/sql name go-ora registers on import.
const driverName = "oracle"

var (
	poolMu sync.Mutex
	// pools holds one shared *sql.DB per connect URL for persistent
	// connections, reused across the host process.
	pools = map[string]*sql.DB{}
)

func openPool(url string, persistent bool) (*sql.DB, error) {
	if !persistent {
		return sql.Open(driverName, url)
	}

	poolMu.Lock()
	defer poolMu.Unlock()
	if db, ok := pools[url]; ok {
		return db, nil
	}
	db, err := sql.Open(driverName, url)
	if err != nil {
		return nil, err
	}
	pools[url] = db
	return db, nil
}

// oraSession implements Session over a dedicated database/sql
// connection from the go-ora driver.
//
// The native commit-on-success/no-auto-commit execution modes are
// realized through database/sql's transaction surface: NoAutoCommit
// executions lazily open one sql.Tx on the session connection and run
// inside it until Commit or Rollback ends it; CommitOnSuccess
// executions run directly on the connection, which autocommits.
type oraSession struct {
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	ctx        context.Context
	persistent bool
	lastErr    *Error
}

var _ Session = (*oraSession)(nil)

func dial(url string, persistent bool) (*oraSession, error) {
	db, err := openPool(url, persistent)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err == nil {
		err = conn.PingContext(ctx)
	}
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		if !persistent {
			_ = db.Close()
		}
		return nil, err
	}

	return &oraSession{
		db:         db,
		conn:       conn,
		ctx:        ctx,
		persistent: persistent,
	}, nil
}

// remember mirrors the session's last-error state: set on failure,
// cleared on success.
func (s *oraSession) remember(err error) error {
	s.lastErr = parseOraError(err)
	return err
}

func (s *oraSession) Prepare(query string) (Cursor, error) {
	stmt, err := s.conn.PrepareContext(s.ctx, query)
	if s.remember(err) != nil {
		return nil, err
	}
	return &oraCursor{
		sess:  s,
		query: query,
		stmt:  stmt,
		binds: linkedhashmap.New(),
	}, nil
}

// transaction returns the pending sql.Tx, opening one on first use.
func (s *oraSession) transaction() (*sql.Tx, error) {
	if s.tx == nil {
		tx, err := s.conn.BeginTx(s.ctx, nil)
		if err != nil {
			return nil, err
		}
		s.tx = tx
	}
	return s.tx, nil
}

func (s *oraSession) Commit() error {
	if s.tx == nil {
		// no NoAutoCommit work since the last commit/rollback
		return s.remember(nil)
	}
	tx := s.tx
	s.tx = nil
	return s.remember(tx.Commit())
}

func (s *oraSession) Rollback() error {
	if s.tx == nil {
		return s.remember(nil)
	}
	tx := s.tx
	s.tx = nil
	return s.remember(tx.Rollback())
}

func (s *oraSession) LastError() *Error { return s.lastErr }

func (s *oraSession) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	err := s.conn.Close()
	if !s.persistent {
		if dbErr := s.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

type bindEntry struct {
	value  interface{}
	values []interface{}
	array  bool
	length int
}

// oraCursor implements Cursor over one prepared *sql.Stmt.
type oraCursor struct {
	sess  *oraSession
	query string
	stmt  *sql.Stmt

	binds *linkedhashmap.Map // marker -> bindEntry, in bind order

	rows     *sql.Rows
	names    []string
	types    []*sql.ColumnType
	affected int64
	lastErr  *Error
	closed   bool
}

var _ Cursor = (*oraCursor)(nil)

func (c *oraCursor) fail(err error) error {
	c.lastErr = parseOraError(err)
	return err
}

func (c *oraCursor) Bind(name string, value interface{}, length int) error {
	if c.closed {
		return c.fail(pdo.ErrClosedCursor)
	}
	c.binds.Put(name, bindEntry{value: value, length: length})
	c.lastErr = nil
	return nil
}

func (c *oraCursor) BindArray(name string, values []interface{}, length int) error {
	if c.closed {
		return c.fail(pdo.ErrClosedCursor)
	}
	c.binds.Put(name, bindEntry{values: values, array: true, length: length})
	c.lastErr = nil
	return nil
}

func (c *oraCursor) Exec(mode ExecMode) error {
	if c.closed {
		return c.fail(pdo.ErrClosedCursor)
	}
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}

	args := make([]interface{}, 0, c.binds.Size())
	c.binds.Each(func(key, value interface{}) {
		entry := value.(bindEntry)
		if entry.array {
			// go-ora turns a slice argument into an array bind and
			// repeats the statement per element
			args = append(args, sql.Named(key.(string), entry.values))
		} else {
			args = append(args, sql.Named(key.(string), entry.value))
		}
	})

	stmt := c.stmt
	if mode == NoAutoCommit {
		tx, err := c.sess.transaction()
		if err != nil {
			return c.fail(err)
		}
		stmt = tx.StmtContext(c.sess.ctx, c.stmt)
	}

	if returnsRows(c.query) {
		rows, err := stmt.QueryContext(c.sess.ctx, args...)
		if err != nil {
			return c.fail(err)
		}
		names, err := rows.Columns()
		if err != nil {
			_ = rows.Close()
			return c.fail(err)
		}
		types, err := rows.ColumnTypes()
		if err != nil {
			_ = rows.Close()
			return c.fail(err)
		}
		c.rows, c.names, c.types = rows, names, types
		c.affected = 0
		c.lastErr = nil
		return nil
	}

	res, err := stmt.ExecContext(c.sess.ctx, args...)
	if err != nil {
		return c.fail(err)
	}
	c.names, c.types = nil, nil
	c.affected, _ = res.RowsAffected()
	c.lastErr = nil
	return nil
}

func (c *oraCursor) FetchNum() ([]interface{}, error) {
	if c.closed {
		return nil, c.fail(pdo.ErrClosedCursor)
	}
	if c.rows == nil {
		return nil, c.fail(pdo.ErrNoResultSet)
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, c.fail(err)
		}
		return nil, nil
	}

	values := make([]interface{}, len(c.names))
	dests := make([]interface{}, len(values))
	for i := range values {
		dests[i] = &values[i]
	}
	if err := c.rows.Scan(dests...); err != nil {
		return nil, c.fail(err)
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	c.affected++
	c.lastErr = nil
	return values, nil
}

func (c *oraCursor) FetchAssoc() (map[string]interface{}, error) {
	values, err := c.FetchNum()
	if values == nil || err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(values))
	for i, name := range c.names {
		row[name] = values[i]
	}
	return row, nil
}

func (c *oraCursor) FetchObject() (*pdo.Record, error) {
	values, err := c.FetchNum()
	if values == nil || err != nil {
		return nil, err
	}
	record := pdo.NewRecord()
	for i, name := range c.names {
		record.Set(name, values[i])
	}
	return record, nil
}

func (c *oraCursor) FetchAllNum() ([][]interface{}, error) {
	var all [][]interface{}
	for {
		row, err := c.FetchNum()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return all, nil
		}
		all = append(all, row)
	}
}

func (c *oraCursor) FetchAllAssoc() ([]map[string]interface{}, error) {
	var all []map[string]interface{}
	for {
		row, err := c.FetchAssoc()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return all, nil
		}
		all = append(all, row)
	}
}

func (c *oraCursor) FetchAllByColumn() ([][]interface{}, error) {
	rows, err := c.FetchAllNum()
	if err != nil {
		return nil, err
	}
	columns := make([][]interface{}, len(c.names))
	for _, row := range rows {
		for i, v := range row {
			columns[i] = append(columns[i], v)
		}
	}
	return columns, nil
}

func (c *oraCursor) Names() ([]string, error) {
	if c.rows == nil {
		return nil, pdo.ErrNoResultSet
	}
	return c.names, nil
}

func (c *oraCursor) ColumnCount() (int, error) {
	if c.rows == nil {
		return 0, pdo.ErrNoResultSet
	}
	return len(c.names), nil
}

func (c *oraCursor) Describe(pos int) (*pdo.ColumnMeta, error) {
	if c.rows == nil {
		return nil, pdo.ErrNoResultSet
	}
	if pos < 1 || pos > len(c.types) {
		return nil, fmt.Errorf("column position %d out of range 1..%d", pos, len(c.types))
	}

	ct := c.types[pos-1]
	meta := &pdo.ColumnMeta{
		Name:       ct.Name(),
		NativeType: ct.DatabaseTypeName(),
		DeclType:   declTypeCode(ct.DatabaseTypeName()),
	}
	if length, ok := ct.Length(); ok {
		meta.Len = length
	}
	if precision, _, ok := ct.DecimalSize(); ok {
		meta.Precision = precision
	}
	// Table and PDOType stay empty: not exposed by the native driver
	return meta, nil
}

// declTypeCode maps an Oracle type name to its OCI external type
// code, the raw type half of column metadata.
func declTypeCode(nativeType string) int {
	switch strings.ToUpper(nativeType) {
	case "VARCHAR2", "VARCHAR", "NVARCHAR2":
		return 1 // SQLT_CHR
	case "NUMBER", "FLOAT", "DOUBLE", "INTEGER", "SMALLINT":
		return 2 // SQLT_NUM
	case "LONG":
		return 8 // SQLT_LNG
	case "DATE":
		return 12 // SQLT_DAT
	case "RAW":
		return 23 // SQLT_BIN
	case "LONG RAW":
		return 24 // SQLT_LBI
	case "CHAR", "NCHAR":
		return 96 // SQLT_AFC
	case "CLOB", "NCLOB":
		return 112 // SQLT_CLOB
	case "BLOB":
		return 113 // SQLT_BLOB
	case "ROWID", "UROWID":
		return 104 // SQLT_RDD
	}
	if strings.HasPrefix(strings.ToUpper(nativeType), "TIMESTAMP") {
		return 187 // SQLT_TIMESTAMP
	}
	return 0
}

func (c *oraCursor) RowsAffected() int64 { return c.affected }

func (c *oraCursor) LastError() *Error { return c.lastErr }

func (c *oraCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.rows != nil {
		err = c.rows.Close()
		c.rows = nil
	}
	if c.stmt != nil {
		if stmtErr := c.stmt.Close(); err == nil {
			err = stmtErr
		}
		c.stmt = nil
	}
	return err
}

// returnsRows reports whether query produces a result set, deciding
// between the driver's query and exec entry points.
func returnsRows(query string) bool {
	q := strings.TrimSpace(query)
	for strings.HasPrefix(q, "--") || strings.HasPrefix(q, "/*") {
		if strings.HasPrefix(q, "--") {
			if i := strings.IndexByte(q, '\n'); i >= 0 {
				q = strings.TrimSpace(q[i+1:])
				continue
			}
			return false
		}
		if i := strings.Index(q, "*/"); i >= 0 {
			q = strings.TrimSpace(q[i+2:])
			continue
		}
		return false
	}
	if len(q) < 4 {
		return false
	}
	switch strings.ToUpper(q[:4]) {
	case "SELE", "WITH":
		return true
	}
	return false
}
