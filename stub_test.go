package oracle

import (
	"fmt"

	"github.com/godoes/pdo-oracle/logger"
	"github.com/godoes/pdo-oracle/pdo"
)

// scalarBind records one scalar bind observed by the stub cursor.
type scalarBind struct {
	name   string
	value  interface{}
	length int
}

// arrayBind records one array bind observed by the stub cursor.
type arrayBind struct {
	name   string
	values []interface{}
	length int
}

// stubCursor is a fake native statement capturing exec modes, bind
// shapes and describe positions, serving fixture rows.
type stubCursor struct {
	names   []string
	fixture [][]interface{}
	meta    map[int]*pdo.ColumnMeta

	bindErr error
	execErr error
	// execAffected is the affected-row count reported after a
	// successful non-query execution.
	execAffected int64

	execModes     []ExecMode
	scalarBinds   []scalarBind
	arrayBinds    []arrayBind
	describeCalls []int

	pos      int
	affected int64
	lastErr  *Error
	closed   bool
}

var _ Cursor = (*stubCursor)(nil)

func (c *stubCursor) Bind(name string, value interface{}, length int) error {
	if c.bindErr != nil {
		return c.bindErr
	}
	c.scalarBinds = append(c.scalarBinds, scalarBind{name: name, value: value, length: length})
	return nil
}

func (c *stubCursor) BindArray(name string, values []interface{}, length int) error {
	if c.bindErr != nil {
		return c.bindErr
	}
	c.arrayBinds = append(c.arrayBinds, arrayBind{name: name, values: values, length: length})
	return nil
}

func (c *stubCursor) Exec(mode ExecMode) error {
	c.execModes = append(c.execModes, mode)
	if c.execErr != nil {
		c.lastErr = parseOraError(c.execErr)
		return c.execErr
	}
	c.pos = 0
	c.affected = c.execAffected
	c.lastErr = nil
	return nil
}

func (c *stubCursor) FetchNum() ([]interface{}, error) {
	if c.pos >= len(c.fixture) {
		return nil, nil
	}
	row := c.fixture[c.pos]
	c.pos++
	c.affected++
	return row, nil
}

func (c *stubCursor) FetchAssoc() (map[string]interface{}, error) {
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

func (c *stubCursor) FetchObject() (*pdo.Record, error) {
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

func (c *stubCursor) FetchAllNum() ([][]interface{}, error) {
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

func (c *stubCursor) FetchAllAssoc() ([]map[string]interface{}, error) {
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

func (c *stubCursor) FetchAllByColumn() ([][]interface{}, error) {
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

func (c *stubCursor) Names() ([]string, error) { return c.names, nil }

func (c *stubCursor) ColumnCount() (int, error) { return len(c.names), nil }

func (c *stubCursor) Describe(pos int) (*pdo.ColumnMeta, error) {
	c.describeCalls = append(c.describeCalls, pos)
	if pos < 1 || pos > len(c.names) {
		return nil, fmt.Errorf("column position %d out of range", pos)
	}
	if m, ok := c.meta[pos]; ok {
		return m, nil
	}
	return &pdo.ColumnMeta{Name: c.names[pos-1]}, nil
}

func (c *stubCursor) RowsAffected() int64 { return c.affected }

func (c *stubCursor) LastError() *Error { return c.lastErr }

func (c *stubCursor) Close() error {
	c.closed = true
	return nil
}

// stubSession is a fake native session handing out stub cursors.
type stubSession struct {
	cursors    []*stubCursor
	prepared   []string
	prepareErr error

	commitErr   error
	rollbackErr error
	commits     int
	rollbacks   int

	lastErr *Error
	closed  bool
}

var _ Session = (*stubSession)(nil)

func (s *stubSession) Prepare(query string) (Cursor, error) {
	if s.prepareErr != nil {
		s.lastErr = parseOraError(s.prepareErr)
		return nil, s.prepareErr
	}
	s.prepared = append(s.prepared, query)
	if len(s.cursors) == 0 {
		return &stubCursor{}, nil
	}
	cur := s.cursors[0]
	if len(s.cursors) > 1 {
		s.cursors = s.cursors[1:]
	}
	return cur, nil
}

func (s *stubSession) Commit() error {
	s.commits++
	if s.commitErr != nil {
		s.lastErr = parseOraError(s.commitErr)
		return s.commitErr
	}
	s.lastErr = nil
	return nil
}

func (s *stubSession) Rollback() error {
	s.rollbacks++
	if s.rollbackErr != nil {
		s.lastErr = parseOraError(s.rollbackErr)
		return s.rollbackErr
	}
	s.lastErr = nil
	return nil
}

func (s *stubSession) LastError() *Error { return s.lastErr }

func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

// newStubConn wires a Connection to the given stub cursor.
func newStubConn(cursors ...*stubCursor) (*Connection, *stubSession) {
	sess := &stubSession{cursors: cursors}
	return newConnection(sess, nil, logger.Discard), sess
}
