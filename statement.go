package oracle

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/godoes/pdo-oracle/pdo"
)

// Statement implements pdo.Stmt over one parsed native statement.
//
// The back reference to the owning Connection is read-only and exists
// solely so each execution can follow the connection's transaction
// flag; it never mutates connection state.
type Statement struct {
	cur   Cursor
	conn  *Connection
	query string

	options   map[pdo.Attr]interface{}
	fetchMode pdo.FetchMode

	params  *linkedhashmap.Map // marker -> boundParam, in bind order
	columns *linkedhashmap.Map // column key -> boundColumn, accumulating

	executed bool
	closed   bool
}

type boundParam struct {
	value  interface{}
	typ    pdo.ParamType
	length int
}

type boundColumn struct {
	pos  int // 1-based position, 0 when bound by name
	name string
	dest interface{}
	typ  pdo.ParamType
}

var _ pdo.Stmt = (*Statement)(nil)

func newStatement(cur Cursor, conn *Connection, query string) *Statement {
	return &Statement{
		cur:     cur,
		conn:    conn,
		query:   query,
		options: map[pdo.Attr]interface{}{},
		params:  linkedhashmap.New(),
		columns: linkedhashmap.New(),
	}
}

// SetAttribute stores a statement attribute. Unknown keys are stored
// verbatim.
func (s *Statement) SetAttribute(attr pdo.Attr, value interface{}) {
	s.options[attr] = value
}

// GetAttribute reads a statement attribute, nil when unset.
func (s *Statement) GetAttribute(attr pdo.Attr) interface{} {
	return s.options[attr]
}

// BindParam binds a marker to a caller-owned slot. A pointer value is
// dereferenced at every execution; a slice value selects the array
// bind path. length 0 defers to the string length of the value
// current at execution time.
func (s *Statement) BindParam(name string, value interface{}, dataType pdo.ParamType, length int) error {
	if s.closed {
		return pdo.ErrClosedCursor
	}
	s.params.Put(normalizeMarker(name), boundParam{value: value, typ: dataType, length: length})
	return nil
}

// BindValue binds the immediate value, snapshotting pointers at bind
// time.
func (s *Statement) BindValue(name string, value interface{}, dataType pdo.ParamType) error {
	return s.BindParam(name, ptrDereference(value), dataType, 0)
}

// BindColumn registers an output slot populated after every
// successful fetch. Bindings accumulate until the statement is
// discarded.
func (s *Statement) BindColumn(column interface{}, dest interface{}, dataType pdo.ParamType, maxLen int, driverOptions interface{}) error {
	if dataType != pdo.ParamStr && dataType != pdo.ParamInt {
		return pdo.NotSupported("binding columns as %s", dataType)
	}
	if maxLen != 0 {
		return pdo.NotSupported("bindColumn with a maximum length")
	}
	if driverOptions != nil {
		return pdo.NotSupported("bindColumn with driver options")
	}

	bc := boundColumn{dest: dest, typ: dataType}
	switch col := column.(type) {
	case int:
		if col < 1 {
			return &pdo.BindError{Marker: fmt.Sprint(column), Value: dest, Err: errors.New("column positions are 1-based")}
		}
		bc.pos = col
	case string:
		bc.name = col
	default:
		return &pdo.BindError{Marker: fmt.Sprint(column), Value: dest, Err: errors.New("column must be a position or a name")}
	}

	rv := reflect.ValueOf(dest)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &pdo.BindError{Marker: fmt.Sprint(column), Value: dest, Err: errors.New("output slot must be a non-nil pointer")}
	}

	s.columns.Put(column, bc)
	return nil
}

// Execute binds pending parameters and runs the statement. The commit
// mode follows the owning connection's transaction flag: accumulate
// inside a transaction, commit on success otherwise.
func (s *Statement) Execute(params map[string]interface{}) error {
	if s.closed {
		return &pdo.ExecutionError{Message: pdo.ErrClosedCursor.Error()}
	}

	for name, value := range params {
		if err := s.BindValue(name, value, pdo.ParamStr); err != nil {
			return &pdo.BindError{Marker: name, Value: value, Err: err}
		}
	}

	if err := s.bindAll(); err != nil {
		return err
	}

	mode := CommitOnSuccess
	if s.conn.InTransaction() {
		mode = NoAutoCommit
	}

	begin := time.Now()
	err := s.cur.Exec(mode)
	s.conn.log.Trace(context.Background(), begin, func() (string, int64) {
		return s.query, s.cur.RowsAffected()
	}, err)
	if err != nil {
		oraErr := parseOraError(err)
		return &pdo.ExecutionError{Code: oraErr.Code, Message: oraErr.Message}
	}
	s.executed = true
	return nil
}

// bindAll pushes every bound parameter down to the cursor, resolving
// slots and lengths against their values current at this execution.
func (s *Statement) bindAll() error {
	var bindErr error
	s.params.Each(func(key, value interface{}) {
		if bindErr != nil {
			return
		}
		name := key.(string)
		p := value.(boundParam)

		current := ptrDereference(p.value)
		if elems, ok := asSequence(current); ok {
			length := p.length
			if length == 0 {
				length = len(elems)
			}
			if err := s.cur.BindArray(name, elems, length); err != nil {
				bindErr = &pdo.BindError{Marker: name, Value: current, Err: err}
			}
			return
		}

		coerced, err := coerceParam(current, p.typ)
		if err != nil {
			bindErr = &pdo.BindError{Marker: name, Value: current, Err: err}
			return
		}
		length := p.length
		if length == 0 {
			// dynamic default, recomputed against the current value
			length = len(stringify(coerced))
		}
		if err := s.cur.Bind(name, coerced, length); err != nil {
			bindErr = &pdo.BindError{Marker: name, Value: current, Err: err}
		}
	})
	return bindErr
}

// Fetch advances one row in the effective style. Only forward-only,
// zero-offset cursoring is available.
func (s *Statement) Fetch(style pdo.FetchMode, orientation pdo.CursorOrientation, offset int64) (interface{}, error) {
	if s.closed {
		return nil, pdo.ErrClosedCursor
	}
	if orientation != pdo.OriNext {
		return nil, pdo.NotSupported("cursor orientation other than FETCH_ORI_NEXT")
	}
	if offset != 0 {
		return nil, pdo.NotSupported("non-zero cursor offset")
	}

	effective := s.effectiveStyle(style)
	switch effective {
	case pdo.FetchAssoc, pdo.FetchNum, pdo.FetchObj:
	default:
		// BOTH, BOUND, CLASS, INTO, LAZY and friends are deliberate
		// compatibility gaps of this backend, not oversights
		return nil, pdo.NotSupported("fetch style %s", effective)
	}
	if !s.executed {
		return nil, pdo.ErrNotExecuted
	}

	var (
		row interface{}
		err error
	)
	switch effective {
	case pdo.FetchAssoc:
		var r map[string]interface{}
		if r, err = s.cur.FetchAssoc(); r != nil {
			row = r
		}
	case pdo.FetchNum:
		var r []interface{}
		if r, err = s.cur.FetchNum(); r != nil {
			row = r
		}
	case pdo.FetchObj:
		var r *pdo.Record
		if r, err = s.cur.FetchObject(); r != nil {
			row = r
		}
	}
	if err != nil {
		return nil, err
	}
	if row == nil {
		// end of data: bound column slots stay untouched
		return nil, nil
	}
	if err = s.populateBoundColumns(row); err != nil {
		return nil, err
	}
	return row, nil
}

// FetchAll returns all remaining rows in the effective style.
//
// OBJECT has no native bulk primitive: it degrades to a single-row
// fetch loop, costing one native fetch per row behind the one call.
func (s *Statement) FetchAll(style pdo.FetchMode) ([]interface{}, error) {
	if s.closed {
		return nil, pdo.ErrClosedCursor
	}

	switch effective := s.effectiveStyle(style); effective {
	case pdo.FetchAssoc:
		rows, err := s.cur.FetchAllAssoc()
		if err != nil {
			return nil, err
		}
		all := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			all = append(all, row)
		}
		return all, nil

	case pdo.FetchNum:
		rows, err := s.cur.FetchAllNum()
		if err != nil {
			return nil, err
		}
		all := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			all = append(all, row)
		}
		return all, nil

	case pdo.FetchColumn:
		columns, err := s.cur.FetchAllByColumn()
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			return []interface{}{}, nil
		}
		return columns[0], nil

	case pdo.FetchObj:
		var all []interface{}
		for {
			row, err := s.Fetch(pdo.FetchObj, pdo.OriNext, 0)
			if err != nil {
				return nil, err
			}
			if row == nil {
				return all, nil
			}
			all = append(all, row)
		}

	default:
		return nil, pdo.NotSupported("fetchAll style %s", effective)
	}
}

// FetchColumn advances one row and returns the value at index, or
// (nil, nil) when no row remains or the column is absent.
func (s *Statement) FetchColumn(index int) (interface{}, error) {
	if s.closed {
		return nil, pdo.ErrClosedCursor
	}
	row, err := s.cur.FetchNum()
	if err != nil || row == nil {
		return nil, err
	}
	if err = s.populateBoundColumns(row); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(row) {
		return nil, nil
	}
	return row[index], nil
}

// FetchObject advances one row as a generic object. With a non-nil
// dest, every fetched field is copied onto the pointed-to struct.
func (s *Statement) FetchObject(dest interface{}) (interface{}, error) {
	if s.closed {
		return nil, pdo.ErrClosedCursor
	}
	record, err := s.cur.FetchObject()
	if err != nil || record == nil {
		return nil, err
	}
	if err = s.populateBoundColumns(record); err != nil {
		return nil, err
	}
	if dest == nil {
		return record, nil
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, &pdo.BindError{Marker: "fetchObject", Value: dest, Err: errors.New("target must be a non-nil struct pointer")}
	}
	elem := rv.Elem()
	var copyErr error
	record.Each(func(name string, value interface{}) {
		if copyErr != nil {
			return
		}
		field := fieldByFoldedName(elem, name)
		if !field.IsValid() || !field.CanSet() {
			return
		}
		if err := assignValue(field, value); err != nil {
			copyErr = fmt.Errorf("field %s: %w", name, err)
		}
	})
	if copyErr != nil {
		return nil, copyErr
	}
	return dest, nil
}

// SetFetchMode sets the persistent fetch mode, which overrides the
// per-call style on every subsequent fetch until changed. Only the
// single-argument form is supported.
func (s *Statement) SetFetchMode(mode pdo.FetchMode, args ...interface{}) error {
	if len(args) > 0 {
		return pdo.NotSupported("setFetchMode with a class or constructor arguments")
	}
	s.fetchMode = mode
	return nil
}

// RowCount reports the native driver's row count for the last
// operation.
func (s *Statement) RowCount() int64 { return s.cur.RowsAffected() }

// ColumnCount reports the number of result columns, 0 when the last
// execution produced no result set.
func (s *Statement) ColumnCount() (int, error) {
	n, err := s.cur.ColumnCount()
	if errors.Is(err, pdo.ErrNoResultSet) {
		return 0, nil
	}
	return n, err
}

// GetColumnMeta describes the column at the zero-based index. The
// native interface counts columns from 1, so the index is shifted
// before it crosses the boundary.
func (s *Statement) GetColumnMeta(index int) (*pdo.ColumnMeta, error) {
	if index < 0 {
		return nil, fmt.Errorf("column index %d out of range", index)
	}
	return s.cur.Describe(index + 1)
}

// NextRowset is not supported: statements are single-rowset by
// design.
func (s *Statement) NextRowset() error {
	return pdo.NotSupported("nextRowset")
}

// DebugDumpParams is not supported.
func (s *Statement) DebugDumpParams() (string, error) {
	return "", pdo.NotSupported("debugDumpParams")
}

// Current is part of the random-access iteration protocol, which this
// forward-only statement does not support.
func (s *Statement) Current() (interface{}, error) {
	return nil, pdo.NotSupported("random-access iteration (current)")
}

// Key is not supported, see Current.
func (s *Statement) Key() (interface{}, error) {
	return nil, pdo.NotSupported("random-access iteration (key)")
}

// Next is not supported, see Current.
func (s *Statement) Next() error {
	return pdo.NotSupported("random-access iteration (next)")
}

// Rewind is not supported, see Current.
func (s *Statement) Rewind() error {
	return pdo.NotSupported("random-access iteration (rewind)")
}

// Valid is not supported, see Current.
func (s *Statement) Valid() (bool, error) {
	return false, pdo.NotSupported("random-access iteration (valid)")
}

// CloseCursor releases the native statement resource. Safe to call
// with no pending results or repeatedly.
func (s *Statement) CloseCursor() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cur.Close()
}

// ErrorCode returns the coarse half of the statement's last-error
// state.
func (s *Statement) ErrorCode() string {
	return s.ErrorInfo().SQLState
}

// ErrorInfo reads the statement's last-error state lazily from the
// native cursor.
func (s *Statement) ErrorInfo() pdo.ErrorInfo {
	return errorInfoFor(s.cur.LastError())
}

func (s *Statement) effectiveStyle(style pdo.FetchMode) pdo.FetchMode {
	if s.fetchMode != pdo.FetchDefault {
		return s.fetchMode
	}
	return style
}

// populateBoundColumns copies the row's values into every registered
// output slot, coercing to INT where requested.
func (s *Statement) populateBoundColumns(row interface{}) error {
	if s.columns.Size() == 0 {
		return nil
	}
	names, err := s.cur.Names()
	if err != nil {
		return err
	}

	valueAt := func(pos int) (interface{}, bool) {
		if pos < 0 || pos >= len(names) {
			return nil, false
		}
		switch r := row.(type) {
		case []interface{}:
			return r[pos], true
		case map[string]interface{}:
			v, ok := r[names[pos]]
			return v, ok
		case *pdo.Record:
			return r.Get(names[pos])
		}
		return nil, false
	}

	var copyErr error
	s.columns.Each(func(_, value interface{}) {
		if copyErr != nil {
			return
		}
		bc := value.(boundColumn)

		pos := bc.pos - 1
		if bc.pos == 0 {
			pos = columnIndex(names, bc.name)
		}
		v, ok := valueAt(pos)
		if !ok {
			// absent columns leave their slots untouched
			return
		}

		if bc.typ == pdo.ParamInt {
			if n, err := toInt64(v); err == nil {
				v = n
			}
		}
		if err := assignOut(bc.dest, v); err != nil {
			marker := bc.name
			if bc.pos > 0 {
				marker = strconv.Itoa(bc.pos)
			}
			copyErr = &pdo.BindError{Marker: marker, Value: v, Err: err}
		}
	})
	return copyErr
}

func columnIndex(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

func normalizeMarker(name string) string {
	return strings.TrimPrefix(name, ":")
}

// asSequence reports whether value is an array-bind sequence and
// returns its elements. Byte slices stay scalars.
func asSequence(value interface{}) ([]interface{}, bool) {
	if value == nil {
		return nil, false
	}
	if _, isBytes := value.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	elems := make([]interface{}, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i).Interface()
	}
	return elems, true
}

// coerceParam applies declared-type coercion at bind time. The
// declared type never validates: an integer bound as STR becomes its
// text form, and INT passes unconvertible values through untouched so
// numeric-into-text inserts keep working.
func coerceParam(value interface{}, typ pdo.ParamType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch typ {
	case pdo.ParamStr:
		if _, isBytes := value.([]byte); isBytes {
			return value, nil
		}
		if s, isString := value.(string); isString {
			return s, nil
		}
		return stringify(value), nil
	case pdo.ParamInt:
		if n, err := toInt64(value); err == nil {
			return n, nil
		}
		return value, nil
	default:
		return value, nil
	}
}

func stringify(value interface{}) string {
	if value == nil {
		return ""
	}
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", value)
}

// assignOut writes a fetched value into a caller-owned output slot.
func assignOut(dest, value interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = stringify(value)
		return nil
	case *int64:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		*d = n
		return nil
	case *int:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		*d = int(n)
		return nil
	case *interface{}:
		*d = value
		return nil
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("output slot must be a non-nil pointer")
	}
	return assignValue(rv.Elem(), value)
}

// assignValue sets a reflected destination from a fetched value,
// converting where the types allow it.
func assignValue(dest reflect.Value, value interface{}) error {
	if value == nil {
		dest.Set(reflect.Zero(dest.Type()))
		return nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(dest.Type()):
		dest.Set(rv)
	case rv.Type().ConvertibleTo(dest.Type()):
		dest.Set(rv.Convert(dest.Type()))
	case dest.Kind() == reflect.String:
		dest.SetString(stringify(value))
	case dest.Kind() >= reflect.Int && dest.Kind() <= reflect.Int64:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		dest.SetInt(n)
	default:
		return fmt.Errorf("cannot assign %T to %s", value, dest.Type())
	}
	return nil
}

func fieldByFoldedName(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Name, name) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// ptrDereference unwraps pointer values down to the pointed-to value,
// leaving nil pointers and non-pointers as they are.
func ptrDereference(obj interface{}) (value interface{}) {
	if obj == nil {
		return obj
	}
	if t := reflect.TypeOf(obj); t.Kind() != reflect.Ptr {
		return obj
	}

	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() == reflect.Ptr && v.IsNil() {
		return obj
	}
	value = v.Interface()
	return
}
