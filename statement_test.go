package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godoes/pdo-oracle/pdo"
)

func preparedStmt(t *testing.T, cur *stubCursor) pdo.Stmt {
	t.Helper()
	conn, _ := newStubConn(cur)
	stmt, err := conn.Prepare("SELECT id, name FROM users")
	require.NoError(t, err)
	return stmt
}

func executedStmt(t *testing.T, cur *stubCursor) pdo.Stmt {
	t.Helper()
	stmt := preparedStmt(t, cur)
	require.NoError(t, stmt.Execute(nil))
	return stmt
}

func usersCursor() *stubCursor {
	return &stubCursor{
		names: []string{"ID", "NAME"},
		fixture: [][]interface{}{
			{int64(1), "alice"},
			{int64(2), "bob"},
			{int64(3), "carol"},
		},
	}
}

func TestBindParamScalarShapes(t *testing.T) {
	tests := []struct {
		name       string
		value      interface{}
		dataType   pdo.ParamType
		length     int
		wantValue  interface{}
		wantLength int
	}{
		{
			name:       "string default length",
			value:      "hello",
			dataType:   pdo.ParamStr,
			wantValue:  "hello",
			wantLength: 5,
		},
		{
			name:       "integer as string",
			value:      12345,
			dataType:   pdo.ParamStr,
			wantValue:  "12345",
			wantLength: 5,
		},
		{
			name:       "integer stays numeric",
			value:      42,
			dataType:   pdo.ParamInt,
			wantValue:  int64(42),
			wantLength: 2,
		},
		{
			name:       "numeric text as int",
			value:      "17",
			dataType:   pdo.ParamInt,
			wantValue:  int64(17),
			wantLength: 2,
		},
		{
			name:       "explicit length wins",
			value:      "ab",
			dataType:   pdo.ParamStr,
			length:     42,
			wantValue:  "ab",
			wantLength: 42,
		},
		{
			name:       "unconvertible int passes through",
			value:      "abc",
			dataType:   pdo.ParamInt,
			wantValue:  "abc",
			wantLength: 3,
		},
		{
			name:       "nil binds null",
			value:      nil,
			dataType:   pdo.ParamStr,
			wantValue:  nil,
			wantLength: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := &stubCursor{}
			stmt := preparedStmt(t, cur)

			require.NoError(t, stmt.BindParam(":v", tt.value, tt.dataType, tt.length))
			require.NoError(t, stmt.Execute(nil))

			require.Len(t, cur.scalarBinds, 1)
			assert.Equal(t, "v", cur.scalarBinds[0].name, "marker colon is stripped")
			assert.Equal(t, tt.wantValue, cur.scalarBinds[0].value)
			assert.Equal(t, tt.wantLength, cur.scalarBinds[0].length)
			assert.Empty(t, cur.arrayBinds)
		})
	}
}

func TestBindParamArrayShapes(t *testing.T) {
	tests := []struct {
		name       string
		value      interface{}
		length     int
		wantValues []interface{}
		wantLength int
	}{
		{
			name:       "string slice",
			value:      []string{"a", "bb", "ccc"},
			wantValues: []interface{}{"a", "bb", "ccc"},
			wantLength: 3,
		},
		{
			name:       "int slice with explicit length",
			value:      []int{1, 2},
			length:     10,
			wantValues: []interface{}{1, 2},
			wantLength: 10,
		},
		{
			name:       "empty slice",
			value:      []string{},
			wantValues: []interface{}{},
			wantLength: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := &stubCursor{}
			stmt := preparedStmt(t, cur)

			require.NoError(t, stmt.BindParam(":ids", tt.value, pdo.ParamStr, tt.length))
			require.NoError(t, stmt.Execute(nil))

			require.Len(t, cur.arrayBinds, 1)
			assert.Equal(t, "ids", cur.arrayBinds[0].name)
			assert.Equal(t, tt.wantValues, cur.arrayBinds[0].values)
			assert.Equal(t, tt.wantLength, cur.arrayBinds[0].length)
			assert.Empty(t, cur.scalarBinds)
		})
	}
}

func TestBindParamByteSliceStaysScalar(t *testing.T) {
	cur := &stubCursor{}
	stmt := preparedStmt(t, cur)

	raw := []byte("blob bytes")
	require.NoError(t, stmt.BindParam(":raw", raw, pdo.ParamLOB, 0))
	require.NoError(t, stmt.Execute(nil))

	require.Len(t, cur.scalarBinds, 1)
	assert.Empty(t, cur.arrayBinds)
}

func TestBindParamDynamicLengthTracksValue(t *testing.T) {
	cur := &stubCursor{}
	stmt := preparedStmt(t, cur)

	v := "ab"
	require.NoError(t, stmt.BindParam(":v", &v, pdo.ParamStr, 0))

	require.NoError(t, stmt.Execute(nil))
	v = "abcdef"
	require.NoError(t, stmt.Execute(nil))

	require.Len(t, cur.scalarBinds, 2)
	assert.Equal(t, "ab", cur.scalarBinds[0].value)
	assert.Equal(t, 2, cur.scalarBinds[0].length)
	assert.Equal(t, "abcdef", cur.scalarBinds[1].value, "pointer slot is read per execution")
	assert.Equal(t, 6, cur.scalarBinds[1].length, "default length follows the current value")
}

func TestBindValueSnapshotsPointer(t *testing.T) {
	cur := &stubCursor{}
	stmt := preparedStmt(t, cur)

	v := "before"
	require.NoError(t, stmt.BindValue(":v", &v, pdo.ParamStr))
	v = "after"
	require.NoError(t, stmt.Execute(nil))

	require.Len(t, cur.scalarBinds, 1)
	assert.Equal(t, "before", cur.scalarBinds[0].value)
}

func TestExecuteInlineParams(t *testing.T) {
	cur := &stubCursor{}
	stmt := preparedStmt(t, cur)

	require.NoError(t, stmt.Execute(map[string]interface{}{"id": 7}))

	require.Len(t, cur.scalarBinds, 1)
	assert.Equal(t, "id", cur.scalarBinds[0].name)
	assert.Equal(t, "7", cur.scalarBinds[0].value, "inline parameters bind as strings")
}

func TestExecuteInlineParamOverridesMarkerOnly(t *testing.T) {
	cur := &stubCursor{}
	stmt := preparedStmt(t, cur)

	require.NoError(t, stmt.BindParam(":a", "one", pdo.ParamStr, 0))
	require.NoError(t, stmt.BindParam(":b", "two", pdo.ParamStr, 0))
	require.NoError(t, stmt.Execute(map[string]interface{}{"a": "changed"}))

	require.Len(t, cur.scalarBinds, 2)
	byName := map[string]interface{}{}
	for _, b := range cur.scalarBinds {
		byName[b.name] = b.value
	}
	assert.Equal(t, "changed", byName["a"])
	assert.Equal(t, "two", byName["b"], "untouched markers keep their bindings")
}

func TestExecuteSurfacesNativeError(t *testing.T) {
	cur := &stubCursor{execErr: errors.New("ORA-00001: unique constraint (SCOTT.PK) violated")}
	stmt := preparedStmt(t, cur)

	err := stmt.Execute(nil)
	var execErr *pdo.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.Code)
	assert.Equal(t, "unique constraint (SCOTT.PK) violated", execErr.Message)

	assert.Equal(t, pdo.CodeGeneral, stmt.ErrorCode())
	assert.Equal(t, 1, stmt.ErrorInfo().NativeCode)
}

func TestExecuteWrapsBindFailure(t *testing.T) {
	cur := &stubCursor{bindErr: errors.New("ORA-01036: illegal variable name/number")}
	stmt := preparedStmt(t, cur)

	require.NoError(t, stmt.BindParam(":bad", "x", pdo.ParamStr, 0))

	err := stmt.Execute(nil)
	var bindErr *pdo.BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "bad", bindErr.Marker)
}

func TestFetchBeforeExecute(t *testing.T) {
	stmt := preparedStmt(t, usersCursor())

	_, err := stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 0)
	assert.ErrorIs(t, err, pdo.ErrNotExecuted)
}

func TestFetchAssocWalksResultSet(t *testing.T) {
	stmt := executedStmt(t, usersCursor())

	want := []map[string]interface{}{
		{"ID": int64(1), "NAME": "alice"},
		{"ID": int64(2), "NAME": "bob"},
		{"ID": int64(3), "NAME": "carol"},
	}
	for _, wantRow := range want {
		row, err := stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 0)
		require.NoError(t, err)
		assert.Equal(t, wantRow, row)
	}

	row, err := stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 0)
	require.NoError(t, err)
	assert.Nil(t, row, "end of data is (nil, nil), not an error")
}

func TestFetchNumAndObjectShapes(t *testing.T) {
	stmt := executedStmt(t, usersCursor())

	row, err := stmt.Fetch(pdo.FetchNum, pdo.OriNext, 0)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), "alice"}, row)

	row, err = stmt.Fetch(pdo.FetchObj, pdo.OriNext, 0)
	require.NoError(t, err)
	record, ok := row.(*pdo.Record)
	require.True(t, ok)
	assert.Equal(t, []string{"ID", "NAME"}, record.Fields())
	name, _ := record.Get("NAME")
	assert.Equal(t, "bob", name)
}

func TestFetchRejectsUnsupportedStyles(t *testing.T) {
	for _, style := range []pdo.FetchMode{
		pdo.FetchBoth,
		pdo.FetchBound,
		pdo.FetchClass,
		pdo.FetchInto,
		pdo.FetchLazy,
		pdo.FetchColumn,
	} {
		t.Run(style.String(), func(t *testing.T) {
			stmt := executedStmt(t, usersCursor())
			_, err := stmt.Fetch(style, pdo.OriNext, 0)
			assert.True(t, pdo.IsNotSupported(err))
		})
	}
}

func TestFetchStyleRejectedEvenBeforeExecute(t *testing.T) {
	stmt := preparedStmt(t, usersCursor())
	_, err := stmt.Fetch(pdo.FetchBoth, pdo.OriNext, 0)
	assert.True(t, pdo.IsNotSupported(err), "style validation precedes the executed check")
}

func TestFetchRejectsCursorPositioning(t *testing.T) {
	stmt := executedStmt(t, usersCursor())

	for _, ori := range []pdo.CursorOrientation{pdo.OriPrior, pdo.OriFirst, pdo.OriLast, pdo.OriAbs, pdo.OriRel} {
		_, err := stmt.Fetch(pdo.FetchAssoc, ori, 0)
		assert.True(t, pdo.IsNotSupported(err), "orientation %d", ori)
	}

	_, err := stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 5)
	assert.True(t, pdo.IsNotSupported(err), "non-zero offset")
}

func TestSetFetchModePersists(t *testing.T) {
	stmt := executedStmt(t, usersCursor())

	require.NoError(t, stmt.SetFetchMode(pdo.FetchNum))

	// the persistent mode overrides the per-call style
	row, err := stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 0)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), "alice"}, row)
}

func TestSetFetchModeRejectsAuxiliaryArgs(t *testing.T) {
	stmt := preparedStmt(t, usersCursor())
	err := stmt.SetFetchMode(pdo.FetchClass, "User")
	assert.True(t, pdo.IsNotSupported(err))
}

func TestFetchAllShapes(t *testing.T) {
	t.Run("assoc", func(t *testing.T) {
		stmt := executedStmt(t, usersCursor())
		rows, err := stmt.FetchAll(pdo.FetchAssoc)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, map[string]interface{}{"ID": int64(2), "NAME": "bob"}, rows[1])
	})

	t.Run("num", func(t *testing.T) {
		stmt := executedStmt(t, usersCursor())
		rows, err := stmt.FetchAll(pdo.FetchNum)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []interface{}{int64(3), "carol"}, rows[2])
	})

	t.Run("column", func(t *testing.T) {
		stmt := executedStmt(t, usersCursor())
		values, err := stmt.FetchAll(pdo.FetchColumn)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, values)
	})

	t.Run("unsupported", func(t *testing.T) {
		stmt := executedStmt(t, usersCursor())
		_, err := stmt.FetchAll(pdo.FetchBoth)
		assert.True(t, pdo.IsNotSupported(err))
	})
}

func TestFetchAllObjectMatchesSingleRowLoop(t *testing.T) {
	bulk := executedStmt(t, usersCursor())
	all, err := bulk.FetchAll(pdo.FetchObj)
	require.NoError(t, err)

	loop := executedStmt(t, usersCursor())
	var looped []interface{}
	for {
		row, err := loop.Fetch(pdo.FetchObj, pdo.OriNext, 0)
		require.NoError(t, err)
		if row == nil {
			break
		}
		looped = append(looped, row)
	}

	require.Len(t, all, len(looped))
	for i := range all {
		a, b := all[i].(*pdo.Record), looped[i].(*pdo.Record)
		assert.Equal(t, b.Fields(), a.Fields(), "row %d", i)
		for _, field := range a.Fields() {
			av, _ := a.Get(field)
			bv, _ := b.Get(field)
			assert.Equal(t, bv, av, "row %d field %s", i, field)
		}
	}
}

func TestFetchColumn(t *testing.T) {
	stmt := executedStmt(t, usersCursor())

	v, err := stmt.FetchColumn(1)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	// each call consumes a row
	v, err = stmt.FetchColumn(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// out-of-range column reads as absent, the row is still consumed
	v, err = stmt.FetchColumn(9)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = stmt.FetchColumn(0)
	require.NoError(t, err)
	assert.Nil(t, v, "exhausted result set")
}

func TestFetchObjectIntoStruct(t *testing.T) {
	type user struct {
		ID   int64
		Name string
	}

	stmt := executedStmt(t, usersCursor())

	var u user
	got, err := stmt.FetchObject(&u)
	require.NoError(t, err)
	assert.Same(t, &u, got)
	assert.Equal(t, user{ID: 1, Name: "alice"}, u)

	// nil destination returns the generic record
	got, err = stmt.FetchObject(nil)
	require.NoError(t, err)
	record, ok := got.(*pdo.Record)
	require.True(t, ok)
	id, _ := record.Get("ID")
	assert.Equal(t, int64(2), id)

	// a non-struct destination is a bind failure
	var s string
	_, err = stmt.FetchObject(&s)
	var bindErr *pdo.BindError
	assert.ErrorAs(t, err, &bindErr)
}

func TestBoundColumnsPopulateOnFetch(t *testing.T) {
	stmt := executedStmt(t, usersCursor())

	var (
		id   int64
		name string
	)
	require.NoError(t, stmt.BindColumn(1, &id, pdo.ParamInt, 0, nil))
	require.NoError(t, stmt.BindColumn("name", &name, pdo.ParamStr, 0, nil))

	_, err := stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "alice", name, "name binding matches case-insensitively")

	_, err = stmt.Fetch(pdo.FetchNum, pdo.OriNext, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id, "slots refresh on every fetch, any style")
	assert.Equal(t, "bob", name)

	_, err = stmt.Fetch(pdo.FetchObj, pdo.OriNext, 0)
	require.NoError(t, err)
	_, err = stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id, "end of data leaves the last row in place")
	assert.Equal(t, "carol", name)
}

func TestBindColumnValidation(t *testing.T) {
	stmt := preparedStmt(t, usersCursor())
	var out string

	err := stmt.BindColumn(1, &out, pdo.ParamLOB, 0, nil)
	assert.True(t, pdo.IsNotSupported(err), "only STR and INT column bindings exist")

	err = stmt.BindColumn(1, &out, pdo.ParamStr, 64, nil)
	assert.True(t, pdo.IsNotSupported(err), "maximum length is not implemented")

	err = stmt.BindColumn(1, &out, pdo.ParamStr, 0, map[string]string{"x": "y"})
	assert.True(t, pdo.IsNotSupported(err), "driver options are not implemented")

	var bindErr *pdo.BindError
	err = stmt.BindColumn(0, &out, pdo.ParamStr, 0, nil)
	assert.ErrorAs(t, err, &bindErr, "positions are 1-based")

	err = stmt.BindColumn(1, "not a pointer", pdo.ParamStr, 0, nil)
	assert.ErrorAs(t, err, &bindErr)

	err = stmt.BindColumn(1.5, &out, pdo.ParamStr, 0, nil)
	assert.ErrorAs(t, err, &bindErr, "column key must be a position or a name")
}

func TestColumnCount(t *testing.T) {
	stmt := executedStmt(t, usersCursor())
	n, err := stmt.ColumnCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRowCountAfterDML(t *testing.T) {
	cur := &stubCursor{execAffected: 5}
	stmt := executedStmt(t, cur)
	assert.Equal(t, int64(5), stmt.RowCount())
}

func TestGetColumnMetaShiftsToOneBased(t *testing.T) {
	cur := usersCursor()
	cur.meta = map[int]*pdo.ColumnMeta{
		1: {Name: "ID", NativeType: "NUMBER", DeclType: 2, Precision: 38},
		2: {Name: "NAME", NativeType: "VARCHAR2", DeclType: 1, Len: 100},
	}
	stmt := executedStmt(t, cur)

	meta, err := stmt.GetColumnMeta(0)
	require.NoError(t, err)
	assert.Equal(t, "ID", meta.Name)
	assert.Equal(t, "NUMBER", meta.NativeType)

	meta, err = stmt.GetColumnMeta(1)
	require.NoError(t, err)
	assert.Equal(t, "NAME", meta.Name)
	assert.Equal(t, int64(100), meta.Len)

	assert.Equal(t, []int{1, 2}, cur.describeCalls, "zero-based indexes shift before crossing the boundary")

	_, err = stmt.GetColumnMeta(-1)
	assert.Error(t, err)

	_, err = stmt.GetColumnMeta(2)
	assert.Error(t, err, "past the last column")
}

func TestUnsupportedStatementSurface(t *testing.T) {
	stmt := executedStmt(t, usersCursor())

	assert.True(t, pdo.IsNotSupported(stmt.NextRowset()))

	_, err := stmt.DebugDumpParams()
	assert.True(t, pdo.IsNotSupported(err))

	_, err = stmt.Current()
	assert.True(t, pdo.IsNotSupported(err))
	_, err = stmt.Key()
	assert.True(t, pdo.IsNotSupported(err))
	assert.True(t, pdo.IsNotSupported(stmt.Next()))
	assert.True(t, pdo.IsNotSupported(stmt.Rewind()))
	_, err = stmt.Valid()
	assert.True(t, pdo.IsNotSupported(err))
}

func TestCloseCursor(t *testing.T) {
	cur := usersCursor()
	stmt := executedStmt(t, cur)

	require.NoError(t, stmt.CloseCursor())
	assert.True(t, cur.closed)
	require.NoError(t, stmt.CloseCursor(), "closing twice is a no-op")

	_, err := stmt.Fetch(pdo.FetchAssoc, pdo.OriNext, 0)
	assert.ErrorIs(t, err, pdo.ErrClosedCursor)

	err = stmt.Execute(nil)
	var execErr *pdo.ExecutionError
	assert.ErrorAs(t, err, &execErr)
}

func TestStatementAttributes(t *testing.T) {
	stmt := preparedStmt(t, usersCursor())

	assert.Nil(t, stmt.GetAttribute(pdo.AttrPrefetch))
	stmt.SetAttribute(pdo.AttrPrefetch, 100)
	assert.Equal(t, 100, stmt.GetAttribute(pdo.AttrPrefetch))
}
