package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonromanov1/ctl/compiler/ast"
)

func TestParseEmptyFunc(t *testing.T) {
	u, err := Parse(context.Background(), "t.sl", []byte("fn main() {}"))
	require.NoError(t, err)
	require.Len(t, u.Funcs, 1)

	f := u.Funcs[0]
	assert.Equal(t, "main", f.Name)
	assert.False(t, f.HasRet)
	assert.Empty(t, f.Params)
	assert.Empty(t, f.Body.Stmts)
}

func TestParseParamsAndReturn(t *testing.T) {
	u, err := Parse(context.Background(), "t.sl", []byte("fn foo(p0: i64, p1: i64) -> i64 { return p0 + p1; }"))
	require.NoError(t, err)

	f := u.Funcs[0]
	assert.True(t, f.HasRet)
	require.Len(t, f.Params, 2)
	assert.Equal(t, "p0", f.Params[0].Name)
	assert.Equal(t, "p1", f.Params[1].Name)

	require.Len(t, f.Body.Stmts, 1)
	ret, ok := f.Body.Stmts[0].(ast.ReturnStmt)
	require.True(t, ok)

	bin, ok := ret.Value.(ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseWhileIfBreakContinue(t *testing.T) {
	src := `fn main() {
		let mut a: i64 = 0;
		while (a < 9) {
			a = a + 1;
			if (a == 23) {
				continue;
			} else {
				break;
			}
		}
	}`

	u, err := Parse(context.Background(), "t.sl", []byte(src))
	require.NoError(t, err)

	f := u.Funcs[0]
	require.Len(t, f.Body.Stmts, 2)

	wh, ok := f.Body.Stmts[1].(ast.WhileStmt)
	require.True(t, ok)
	require.Len(t, wh.Body.Stmts, 2)

	ifst, ok := wh.Body.Stmts[1].(ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, ifst.Else)

	_, ok = ifst.Then.Stmts[0].(ast.ContinueStmt)
	assert.True(t, ok)

	_, ok = ifst.Else.Stmts[0].(ast.BreakStmt)
	assert.True(t, ok)
}

func TestParseShiftExpression(t *testing.T) {
	u, err := Parse(context.Background(), "t.sl", []byte("fn foo() -> i64 { return 1 << 2 + 3; }"))
	require.NoError(t, err)

	ret := u.Funcs[0].Body.Stmts[0].(ast.ReturnStmt)
	bin, ok := ret.Value.(ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "<<", bin.Op)

	// shift binds looser than '+': right side of '<<' is the whole '2 + 3'.
	rhs, ok := bin.Right.(ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", rhs.Op)
}

func TestParseCallAndExprStmt(t *testing.T) {
	u, err := Parse(context.Background(), "t.sl", []byte("fn foo() { bar(1, 2); }"))
	require.NoError(t, err)

	st, ok := u.Funcs[0].Body.Stmts[0].(ast.ExprStmt)
	require.True(t, ok)

	call, ok := st.X.(ast.Call)
	require.True(t, ok)
	assert.Equal(t, "bar", call.Callee)
	assert.Len(t, call.Args, 2)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse(context.Background(), "t.sl", []byte("fn main( {}"))
	require.Error(t, err)
}
