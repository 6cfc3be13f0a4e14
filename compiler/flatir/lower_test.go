package flatir_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonromanov1/ctl/compiler/flatir"
	"github.com/antonromanov1/ctl/compiler/parse"
)

func lowerFirst(t *testing.T, src string) *flatir.Function {
	t.Helper()

	u, err := parse.Parse(context.Background(), "t.sl", []byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, u.Funcs)

	fn, err := flatir.Lower(context.Background(), u.Funcs[0])
	require.NoError(t, err)

	return fn
}

func TestLowerEmptyFunctionIsEmpty(t *testing.T) {
	fn := lowerFirst(t, `fn main() {}`)
	assert.Empty(t, fn.Insts)
}

func TestLowerEmptyBodyWithParamsSkipsReturnVoid(t *testing.T) {
	fn := lowerFirst(t, `fn foo(p0: i64, p1: i64) {}`)

	want := "Function foo:\n\n" +
		"0. v0 = Parameter\n" +
		"1. v1 = Parameter\n"

	assert.Equal(t, want, string(fn.Dump()))
}

func TestLowerReturnTargetsReservedSlot(t *testing.T) {
	fn := lowerFirst(t, `fn foo() -> i64 { return 0; }`)

	want := "Function foo:\n\n" +
		"0. MoveImm v0, 0\n" +
		"1. Return v0\n"

	assert.Equal(t, want, string(fn.Dump()))
}

func TestLowerImplicitReturnVoid(t *testing.T) {
	fn := lowerFirst(t, `fn main() { let mut a: i64 = 0; }`)

	last := fn.Insts[len(fn.Insts)-1]
	assert.Equal(t, flatir.OpReturnVoid, last.Op)
}

func TestLowerIfElseBothEmpty(t *testing.T) {
	fn := lowerFirst(t, `fn main() { if (0 == 0) {} else {} }`)

	want := "Function main:\n\n" +
		"0. MoveImm v0, 0\n" +
		"1. MoveImm v1, 0\n" +
		"2. IfFalse v0 == v1, goto 4\n" +
		"3. Goto 4\n" +
		"4. ReturnVoid\n"

	assert.Equal(t, want, string(fn.Dump()))
}

func TestLowerInfiniteLoopEmptyBody(t *testing.T) {
	fn := lowerFirst(t, `fn main() { while (true) {} }`)

	want := "Function main:\n\n" +
		"0. Goto 0\n" +
		"1. ReturnVoid\n"

	assert.Equal(t, want, string(fn.Dump()))
}

func TestLowerAssignmentWithCallAndArith(t *testing.T) {
	fn := lowerFirst(t, `
		fn main() {
			let mut n: i64 = 0;
			n = calc() + 1;
		}

		fn calc() -> i64 {
			return 7;
		}
	`)

	var sawCall, sawMoveImm, sawAdd, sawMoveIntoN bool

	for _, in := range fn.Insts {
		switch in.Op {
		case flatir.OpCall:
			sawCall = true
		case flatir.OpMoveImm:
			sawMoveImm = true
		case flatir.OpAdd:
			sawAdd = true
		case flatir.OpMove:
			if in.Dest == 0 {
				sawMoveIntoN = true
			}
		}
	}

	assert.True(t, sawCall)
	assert.True(t, sawMoveImm)
	assert.True(t, sawAdd)
	assert.True(t, sawMoveIntoN)
}

func TestLowerWhileContinueBreakUseLoopHeadAndExit(t *testing.T) {
	fn := lowerFirst(t, `
		fn f() {
			let mut a: i64 = 0;
			while (a < 9) {
				if (a == 3) {
					continue;
				}
				if (a == 5) {
					break;
				}
				a = a + 1;
			}
		}
	`)

	var ifFalseCount, gotoCount int

	for _, in := range fn.Insts {
		switch in.Op {
		case flatir.OpIfFalse:
			ifFalseCount++
		case flatir.OpGoto:
			gotoCount++
		}
	}

	assert.Equal(t, 3, ifFalseCount) // loop head, continue's if, break's if
	assert.Equal(t, 3, gotoCount)    // continue, break, loop back-edge

	last := fn.Insts[len(fn.Insts)-1]
	assert.Equal(t, flatir.OpReturnVoid, last.Op)
}

func TestLowerUndeclaredIdentifierIsInternalError(t *testing.T) {
	// Lowering never sees this: analysis rejects it first. Lower still
	// reports a clean internal error rather than panicking if it does.
	u, err := parse.Parse(context.Background(), "t.sl", []byte(`fn f() { return a; }`))
	require.NoError(t, err)

	_, err = flatir.Lower(context.Background(), u.Funcs[0])
	assert.Error(t, err)
}
