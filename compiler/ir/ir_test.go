package ir_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonromanov1/ctl/compiler/ir"
	"github.com/antonromanov1/ctl/compiler/parse"
)

func TestBuilderDump(t *testing.T) {
	fn, err := ir.NewBuilder("cmp").
		Block(0, 1, 2).
		Inst(ir.InstSpec{Block: 0, ID: 0, Op: ir.OpParameter}).
		Inst(ir.InstSpec{Block: 0, ID: 1, Op: ir.OpConstant, Imm: 9}).
		Inst(ir.InstSpec{Block: 0, ID: 2, Op: ir.OpBranch, Inputs: []ir.InstID{0, 1}, Cc: ir.Lt}).
		Block(1).
		Inst(ir.InstSpec{Block: 1, ID: 3, Op: ir.OpReturn, Inputs: []ir.InstID{1}}).
		Block(2).
		Inst(ir.InstSpec{Block: 2, ID: 4, Op: ir.OpReturnVoid}).
		Build()
	require.NoError(t, err)

	want := "Function cmp:\n\n" +
		"BB 0: preds: [] succs: [1, 2]\n" +
		"%0 = Parameter\n" +
		"%1 = Constant 9\n" +
		" 2 Branch %0 < %1\n\n" +
		"BB 1: preds: [0] succs: []\n" +
		" 3 Return %1\n\n" +
		"BB 2: preds: [0] succs: []\n" +
		" 4 ReturnVoid\n\n"

	assert.Equal(t, want, string(fn.Dump()))
}

func TestBuilderRejectsBadTerminator(t *testing.T) {
	_, err := ir.NewBuilder("bad").
		Block(0).
		Inst(ir.InstSpec{Block: 0, ID: 0, Op: ir.OpConstant, Imm: 1}).
		Build()
	require.Error(t, err)
}

func lowerFirst(t *testing.T, src string) *ir.Function {
	t.Helper()

	u, err := parse.Parse(context.Background(), "t.sl", []byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, u.Funcs)

	fn, err := ir.Lower(context.Background(), u.Funcs[0])
	require.NoError(t, err)

	return fn
}

func TestLowerEmptyFunction(t *testing.T) {
	fn := lowerFirst(t, `fn main() {}`)

	require.Len(t, fn.Insts, 1)
	assert.Equal(t, ir.OpReturnVoid, fn.Insts[0].Op)
	require.Len(t, fn.Blocks, 1)
	assert.Empty(t, fn.Blocks[0].Succs)
}

func TestLowerIfNoElse(t *testing.T) {
	fn := lowerFirst(t, `
		fn f(p0: i64) -> i64 {
			if (p0 < 9) {
				return p0;
			}
			return 0;
		}
	`)

	// entry block ends in Branch to the then-block and the merge block.
	entry := fn.Blocks[0]
	last := fn.Inst(entry.Insts[len(entry.Insts)-1])
	assert.Equal(t, ir.OpBranch, last.Op)
	assert.Len(t, entry.Succs, 2)
}

func TestLowerWhileContinueBreak(t *testing.T) {
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

	assert.NotEmpty(t, fn.Blocks)

	// Every block but the last must end in a Branch or Jump.
	for _, bb := range fn.Blocks[:len(fn.Blocks)-1] {
		last := fn.Inst(bb.Insts[len(bb.Insts)-1])
		assert.Contains(t, []ir.Op{ir.OpBranch, ir.OpJump}, last.Op)
	}
}

func TestLowerInfiniteLoop(t *testing.T) {
	fn := lowerFirst(t, `
		fn f() {
			while (true) {
				break;
			}
		}
	`)

	assert.NotEmpty(t, fn.Blocks)
}

func TestLowerParameterIsNotLoaded(t *testing.T) {
	fn := lowerFirst(t, `fn f(p0: i64) -> i64 { return p0; }`)

	for _, in := range fn.Insts {
		assert.NotEqual(t, ir.OpLoad, in.Op)
	}
}

func TestLowerLocalUsesAllocStoreLoad(t *testing.T) {
	fn := lowerFirst(t, `
		fn f() -> i64 {
			let mut a: i64 = 1;
			return a;
		}
	`)

	var sawAlloc, sawStore, sawLoad bool

	for _, in := range fn.Insts {
		switch in.Op {
		case ir.OpAlloc:
			sawAlloc = true
		case ir.OpStore:
			sawStore = true
		case ir.OpLoad:
			sawLoad = true
		}
	}

	assert.True(t, sawAlloc)
	assert.True(t, sawStore)
	assert.True(t, sawLoad)
}
