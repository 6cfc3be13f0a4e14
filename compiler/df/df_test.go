package df_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonromanov1/ctl/compiler/df"
	"github.com/antonromanov1/ctl/compiler/ir"
	"github.com/antonromanov1/ctl/compiler/parse"
)

func lowerFirst(t *testing.T, src string) *ir.Function {
	t.Helper()

	u, err := parse.Parse(context.Background(), "t.sl", []byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, u.Funcs)

	fn, err := ir.Lower(context.Background(), u.Funcs[0])
	require.NoError(t, err)

	return fn
}

func TestReachableEntryOnly(t *testing.T) {
	fn := lowerFirst(t, `fn main() {}`)

	reachable := df.Reachable(fn)
	assert.True(t, reachable.IsSet(fn.Blocks[0].ID))
	assert.Empty(t, df.Unreachable(fn))
}

func TestUnreachableExitAfterInfiniteLoop(t *testing.T) {
	fn := lowerFirst(t, `
		fn f() {
			while (true) {}
		}
	`)

	dead := df.Unreachable(fn)
	require.NotEmpty(t, dead)

	last := fn.Blocks[len(fn.Blocks)-1]
	assert.Contains(t, dead, last.ID)
	assert.Equal(t, ir.OpReturnVoid, fn.Inst(last.Insts[len(last.Insts)-1]).Op)
}

func TestReachableWithBreakReachesExit(t *testing.T) {
	fn := lowerFirst(t, `
		fn f() {
			while (true) {
				break;
			}
		}
	`)

	// break jumps straight to the exit block, so it is reachable even
	// though the backedge block right after it is not.
	reachable := df.Reachable(fn)
	last := fn.Blocks[len(fn.Blocks)-1]
	assert.True(t, reachable.IsSet(last.ID))
	assert.Equal(t, ir.OpReturnVoid, fn.Inst(last.Insts[len(last.Insts)-1]).Op)
}
