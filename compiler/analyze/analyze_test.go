package analyze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonromanov1/ctl/compiler/diag"
	"github.com/antonromanov1/ctl/compiler/parse"
)

func check(t *testing.T, src string) error {
	t.Helper()

	u, err := parse.Parse(context.Background(), "t.sl", []byte(src))
	require.NoError(t, err)

	return Analyze(context.Background(), "t.sl", []byte(src), u)
}

func TestAnalyzeOK(t *testing.T) {
	err := check(t, `
		fn helper(p0: i64) -> i64 { return p0; }
		fn main() {
			let mut a: i64 = 0;
			while (a < 9) {
				a = a + helper(a);
				if (a == 23) { continue; } else { break; }
			}
		}
	`)
	assert.NoError(t, err)
}

func TestAnalyzeForwardReference(t *testing.T) {
	// later() is defined after caller() in the unit; the reference
	// implementation's single-pass check would reject this.
	err := check(t, `
		fn caller() -> i64 { return later(); }
		fn later() -> i64 { return 0; }
	`)
	assert.NoError(t, err)
}

func TestAnalyzeDuplicateFunc(t *testing.T) {
	err := check(t, `
		fn foo() {}
		fn foo() {}
	`)
	require.Error(t, err)
	assert.IsType(t, diag.SemanticError{}, err)
}

func TestAnalyzeUndeclaredIdent(t *testing.T) {
	err := check(t, `fn main() { a = 1; }`)
	require.Error(t, err)
}

func TestAnalyzeNestedLetRejected(t *testing.T) {
	err := check(t, `
		fn main() {
			if (0 == 0) {
				let mut a: i64 = 1;
			}
		}
	`)
	require.Error(t, err)
}

func TestAnalyzeBreakOutsideLoop(t *testing.T) {
	err := check(t, `fn main() { break; }`)
	require.Error(t, err)
}

func TestAnalyzeNonComparisonCondition(t *testing.T) {
	err := check(t, `fn main() { if (1) {} }`)
	require.Error(t, err)
}

func TestAnalyzeWhileTrueAllowed(t *testing.T) {
	err := check(t, `fn main() { while (true) { break; } }`)
	assert.NoError(t, err)
}

func TestAnalyzeArityMismatch(t *testing.T) {
	err := check(t, `
		fn helper(p0: i64) {}
		fn main() { helper(); }
	`)
	require.Error(t, err)
}

func TestAnalyzeReturnValueMismatch(t *testing.T) {
	err := check(t, `fn main() { return 0; }`)
	require.Error(t, err)
}
