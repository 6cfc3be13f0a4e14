// Package format renders a lowered function as text, per §4.T of both IR
// forms. It is a thin dispatch in front of each IR's own Dump: the shared
// entry point a driver or CLI command calls without caring which lowering
// produced the function.
package format

import (
	"context"

	"tlog.app/go/errors"

	"github.com/antonromanov1/ctl/compiler/flatir"
	"github.com/antonromanov1/ctl/compiler/ir"
)

// Format renders x, which must be *flatir.Function or *ir.Function.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	switch x := x.(type) {
	case *flatir.Function:
		return append(b, x.Dump()...), nil
	case *ir.Function:
		return append(b, x.Dump()...), nil
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}
