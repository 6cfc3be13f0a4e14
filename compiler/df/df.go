// Package df computes block reachability over the graph IR. Per the
// unreachable-code design note, dead blocks are never removed here — that
// is an optimizer's job — but a caller (the driver, a linter) can still
// want to know which blocks a function can never reach from its entry.
package df

import (
	"github.com/antonromanov1/ctl/compiler/ir"
	"github.com/antonromanov1/ctl/compiler/set"
)

// Reachable returns the set of block IDs reachable from block 0 by
// following declared successors.
func Reachable(f *ir.Function) set.Bits[ir.BlockID] {
	seen := set.MakeBits[ir.BlockID](0)

	if len(f.Blocks) == 0 {
		return seen
	}

	var walk func(id ir.BlockID)
	walk = func(id ir.BlockID) {
		if seen.IsSet(id) {
			return
		}

		seen.Set(id)

		for _, s := range f.Blocks[id].Succs {
			walk(s)
		}
	}

	walk(f.Blocks[0].ID)

	return seen
}

// Unreachable returns every block ID that Reachable does not cover, in
// block-creation order.
func Unreachable(f *ir.Function) []ir.BlockID {
	reachable := Reachable(f)

	var dead []ir.BlockID

	for _, bb := range f.Blocks {
		if !reachable.IsSet(bb.ID) {
			dead = append(dead, bb.ID)
		}
	}

	return dead
}
