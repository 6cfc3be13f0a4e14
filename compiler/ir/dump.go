package ir

import (
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
)

// Dump renders the function per §4.T: 'Function <name>:', a blank line, then
// for each block in creation order a 'BB <id>: preds: [..] succs: [..]'
// header followed by its instructions, one per line.
func (f *Function) Dump() []byte {
	var b []byte

	b = hfmt.Appendf(b, "Function %s:\n\n", f.Name)

	for _, bb := range f.Blocks {
		b = hfmt.Appendf(b, "BB %d: ", bb.ID)
		b = bb.dump(b, f)
		b = append(b, '\n')
	}

	return b
}

func (bb *BasicBlock) dump(b []byte, f *Function) []byte {
	if len(bb.Insts) == 0 {
		return b
	}

	b = hfmt.Appendf(b, "preds: [%s] succs: [%s]\n", dumpIDs(bb.Preds), dumpIDs(bb.Succs))

	for _, id := range bb.Insts {
		b = append(b, f.Inst(id).dump()...)
		b = append(b, '\n')
	}

	return b
}

func dumpIDs[T ~int](ids []T) string {
	s := ""

	for i, id := range ids {
		if i > 0 {
			s += ", "
		}

		s += strconv.Itoa(int(id))
	}

	return s
}
