package flatir

import "github.com/nikandfor/hacked/hfmt"

// Dump renders the function per §4.T: 'Function <name>:', a blank line,
// then one line per instruction, prefixed with its absolute index, in
// creation order.
func (f *Function) Dump() []byte {
	b := hfmt.Appendf(nil, "Function %s:\n\n", f.Name)

	for i, in := range f.Insts {
		b = hfmt.Appendf(b, "%d. %s\n", i, in.text())
	}

	return b
}
