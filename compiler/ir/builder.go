package ir

import "github.com/antonromanov1/ctl/compiler/diag"

// Builder is the programmatic graph-construction interface from §6: declare
// basic blocks with their successor lists, declare instructions with their
// opcode/inputs/immediate/condition-code, and Build computes predecessors
// and validates the invariants of §3. It replaces the reference
// implementation's ir_constructor test helper, which relies on process-wide
// mutable statics; this Builder is an ordinary value with no shared state.
type Builder struct {
	fn     *Function
	blocks map[BlockID]bool
	err    error
}

func NewBuilder(name string) *Builder {
	return &Builder{fn: NewFunction(name), blocks: map[BlockID]bool{}}
}

// Block declares a basic block and its successors. Blocks must be declared
// in ID order starting at 0, matching their eventual creation order.
func (b *Builder) Block(id BlockID, succs ...BlockID) *Builder {
	if b.err != nil {
		return b
	}

	got := b.fn.createBlock()
	if got != id {
		b.err = diag.NewInternal("builder: block %d declared out of order (got %d)", id, got)
		return b
	}

	b.fn.Blocks[id].Succs = succs
	b.blocks[id] = true

	return b
}

// InstSpec describes one instruction to append to a block.
type InstSpec struct {
	Block  BlockID
	ID     InstID
	Op     Op
	Inputs []InstID
	Imm    int64
	Cc     Cc
	Target InstID
	Callee string
}

func (b *Builder) Inst(spec InstSpec) *Builder {
	if b.err != nil {
		return b
	}

	if !b.blocks[spec.Block] {
		b.err = diag.NewInternal("builder: block %d not declared before instruction %d", spec.Block, spec.ID)
		return b
	}

	got := b.fn.createInst(Inst{
		Op:     spec.Op,
		Inputs: spec.Inputs,
		Imm:    spec.Imm,
		Cc:     spec.Cc,
		Target: spec.Target,
		Callee: spec.Callee,
	})

	if got != spec.ID {
		b.err = diag.NewInternal("builder: instruction %d declared out of order (got %d)", spec.ID, got)
		return b
	}

	b.fn.appendInst(spec.Block, spec.ID)

	return b
}

// Build computes predecessors and validates the invariants of §3: every
// block ends with exactly one terminator, Branch has two successors, Jump
// has one, Return/ReturnVoid have zero, and predecessors are the transpose
// of successors.
func (b *Builder) Build() (*Function, error) {
	if b.err != nil {
		return nil, b.err
	}

	b.fn.RecomputePredecessors()

	for _, bb := range b.fn.Blocks {
		if err := validateTerminator(b.fn, bb); err != nil {
			return nil, err
		}
	}

	return b.fn, nil
}

func validateTerminator(f *Function, bb *BasicBlock) error {
	if len(bb.Insts) == 0 {
		return diag.NewInternal("BB %d: block has no terminator", bb.ID)
	}

	for _, id := range bb.Insts[:len(bb.Insts)-1] {
		switch op := f.Inst(id).Op; op {
		case OpBranch, OpJump, OpReturn, OpReturnVoid:
			return diag.NewInternal("BB %d: terminator %s is not the last instruction", bb.ID, op)
		}
	}

	last := f.Inst(bb.Insts[len(bb.Insts)-1])

	switch last.Op {
	case OpBranch:
		if len(bb.Succs) != 2 {
			return diag.NewInternal("BB %d: Branch terminator needs exactly 2 successors, got %d", bb.ID, len(bb.Succs))
		}
	case OpJump:
		if len(bb.Succs) != 1 {
			return diag.NewInternal("BB %d: Jump terminator needs exactly 1 successor, got %d", bb.ID, len(bb.Succs))
		}
	case OpReturn, OpReturnVoid:
		if len(bb.Succs) != 0 {
			return diag.NewInternal("BB %d: %s terminator must have no successors, got %d", bb.ID, last.Op, len(bb.Succs))
		}
	default:
		return diag.NewInternal("BB %d: last instruction %s is not a terminator", bb.ID, last.Op)
	}

	return nil
}
