// Package ir is the graph IR model: basic blocks with predecessor/successor
// edges, explicit Alloc/Load/Store for locals, and Branch/Jump terminators
// with implicit targets via block successors. It also hosts the Graph
// Lowering (AST to this model) and the Builder test-construction API.
package ir

import "fmt"

type Cc int

const (
	CcInvalid Cc = iota
	Eq
	Ne
	Lt
	Gt
	Le
	Ge
)

func (c Cc) String() string {
	switch c {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Gt:
		return ">"
	case Le:
		return "<="
	case Ge:
		return ">="
	default:
		return "invalid"
	}
}

// CcForOp maps a surface comparison operator to its condition code.
func CcForOp(op string) (Cc, bool) {
	switch op {
	case "==":
		return Eq, true
	case "!=":
		return Ne, true
	case "<":
		return Lt, true
	case ">":
		return Gt, true
	case "<=":
		return Le, true
	case ">=":
		return Ge, true
	default:
		return CcInvalid, false
	}
}

type Op int

const (
	OpConstant Op = iota
	OpParameter

	OpAlloc
	OpStore // Inputs = [src, dest]; dest is an Alloc id
	OpLoad  // Inputs = [ptr]

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr

	OpNeg // Inputs = [x]

	OpReturn // Inputs = [value]
	OpReturnVoid

	OpCall // Inputs = args, in order

	// Used only before basic-block construction; every instance is rewritten
	// in place during that pass.
	OpIfFalse // Inputs = [a, b], Cc set, Target is an instruction index
	OpGoto    // Target is an instruction index

	// Used only after basic-block construction; targets are the block's
	// declared successors, not stored on the instruction.
	OpBranch // Inputs = [a, b], Cc set
	OpJump
)

var opNames = map[Op]string{
	OpConstant: "Constant", OpParameter: "Parameter", OpAlloc: "Alloc",
	OpStore: "Store", OpLoad: "Load", OpAdd: "Add", OpSub: "Sub", OpMul: "Mul",
	OpDiv: "Div", OpMod: "Mod", OpShl: "Shl", OpShr: "Shr", OpNeg: "Neg",
	OpReturn: "Return", OpReturnVoid: "ReturnVoid", OpCall: "Call",
	OpIfFalse: "IfFalse", OpGoto: "Goto", OpBranch: "Branch", OpJump: "Jump",
}

func (o Op) String() string { return opNames[o] }

// producesValue reports whether the opcode yields a value, governing the
// '%id = ...' vs ' id ...' split in the textual dump.
func (o Op) producesValue() bool {
	switch o {
	case OpStore, OpGoto, OpIfFalse, OpJump, OpBranch, OpReturnVoid, OpReturn:
		return false
	default:
		return true
	}
}

type InstID int
type BlockID int

type Inst struct {
	ID     InstID
	Op     Op
	Inputs []InstID // interpretation is positional, see Op comments above
	Imm    int64    // OpConstant
	Cc     Cc       // OpIfFalse, OpBranch
	Target InstID   // OpIfFalse, OpGoto; meaningless once rewritten to Branch/Jump
	Callee string   // OpCall
}

func (in Inst) text() string {
	switch in.Op {
	case OpConstant:
		return fmt.Sprintf("Constant %d", in.Imm)
	case OpParameter:
		return "Parameter"
	case OpAlloc:
		return "Alloc"
	case OpStore:
		return fmt.Sprintf("Store %%%d at %%%d", in.Inputs[0], in.Inputs[1])
	case OpLoad:
		return fmt.Sprintf("Load %%%d", in.Inputs[0])
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpShl, OpShr:
		return fmt.Sprintf("%s %%%d, %%%d", in.Op, in.Inputs[0], in.Inputs[1])
	case OpNeg:
		return fmt.Sprintf("Neg %%%d", in.Inputs[0])
	case OpReturn:
		return fmt.Sprintf("Return %%%d", in.Inputs[0])
	case OpReturnVoid:
		return "ReturnVoid"
	case OpCall:
		s := fmt.Sprintf("Call %s, args: ", in.Callee)

		for i, a := range in.Inputs {
			if i > 0 {
				s += ", "
			}

			s += fmt.Sprintf("%%%d", a)
		}

		return s
	case OpIfFalse:
		return fmt.Sprintf("IfFalse %%%d %s %%%d, goto %d", in.Inputs[0], in.Cc, in.Inputs[1], in.Target)
	case OpGoto:
		return fmt.Sprintf("Goto %d", in.Target)
	case OpBranch:
		return fmt.Sprintf("Branch %%%d %s %%%d", in.Inputs[0], in.Cc, in.Inputs[1])
	case OpJump:
		return "Jump"
	default:
		return "<bad op>"
	}
}

// dump renders one instruction line without its trailing newline, per
// §4.T's line-shape rule: void opcodes get a leading space and no '%'.
func (in Inst) dump() string {
	if in.Op.producesValue() {
		return fmt.Sprintf("%%%d = %s", in.ID, in.text())
	}

	return fmt.Sprintf(" %d %s", in.ID, in.text())
}

type BasicBlock struct {
	ID    BlockID
	Preds []BlockID
	Succs []BlockID
	Insts []InstID
}

type Function struct {
	Name   string
	Insts  []Inst // index i always holds the instruction with ID i
	Blocks []*BasicBlock
}

func NewFunction(name string) *Function {
	return &Function{Name: name}
}

func (f *Function) Inst(id InstID) *Inst {
	return &f.Insts[id]
}

func (f *Function) createInst(in Inst) InstID {
	in.ID = InstID(len(f.Insts))
	f.Insts = append(f.Insts, in)

	return in.ID
}

func (f *Function) createBlock() BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, &BasicBlock{ID: id})

	return id
}

func (f *Function) appendInst(block BlockID, id InstID) {
	bb := f.Blocks[block]
	bb.Insts = append(bb.Insts, id)
}

// RecomputePredecessors rebuilds every block's Preds as the transpose of
// every block's declared Succs. Idempotent: it clears Preds first.
func (f *Function) RecomputePredecessors() {
	for _, bb := range f.Blocks {
		bb.Preds = nil
	}

	for _, bb := range f.Blocks {
		for _, s := range bb.Succs {
			f.Blocks[s].Preds = append(f.Blocks[s].Preds, bb.ID)
		}
	}
}
