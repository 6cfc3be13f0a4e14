package ir

import (
	"context"
	"sort"

	"tlog.app/go/tlog"

	"github.com/antonromanov1/ctl/compiler/ast"
	"github.com/antonromanov1/ctl/compiler/diag"
)

// pendingTarget marks a branch target not yet known; every use is patched
// before Lower returns.
const pendingTarget InstID = -1

// lowering holds the state threaded through one function's linear emission
// pass: which name maps to which Parameter or Alloc instruction, and the
// break/continue bookkeeping for the loop currently being lowered.
type lowering struct {
	fn      *Function
	params  map[string]InstID
	vars    map[string]InstID
	breaks  [][]InstID
	curLoop InstID
}

// Lower builds the graph IR for one function. It first emits a flat sequence
// of Alloc/Load/Store/arithmetic/IfFalse/Goto instructions by walking the
// AST once, patching branch targets as blocks close, then partitions that
// sequence into basic blocks and rewrites IfFalse/Goto in place into
// Branch/Jump with successors recorded on the block.
func Lower(ctx context.Context, fn *ast.Func) (*Function, error) {
	l := &lowering{
		fn:     NewFunction(fn.Name),
		params: make(map[string]InstID, len(fn.Params)),
		vars:   make(map[string]InstID),
	}

	for _, p := range fn.Params {
		id := l.fn.createInst(Inst{Op: OpParameter})
		l.params[p.Name] = id
	}

	for _, st := range fn.Body.Stmts {
		if err := l.lowerStmt(st); err != nil {
			return nil, err
		}
	}

	if len(fn.Body.Stmts) == 0 {
		l.fn.createInst(Inst{Op: OpReturnVoid})
	} else if _, ok := fn.Body.Stmts[len(fn.Body.Stmts)-1].(ast.ReturnStmt); !ok {
		l.fn.createInst(Inst{Op: OpReturnVoid})
	}

	buildBlocks(l.fn)
	l.fn.RecomputePredecessors()

	tlog.SpanFromContext(ctx).Printw("lowered function to graph ir",
		"func", fn.Name, "insts", len(l.fn.Insts), "blocks", len(l.fn.Blocks))

	return l.fn, nil
}

func (l *lowering) lowerBlock(b *ast.Block) error {
	for _, st := range b.Stmts {
		if err := l.lowerStmt(st); err != nil {
			return err
		}
	}

	return nil
}

func (l *lowering) lowerStmt(st ast.Stmt) error {
	switch st := st.(type) {
	case ast.LetStmt:
		id := l.fn.createInst(Inst{Op: OpAlloc})
		l.vars[st.Name] = id

		src, err := l.lowerExpr(st.Init)
		if err != nil {
			return err
		}

		l.fn.createInst(Inst{Op: OpStore, Inputs: []InstID{src, id}})

		return nil

	case ast.AssignStmt:
		dest, ok := l.vars[st.Name]
		if !ok {
			return diag.NewInternal("assignment to undeclared local %q reached lowering", st.Name)
		}

		src, err := l.lowerExpr(st.Rhs)
		if err != nil {
			return err
		}

		l.fn.createInst(Inst{Op: OpStore, Inputs: []InstID{src, dest}})

		return nil

	case ast.ExprStmt:
		_, err := l.lowerExpr(st.X)
		return err

	case ast.IfStmt:
		return l.lowerIf(st)

	case ast.WhileStmt:
		return l.lowerWhile(st)

	case ast.BreakStmt:
		if len(l.breaks) == 0 {
			return diag.NewInternal("'break' outside a loop reached lowering")
		}

		id := l.fn.createInst(Inst{Op: OpGoto, Target: pendingTarget})
		top := len(l.breaks) - 1
		l.breaks[top] = append(l.breaks[top], id)

		return nil

	case ast.ContinueStmt:
		l.fn.createInst(Inst{Op: OpGoto, Target: l.curLoop})
		return nil

	case ast.ReturnStmt:
		if st.Value == nil {
			l.fn.createInst(Inst{Op: OpReturnVoid})
			return nil
		}

		v, err := l.lowerExpr(st.Value)
		if err != nil {
			return err
		}

		l.fn.createInst(Inst{Op: OpReturn, Inputs: []InstID{v}})

		return nil

	default:
		return diag.NewInternal("unsupported statement reached lowering: %T", st)
	}
}

// lowerIf follows the branch-patching shape documented in §4.G: the IfFalse
// created before the true block is patched once the true block (and, if
// present, a Goto past the false block) has been emitted.
//
//	0 IfFalse cond, goto 3
//	1 block
//	2 Goto 4
//	3 alter block
//	4 next instruction
func (l *lowering) lowerIf(st ast.IfStmt) error {
	op1, op2, cc, err := l.lowerCond(st.Cond)
	if err != nil {
		return err
	}

	ifIndex := l.fn.createInst(Inst{Op: OpIfFalse, Inputs: []InstID{op1, op2}, Cc: cc, Target: pendingTarget})

	if err := l.lowerBlock(st.Then); err != nil {
		return err
	}

	ifTarget := InstID(len(l.fn.Insts))

	if st.Else != nil {
		gotoIndex := l.fn.createInst(Inst{Op: OpGoto, Target: pendingTarget})
		ifTarget++

		if err := l.lowerBlock(st.Else); err != nil {
			return err
		}

		l.fn.Insts[gotoIndex].Target = InstID(len(l.fn.Insts))
	}

	l.fn.Insts[ifIndex].Target = ifTarget

	return nil
}

// lowerWhile follows §4.G: the loop head is the first instruction of the
// condition, so `continue` and the back edge go there and the condition's
// operands are re-fetched from their Alloc slots on the next iteration.
//
//	0 IfFalse cond, goto 2
//	1 block
//	  Goto 0
//	2 next instruction
func (l *lowering) lowerWhile(st ast.WhileStmt) error {
	if lit, ok := st.Cond.(ast.BoolLit); ok && lit.Value {
		return l.lowerInfiniteLoop(st.Body)
	}

	l.breaks = append(l.breaks, nil)

	head := InstID(len(l.fn.Insts))

	op1, op2, cc, err := l.lowerCond(st.Cond)
	if err != nil {
		return err
	}

	ifIndex := l.fn.createInst(Inst{Op: OpIfFalse, Inputs: []InstID{op1, op2}, Cc: cc, Target: pendingTarget})

	oldLoop := l.curLoop
	l.curLoop = head

	if err := l.lowerBlock(st.Body); err != nil {
		return err
	}

	l.fn.createInst(Inst{Op: OpGoto, Target: head})

	ifTarget := InstID(len(l.fn.Insts))
	l.fn.Insts[ifIndex].Target = ifTarget

	l.patchBreaks(ifTarget)
	l.curLoop = oldLoop

	return nil
}

func (l *lowering) lowerInfiniteLoop(body *ast.Block) error {
	l.breaks = append(l.breaks, nil)

	loopBegin := InstID(len(l.fn.Insts))
	oldLoop := l.curLoop
	l.curLoop = loopBegin

	if err := l.lowerBlock(body); err != nil {
		return err
	}

	l.fn.createInst(Inst{Op: OpGoto, Target: loopBegin})

	l.patchBreaks(InstID(len(l.fn.Insts)))
	l.curLoop = oldLoop

	return nil
}

func (l *lowering) patchBreaks(target InstID) {
	top := len(l.breaks) - 1
	for _, id := range l.breaks[top] {
		l.fn.Insts[id].Target = target
	}

	l.breaks = l.breaks[:top]
}

func (l *lowering) lowerCond(cond ast.Expr) (InstID, InstID, Cc, error) {
	bin, ok := cond.(ast.BinOp)
	if !ok {
		return 0, 0, CcInvalid, diag.NewInternal("non-comparison condition reached lowering")
	}

	cc, ok := CcForOp(bin.Op)
	if !ok {
		return 0, 0, CcInvalid, diag.NewInternal("non-comparison operator %q reached lowering", bin.Op)
	}

	op1, err := l.lowerExpr(bin.Left)
	if err != nil {
		return 0, 0, CcInvalid, err
	}

	op2, err := l.lowerExpr(bin.Right)
	if err != nil {
		return 0, 0, CcInvalid, err
	}

	return op1, op2, cc, nil
}

var arithOps = map[string]Op{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"<<": OpShl, ">>": OpShr,
}

func (l *lowering) lowerExpr(e ast.Expr) (InstID, error) {
	switch e := e.(type) {
	case ast.IntLit:
		return l.fn.createInst(Inst{Op: OpConstant, Imm: e.Value}), nil

	case ast.BoolLit:
		var v int64
		if e.Value {
			v = 1
		}

		return l.fn.createInst(Inst{Op: OpConstant, Imm: v}), nil

	case ast.Ident:
		if id, ok := l.params[e.Name]; ok {
			return id, nil
		}

		if id, ok := l.vars[e.Name]; ok {
			return l.fn.createInst(Inst{Op: OpLoad, Inputs: []InstID{id}}), nil
		}

		return 0, diag.NewInternal("undeclared identifier %q reached lowering", e.Name)

	case ast.BinOp:
		op, ok := arithOps[e.Op]
		if !ok {
			return 0, diag.NewInternal("comparison operator %q reached value lowering", e.Op)
		}

		left, err := l.lowerExpr(e.Left)
		if err != nil {
			return 0, err
		}

		right, err := l.lowerExpr(e.Right)
		if err != nil {
			return 0, err
		}

		return l.fn.createInst(Inst{Op: op, Inputs: []InstID{left, right}}), nil

	case ast.UnaryNeg:
		x, err := l.lowerExpr(e.X)
		if err != nil {
			return 0, err
		}

		return l.fn.createInst(Inst{Op: OpNeg, Inputs: []InstID{x}}), nil

	case ast.Paren:
		return l.lowerExpr(e.X)

	case ast.Call:
		args := make([]InstID, len(e.Args))

		for i, a := range e.Args {
			v, err := l.lowerExpr(a)
			if err != nil {
				return 0, err
			}

			args[i] = v
		}

		return l.fn.createInst(Inst{Op: OpCall, Inputs: args, Callee: e.Callee}), nil

	default:
		return 0, diag.NewInternal("unsupported expression reached lowering: %T", e)
	}
}

// buildBlocks partitions fn.Insts into basic blocks using the leader
// algorithm: instruction 0, every branch target, and every instruction
// immediately following a branch start a new block. It then rewrites each
// block's IfFalse/Goto terminator into Branch/Jump with successors recorded
// on the block, synthesizing a trailing Jump for a block that fell through
// without a terminator. The function's last block is never touched.
func buildBlocks(f *Function) {
	leaders := findLeaders(f.Insts)

	for i := 0; i < len(leaders)-1; i++ {
		bb := f.createBlock()
		for id := leaders[i]; id < leaders[i+1]; id++ {
			f.appendInst(bb, InstID(id))
		}
	}

	last := f.createBlock()
	for id := leaders[len(leaders)-1]; id < len(f.Insts); id++ {
		f.appendInst(last, InstID(id))
	}

	blockOf := make([]BlockID, len(f.Insts))
	for _, bb := range f.Blocks {
		for _, id := range bb.Insts {
			blockOf[id] = bb.ID
		}
	}

	for cur := 0; cur < len(f.Blocks)-1; cur++ {
		bb := f.Blocks[cur]
		lastID := bb.Insts[len(bb.Insts)-1]
		in := f.Inst(lastID)

		switch in.Op {
		case OpIfFalse:
			target := blockOf[in.Target]
			bb.Succs = append(bb.Succs, BlockID(cur+1), target)
			in.Op = OpBranch
			in.Target = 0

		case OpGoto:
			target := blockOf[in.Target]
			bb.Succs = append(bb.Succs, target)
			in.Op = OpJump
			in.Target = 0

		case OpReturn, OpReturnVoid:
			// already terminated; no successors

		default:
			bb.Succs = append(bb.Succs, BlockID(cur+1))
			jump := f.createInst(Inst{Op: OpJump})
			f.appendInst(bb.ID, jump)
		}
	}
}

func findLeaders(insts []Inst) []int {
	set := map[int]bool{0: true}

	for i, in := range insts {
		if in.Op == OpIfFalse || in.Op == OpGoto {
			set[int(in.Target)] = true
			set[i+1] = true
		}
	}

	leaders := make([]int, 0, len(set))
	for l := range set {
		leaders = append(leaders, l)
	}

	sort.Ints(leaders)

	return leaders
}
