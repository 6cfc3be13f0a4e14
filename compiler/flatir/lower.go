package flatir

import (
	"context"

	"github.com/antonromanov1/ctl/compiler/ast"
	"github.com/antonromanov1/ctl/compiler/diag"
)

const pendingTarget = -1

// arithOps maps the grammar's binary operator spellings to the flat-IR
// opcode that computes them. Comparison operators never reach this map:
// they're consumed directly by lowerCond into an IfFalse's condition code.
var arithOps = map[string]Op{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"<<": OpShl, ">>": OpShr,
}

type lowering struct {
	fn    *Function
	vars  map[string]Var
	count Var

	breaks  [][]int
	curLoop int
}

// Lower builds the flat IR for one function: a linear instruction list
// addressed by absolute index, with variable slots instead of basic
// blocks. If the function declares a return type, v0 is reserved as the
// return slot and parameters are numbered from v1; otherwise parameters
// start at v0.
func Lower(ctx context.Context, fn *ast.Func) (*Function, error) {
	l := &lowering{
		fn:      &Function{Name: fn.Name},
		vars:    map[string]Var{},
		curLoop: -1,
	}

	if fn.HasRet {
		l.count = 1
	}

	for _, p := range fn.Params {
		slot := l.allocSlot()
		l.vars[p.Name] = slot
		l.emit(Inst{Op: OpParameter, Dest: slot})
	}

	if len(fn.Body.Stmts) == 0 {
		return l.fn, nil
	}

	for _, st := range fn.Body.Stmts {
		if err := l.lowerStmt(st); err != nil {
			return nil, err
		}
	}

	if _, ok := fn.Body.Stmts[len(fn.Body.Stmts)-1].(ast.ReturnStmt); !ok {
		l.emit(Inst{Op: OpReturnVoid})
	}

	return l.fn, nil
}

func (l *lowering) allocSlot() Var {
	v := l.count
	l.count++

	return v
}

func (l *lowering) emit(in Inst) int {
	idx := len(l.fn.Insts)
	l.fn.Insts = append(l.fn.Insts, in)

	return idx
}

func (l *lowering) slotOf(name string) (Var, error) {
	v, ok := l.vars[name]
	if !ok {
		return 0, diag.NewInternal("undeclared identifier %q reached flat lowering", name)
	}

	return v, nil
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
		dest := l.allocSlot()
		l.vars[st.Name] = dest

		return l.moveInto(st.Init, dest)

	case ast.AssignStmt:
		dest, err := l.slotOf(st.Name)
		if err != nil {
			return err
		}

		return l.moveInto(st.Rhs, dest)

	case ast.ExprStmt:
		return l.lowerCallStmt(st.X)

	case ast.IfStmt:
		return l.lowerIf(st)

	case ast.WhileStmt:
		return l.lowerWhile(st)

	case ast.BreakStmt:
		if len(l.breaks) == 0 {
			return diag.NewInternal("break outside loop reached flat lowering")
		}

		idx := l.emit(Inst{Op: OpGoto, Target: pendingTarget})
		top := len(l.breaks) - 1
		l.breaks[top] = append(l.breaks[top], idx)

		return nil

	case ast.ContinueStmt:
		if l.curLoop < 0 {
			return diag.NewInternal("continue outside loop reached flat lowering")
		}

		l.emit(Inst{Op: OpGoto, Target: l.curLoop})

		return nil

	case ast.ReturnStmt:
		if st.Value == nil {
			l.emit(Inst{Op: OpReturnVoid})
			return nil
		}

		if err := l.lowerInto(st.Value, 0); err != nil {
			return err
		}

		l.emit(Inst{Op: OpReturn, Op1: 0})

		return nil

	default:
		return diag.NewInternal("unsupported statement %T reached flat lowering", st)
	}
}

// moveInto implements the let/assignment pattern: lower the expression
// into a fresh slot, then Move that slot's value into dest.
func (l *lowering) moveInto(e ast.Expr, dest Var) error {
	src, err := l.lowerExpr(e)
	if err != nil {
		return err
	}

	l.emit(Inst{Op: OpMove, Dest: dest, Src: src})

	return nil
}

// lowerInto makes the top-level value-producing instruction of e write
// directly into dest, with no intermediate temporary or Move. It is used
// only for the value of a return statement, whose result belongs in the
// function's reserved return slot.
func (l *lowering) lowerInto(e ast.Expr, dest Var) error {
	switch e := e.(type) {
	case ast.IntLit:
		l.emit(Inst{Op: OpMoveImm, Dest: dest, Imm: e.Value})
		return nil

	case ast.BoolLit:
		var v int64
		if e.Value {
			v = 1
		}

		l.emit(Inst{Op: OpMoveImm, Dest: dest, Imm: v})

		return nil

	case ast.Ident:
		src, err := l.slotOf(e.Name)
		if err != nil {
			return err
		}

		l.emit(Inst{Op: OpMove, Dest: dest, Src: src})

		return nil

	case ast.BinOp:
		op, ok := arithOps[e.Op]
		if !ok {
			return diag.NewInternal("comparison operator %q reached flat value lowering", e.Op)
		}

		op1, err := l.lowerExpr(e.Left)
		if err != nil {
			return err
		}

		op2, err := l.lowerExpr(e.Right)
		if err != nil {
			return err
		}

		l.emit(Inst{Op: op, Dest: dest, Op1: op1, Op2: op2})

		return nil

	case ast.UnaryNeg:
		x, err := l.lowerExpr(e.X)
		if err != nil {
			return err
		}

		l.emit(Inst{Op: OpNeg, Dest: dest, Op1: x})

		return nil

	case ast.Paren:
		return l.lowerInto(e.X, dest)

	case ast.Call:
		args, err := l.lowerArgs(e.Args)
		if err != nil {
			return err
		}

		l.emit(Inst{Op: OpCall, Dest: dest, HasDest: true, Callee: e.Callee, Args: args})

		return nil

	default:
		return diag.NewInternal("unsupported expression %T reached flat lowering", e)
	}
}

// lowerExpr lowers e into whichever slot holds its value, allocating a
// fresh one for anything but a bare variable read, which reuses the
// variable's own slot with no instruction emitted.
func (l *lowering) lowerExpr(e ast.Expr) (Var, error) {
	switch e := e.(type) {
	case ast.Ident:
		return l.slotOf(e.Name)

	case ast.Paren:
		return l.lowerExpr(e.X)

	default:
		dest := l.allocSlot()
		if err := l.lowerInto(e, dest); err != nil {
			return 0, err
		}

		return dest, nil
	}
}

func (l *lowering) lowerArgs(exprs []ast.Expr) ([]Var, error) {
	args := make([]Var, len(exprs))

	for i, a := range exprs {
		v, err := l.lowerExpr(a)
		if err != nil {
			return nil, err
		}

		args[i] = v
	}

	return args, nil
}

// lowerCallStmt lowers a call used as a statement: its result, if any, is
// discarded and never consumes a slot.
func (l *lowering) lowerCallStmt(e ast.Expr) error {
	call, ok := e.(ast.Call)
	if !ok {
		return diag.NewInternal("non-call expression statement reached flat lowering")
	}

	args, err := l.lowerArgs(call.Args)
	if err != nil {
		return err
	}

	l.emit(Inst{Op: OpCall, Callee: call.Callee, Args: args})

	return nil
}

func (l *lowering) lowerCond(cond ast.Expr) (Var, Var, Cc, error) {
	bin, ok := cond.(ast.BinOp)
	if !ok {
		return 0, 0, CcInvalid, diag.NewInternal("non-comparison condition reached flat lowering")
	}

	cc, ok := CcForOp(bin.Op)
	if !ok {
		return 0, 0, CcInvalid, diag.NewInternal("non-comparison operator %q reached flat lowering", bin.Op)
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

func (l *lowering) lowerIf(st ast.IfStmt) error {
	op1, op2, cc, err := l.lowerCond(st.Cond)
	if err != nil {
		return err
	}

	ifIdx := l.emit(Inst{Op: OpIfFalse, Op1: op1, Op2: op2, Cc: cc, Target: pendingTarget})

	if err := l.lowerBlock(st.Then); err != nil {
		return err
	}

	ifTarget := len(l.fn.Insts)

	if st.Else != nil {
		gotoIdx := l.emit(Inst{Op: OpGoto, Target: pendingTarget})
		ifTarget++

		if err := l.lowerBlock(st.Else); err != nil {
			return err
		}

		l.fn.Insts[gotoIdx].Target = len(l.fn.Insts)
	}

	l.fn.Insts[ifIdx].Target = ifTarget

	return nil
}

func (l *lowering) lowerWhile(st ast.WhileStmt) error {
	if lit, ok := st.Cond.(ast.BoolLit); ok && lit.Value {
		return l.lowerInfiniteLoop(st.Body)
	}

	l.breaks = append(l.breaks, nil)

	op1, op2, cc, err := l.lowerCond(st.Cond)
	if err != nil {
		return err
	}

	ifIdx := l.emit(Inst{Op: OpIfFalse, Op1: op1, Op2: op2, Cc: cc, Target: pendingTarget})

	oldLoop := l.curLoop
	l.curLoop = ifIdx

	if err := l.lowerBlock(st.Body); err != nil {
		return err
	}

	l.emit(Inst{Op: OpGoto, Target: ifIdx})

	exit := len(l.fn.Insts)
	l.fn.Insts[ifIdx].Target = exit
	l.patchBreaks(exit)

	l.curLoop = oldLoop

	return nil
}

func (l *lowering) lowerInfiniteLoop(body *ast.Block) error {
	l.breaks = append(l.breaks, nil)

	head := len(l.fn.Insts)

	oldLoop := l.curLoop
	l.curLoop = head

	if err := l.lowerBlock(body); err != nil {
		return err
	}

	l.emit(Inst{Op: OpGoto, Target: head})
	l.patchBreaks(len(l.fn.Insts))

	l.curLoop = oldLoop

	return nil
}

func (l *lowering) patchBreaks(target int) {
	top := len(l.breaks) - 1

	for _, idx := range l.breaks[top] {
		l.fn.Insts[idx].Target = target
	}

	l.breaks = l.breaks[:top]
}
