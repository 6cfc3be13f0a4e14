// Package analyze performs the single semantic resolution pass over a parsed
// unit: name uniqueness, declared-before-use, break/continue placement,
// return shape, condition shape, and call arity.
package analyze

import (
	"context"
	"fmt"
	"reflect"

	"tlog.app/go/tlog"

	"github.com/antonromanov1/ctl/compiler/ast"
	"github.com/antonromanov1/ctl/compiler/diag"
)

type funcSig struct {
	nparams int
	hasRet  bool
}

// UnsupportedASTNodeError is raised when the analyzer meets an ast.Node or
// ast.Expr type it has no case for; reaching it is a bug in the parser, not
// in the source program.
type UnsupportedASTNodeError struct{ X ast.Node }

func (e UnsupportedASTNodeError) Error() string {
	return fmt.Sprintf("unsupported node: %v", reflect.TypeOf(e.X))
}

// Analyze validates a unit. text is the same byte slice the unit was parsed
// from, used only to translate byte offsets into line/column for
// diagnostics. Functions may call other functions defined later in the same
// unit: signatures are collected before any function body is checked.
func Analyze(ctx context.Context, file string, text []byte, u *ast.Unit) error {
	a := &analyzer{file: file, text: text, sigs: make(map[string]funcSig, len(u.Funcs))}

	for _, f := range u.Funcs {
		if _, dup := a.sigs[f.Name]; dup {
			return diag.SemanticError{Pos: a.posOf(f.Pos), Msg: fmt.Sprintf("duplicate function name %q", f.Name)}
		}

		a.sigs[f.Name] = funcSig{nparams: len(f.Params), hasRet: f.HasRet}
	}

	for _, f := range u.Funcs {
		if err := a.analyzeFunc(f); err != nil {
			return err
		}
	}

	tlog.SpanFromContext(ctx).Printw("analyzed unit", "funcs", len(u.Funcs))

	return nil
}

type analyzer struct {
	file string
	text []byte
	sigs map[string]funcSig
}

func (a *analyzer) posOf(off int) diag.Pos {
	line, col := 1, 1

	for i := 0; i < off && i < len(a.text); i++ {
		if a.text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return diag.Pos{File: a.file, Line: line, Col: col}
}

func (a *analyzer) analyzeFunc(f *ast.Func) error {
	declared := make(map[string]bool, len(f.Params))

	for _, p := range f.Params {
		if declared[p.Name] {
			return diag.SemanticError{Pos: a.posOf(p.Pos), Msg: fmt.Sprintf("duplicate parameter name %q", p.Name)}
		}

		declared[p.Name] = true
	}

	return a.analyzeTopLevel(f, declared)
}

// analyzeTopLevel walks the function's own block, the only place a LetStmt
// is allowed; declared grows as each local is reached.
func (a *analyzer) analyzeTopLevel(f *ast.Func, declared map[string]bool) error {
	for _, st := range f.Body.Stmts {
		if let, ok := st.(ast.LetStmt); ok {
			if err := a.analyzeExpr(let.Init, declared); err != nil {
				return err
			}

			if declared[let.Name] {
				return diag.SemanticError{Pos: a.posOf(let.Pos), Msg: fmt.Sprintf("duplicate local name %q", let.Name)}
			}

			declared[let.Name] = true

			continue
		}

		if err := a.analyzeStmt(st, declared, 0, f); err != nil {
			return err
		}
	}

	return nil
}

// analyzeBlock walks a nested block (an if/while body); a LetStmt here is a
// semantic error because locals may only appear at function top level.
func (a *analyzer) analyzeBlock(b *ast.Block, declared map[string]bool, loopDepth int, f *ast.Func) error {
	for _, st := range b.Stmts {
		if let, ok := st.(ast.LetStmt); ok {
			return diag.SemanticError{Pos: a.posOf(let.Pos), Msg: "local declaration outside the top-level block of a function body"}
		}

		if err := a.analyzeStmt(st, declared, loopDepth, f); err != nil {
			return err
		}
	}

	return nil
}

func (a *analyzer) analyzeStmt(st ast.Stmt, declared map[string]bool, loopDepth int, f *ast.Func) error {
	switch st := st.(type) {
	case ast.AssignStmt:
		if !declared[st.Name] {
			return diag.SemanticError{Pos: a.posOf(st.Pos), Msg: fmt.Sprintf("undeclared identifier %q", st.Name)}
		}

		return a.analyzeExpr(st.Rhs, declared)

	case ast.ExprStmt:
		return a.analyzeExpr(st.X, declared)

	case ast.IfStmt:
		if err := a.requireComparison(st.Cond); err != nil {
			return err
		}

		if err := a.analyzeExpr(st.Cond, declared); err != nil {
			return err
		}

		if err := a.analyzeBlock(st.Then, declared, loopDepth, f); err != nil {
			return err
		}

		if st.Else != nil {
			return a.analyzeBlock(st.Else, declared, loopDepth, f)
		}

		return nil

	case ast.WhileStmt:
		if lit, ok := st.Cond.(ast.BoolLit); !ok || !lit.Value {
			if err := a.requireComparison(st.Cond); err != nil {
				return err
			}
		}

		if err := a.analyzeExpr(st.Cond, declared); err != nil {
			return err
		}

		return a.analyzeBlock(st.Body, declared, loopDepth+1, f)

	case ast.BreakStmt:
		if loopDepth == 0 {
			return diag.SemanticError{Pos: a.posOf(st.Pos), Msg: "'break' outside a loop"}
		}

		return nil

	case ast.ContinueStmt:
		if loopDepth == 0 {
			return diag.SemanticError{Pos: a.posOf(st.Pos), Msg: "'continue' outside a loop"}
		}

		return nil

	case ast.ReturnStmt:
		if st.Value == nil {
			if f.HasRet {
				return diag.SemanticError{Pos: a.posOf(st.Pos), Msg: "'return' without a value in a function declaring a return type"}
			}

			return nil
		}

		if !f.HasRet {
			return diag.SemanticError{Pos: a.posOf(st.Pos), Msg: "'return' with a value in a function without a return type"}
		}

		return a.analyzeExpr(st.Value, declared)

	default:
		return UnsupportedASTNodeError{X: st}
	}
}

var cmpOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

// while(true) degenerates per §4.F rule 6 and is exempt from the
// comparison-only condition rule; every other condition must be a
// comparison because the IR has no first-class boolean value.
func (a *analyzer) requireComparison(cond ast.Expr) error {
	bin, ok := cond.(ast.BinOp)
	if !ok || !cmpOps[bin.Op] {
		return diag.SemanticError{Pos: a.posOf(posOfExpr(cond)), Msg: "condition must be a comparison"}
	}

	return nil
}

func (a *analyzer) analyzeExpr(e ast.Expr, declared map[string]bool) error {
	switch e := e.(type) {
	case ast.IntLit, ast.BoolLit:
		return nil

	case ast.Ident:
		if !declared[e.Name] {
			return diag.SemanticError{Pos: a.posOf(e.Pos), Msg: fmt.Sprintf("undeclared identifier %q", e.Name)}
		}

		return nil

	case ast.BinOp:
		if err := a.analyzeExpr(e.Left, declared); err != nil {
			return err
		}

		return a.analyzeExpr(e.Right, declared)

	case ast.UnaryNeg:
		return a.analyzeExpr(e.X, declared)

	case ast.Paren:
		return a.analyzeExpr(e.X, declared)

	case ast.Call:
		if sig, ok := a.sigs[e.Callee]; ok && sig.nparams != len(e.Args) {
			return diag.SemanticError{
				Pos: a.posOf(e.Pos),
				Msg: fmt.Sprintf("%q expects %d argument(s), got %d", e.Callee, sig.nparams, len(e.Args)),
			}
		}

		for _, arg := range e.Args {
			if err := a.analyzeExpr(arg, declared); err != nil {
				return err
			}
		}

		return nil

	default:
		return UnsupportedASTNodeError{X: e}
	}
}

func posOfExpr(e ast.Expr) int {
	switch e := e.(type) {
	case ast.BinOp:
		return e.Pos
	case ast.Ident:
		return e.Pos
	case ast.IntLit:
		return e.Pos
	case ast.BoolLit:
		return e.Pos
	case ast.Call:
		return e.Pos
	case ast.Paren:
		return e.Pos
	case ast.UnaryNeg:
		return e.Pos
	default:
		return 0
	}
}
