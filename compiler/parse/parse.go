// Package parse implements the recursive-descent parser: token stream to
// AST for one compilation unit. It performs no semantic checks beyond what
// the grammar itself enforces; see compiler/analyze for everything else.
package parse

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/antonromanov1/ctl/compiler/ast"
	"github.com/antonromanov1/ctl/compiler/diag"
	"github.com/antonromanov1/ctl/compiler/lex"
	"github.com/antonromanov1/ctl/compiler/tp"
)

type Parser struct {
	file string
	lx   *lex.Lexer

	cur  lex.Token
	next lex.Token
}

func ParseFile(ctx context.Context, name string) (*ast.Unit, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Parse(ctx, name, text)
}

func Parse(ctx context.Context, name string, text []byte) (*ast.Unit, error) {
	p := New(name, text)

	u, err := p.ParseUnit(ctx)
	if err != nil {
		return nil, err
	}

	tlog.SpanFromContext(ctx).Printw("parsed unit", "funcs", len(u.Funcs))

	return u, nil
}

func New(name string, text []byte) *Parser {
	p := &Parser{file: name, lx: lex.New(name, text)}

	return p
}

// ParseUnit primes the token cursor and parses 'function*' to EOF.
func (p *Parser) ParseUnit(ctx context.Context) (*ast.Unit, error) {
	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	u := &ast.Unit{}

	for p.cur.Kind != lex.EOF {
		f, err := p.parseFunc(ctx)
		if err != nil {
			return nil, err
		}

		u.Funcs = append(u.Funcs, f)
	}

	return u, nil
}

// advance shifts p.next into p.cur and lexes a fresh p.next.
func (p *Parser) advance(ctx context.Context) error {
	p.cur = p.next

	tok, err := p.lx.Next(ctx)
	if err != nil {
		return err
	}

	p.next = tok

	return nil
}

func (p *Parser) expect(ctx context.Context, k lex.Kind, what string) (lex.Token, error) {
	if p.cur.Kind != k {
		return lex.Token{}, p.unexpected(what)
	}

	tok := p.cur

	return tok, p.advance(ctx)
}

func (p *Parser) unexpected(want string) error {
	return diag.ParseError{
		Pos:  p.lx.PosOf(p.cur.Pos),
		Msg:  "unexpected token",
		Want: want,
		Got:  p.cur.Kind.String(),
	}
}

func (p *Parser) parseFunc(ctx context.Context) (*ast.Func, error) {
	start := p.cur.Pos

	if _, err := p.expect(ctx, lex.KwFn, "'fn'"); err != nil {
		return nil, err
	}

	name, err := p.expect(ctx, lex.Ident, "function name")
	if err != nil {
		return nil, err
	}

	params, err := p.parseParams(ctx)
	if err != nil {
		return nil, err
	}

	hasRet := false

	if p.cur.Kind == lex.Arrow {
		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		if _, err := p.parseType(ctx); err != nil {
			return nil, err
		}

		hasRet = true
	}

	body, err := p.parseBlock(ctx)
	if err != nil {
		return nil, err
	}

	return &ast.Func{
		Base:   ast.Base{Pos: start, End: body.End},
		Name:   name.Text,
		Params: params,
		HasRet: hasRet,
		Body:   body,
	}, nil
}

func (p *Parser) parseParams(ctx context.Context) ([]ast.Param, error) {
	if _, err := p.expect(ctx, lex.LParen, "'('"); err != nil {
		return nil, err
	}

	var params []ast.Param

	for p.cur.Kind != lex.RParen {
		if len(params) > 0 {
			if _, err := p.expect(ctx, lex.Comma, "','"); err != nil {
				return nil, err
			}
		}

		name, err := p.expect(ctx, lex.Ident, "parameter name")
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(ctx, lex.Colon, "':'"); err != nil {
			return nil, err
		}

		if _, err := p.parseType(ctx); err != nil {
			return nil, err
		}

		params = append(params, ast.Param{
			Base: ast.Base{Pos: name.Pos, End: name.End},
			Name: name.Text,
		})
	}

	return params, p.advance(ctx)
}

// parseType accepts exactly the one nominal type this language has,
// spelled as an identifier by the lexer.
func (p *Parser) parseType(ctx context.Context) (tp.Type, error) {
	tok, err := p.expect(ctx, lex.Ident, "type")
	if err != nil {
		return nil, err
	}

	if tok.Text != tp.I64.String() {
		return nil, diag.ParseError{Pos: p.lx.PosOf(tok.Pos), Msg: "unknown type", Want: "'" + tp.I64.String() + "'", Got: tok.Text}
	}

	return tp.I64, nil
}

func (p *Parser) parseBlock(ctx context.Context) (*ast.Block, error) {
	start := p.cur.Pos

	if _, err := p.expect(ctx, lex.LBrace, "'{'"); err != nil {
		return nil, err
	}

	b := &ast.Block{Base: ast.Base{Pos: start}}

	for p.cur.Kind != lex.RBrace {
		st, err := p.parseStmt(ctx)
		if err != nil {
			return nil, err
		}

		b.Stmts = append(b.Stmts, st)
	}

	end := p.cur.End

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	b.End = end

	return b, nil
}

func (p *Parser) parseStmt(ctx context.Context) (ast.Stmt, error) {
	switch p.cur.Kind {
	case lex.KwLet:
		return p.parseLet(ctx)
	case lex.KwIf:
		return p.parseIf(ctx)
	case lex.KwWhile:
		return p.parseWhile(ctx)
	case lex.KwBreak:
		return p.parseSimpleKeywordStmt(ctx, func(b ast.Base) ast.Stmt { return ast.BreakStmt{Base: b} })
	case lex.KwContinue:
		return p.parseSimpleKeywordStmt(ctx, func(b ast.Base) ast.Stmt { return ast.ContinueStmt{Base: b} })
	case lex.KwReturn:
		return p.parseReturn(ctx)
	case lex.Ident:
		if p.next.Kind == lex.Assign {
			return p.parseAssign(ctx)
		}

		return p.parseCallStmt(ctx)
	default:
		return nil, p.unexpected("statement")
	}
}

func (p *Parser) parseSimpleKeywordStmt(ctx context.Context, mk func(ast.Base) ast.Stmt) (ast.Stmt, error) {
	start := p.cur.Pos

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	end := p.cur.End

	if _, err := p.expect(ctx, lex.Semi, "';'"); err != nil {
		return nil, err
	}

	return mk(ast.Base{Pos: start, End: end}), nil
}

func (p *Parser) parseLet(ctx context.Context) (ast.Stmt, error) {
	start := p.cur.Pos

	if _, err := p.expect(ctx, lex.KwLet, "'let'"); err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.KwMut, "'mut'"); err != nil {
		return nil, err
	}

	name, err := p.expect(ctx, lex.Ident, "local name")
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.Colon, "':'"); err != nil {
		return nil, err
	}

	if _, err := p.parseType(ctx); err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.Assign, "'='"); err != nil {
		return nil, err
	}

	init, err := p.parseExpr(ctx)
	if err != nil {
		return nil, err
	}

	end := p.cur.End

	if _, err := p.expect(ctx, lex.Semi, "';'"); err != nil {
		return nil, err
	}

	return ast.LetStmt{
		Base: ast.Base{Pos: start, End: end},
		Name: name.Text,
		Init: init,
	}, nil
}

func (p *Parser) parseAssign(ctx context.Context) (ast.Stmt, error) {
	name, err := p.expect(ctx, lex.Ident, "identifier")
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.Assign, "'='"); err != nil {
		return nil, err
	}

	rhs, err := p.parseExpr(ctx)
	if err != nil {
		return nil, err
	}

	end := p.cur.End

	if _, err := p.expect(ctx, lex.Semi, "';'"); err != nil {
		return nil, err
	}

	return ast.AssignStmt{
		Base: ast.Base{Pos: name.Pos, End: end},
		Name: name.Text,
		Rhs:  rhs,
	}, nil
}

// parseCallStmt parses the one allowed expression-statement form: a call.
func (p *Parser) parseCallStmt(ctx context.Context) (ast.Stmt, error) {
	start := p.cur.Pos

	call, err := p.parseCall(ctx)
	if err != nil {
		return nil, err
	}

	end := p.cur.End

	if _, err := p.expect(ctx, lex.Semi, "';'"); err != nil {
		return nil, err
	}

	return ast.ExprStmt{Base: ast.Base{Pos: start, End: end}, X: call}, nil
}

func (p *Parser) parseIf(ctx context.Context) (ast.Stmt, error) {
	start := p.cur.Pos

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.LParen, "'('"); err != nil {
		return nil, err
	}

	cond, err := p.parseExpr(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.RParen, "')'"); err != nil {
		return nil, err
	}

	then, err := p.parseBlock(ctx)
	if err != nil {
		return nil, err
	}

	var els *ast.Block
	end := then.End

	if p.cur.Kind == lex.KwElse {
		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		els, err = p.parseBlock(ctx)
		if err != nil {
			return nil, err
		}

		end = els.End
	}

	return ast.IfStmt{
		Base: ast.Base{Pos: start, End: end},
		Cond: cond,
		Then: then,
		Else: els,
	}, nil
}

func (p *Parser) parseWhile(ctx context.Context) (ast.Stmt, error) {
	start := p.cur.Pos

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.LParen, "'('"); err != nil {
		return nil, err
	}

	cond, err := p.parseExpr(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.RParen, "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock(ctx)
	if err != nil {
		return nil, err
	}

	return ast.WhileStmt{
		Base: ast.Base{Pos: start, End: body.End},
		Cond: cond,
		Body: body,
	}, nil
}

func (p *Parser) parseReturn(ctx context.Context) (ast.Stmt, error) {
	start := p.cur.Pos

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	var val ast.Expr

	if p.cur.Kind != lex.Semi {
		v, err := p.parseExpr(ctx)
		if err != nil {
			return nil, err
		}

		val = v
	}

	end := p.cur.End

	if _, err := p.expect(ctx, lex.Semi, "';'"); err != nil {
		return nil, err
	}

	return ast.ReturnStmt{Base: ast.Base{Pos: start, End: end}, Value: val}, nil
}

// Expression grammar, low to high precedence:
//
//	expr  := cmp
//	cmp   := shift (cmpOp shift)?      -- non-associative
//	shift := add (shiftOp add)*        -- binds looser than +/-, tighter than comparisons
//	add   := mul (addOp mul)*
//	mul   := unary (mulOp unary)*
//	unary := '-'? primary
func (p *Parser) parseExpr(ctx context.Context) (ast.Expr, error) {
	return p.parseCmp(ctx)
}

var cmpOps = map[lex.Kind]string{
	lex.Eq: "==", lex.Ne: "!=", lex.Lt: "<", lex.Le: "<=", lex.Gt: ">", lex.Ge: ">=",
}

func (p *Parser) parseCmp(ctx context.Context) (ast.Expr, error) {
	left, err := p.parseShift(ctx)
	if err != nil {
		return nil, err
	}

	op, ok := cmpOps[p.cur.Kind]
	if !ok {
		return left, nil
	}

	pos := p.cur.Pos

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	right, err := p.parseShift(ctx)
	if err != nil {
		return nil, err
	}

	return ast.BinOp{Base: ast.Base{Pos: pos}, Op: op, Left: left, Right: right}, nil
}

var shiftOps = map[lex.Kind]string{lex.Shl: "<<", lex.Shr: ">>"}

func (p *Parser) parseShift(ctx context.Context) (ast.Expr, error) {
	left, err := p.parseAdd(ctx)
	if err != nil {
		return nil, err
	}

	for {
		op, ok := shiftOps[p.cur.Kind]
		if !ok {
			return left, nil
		}

		pos := p.cur.Pos

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		right, err := p.parseAdd(ctx)
		if err != nil {
			return nil, err
		}

		left = ast.BinOp{Base: ast.Base{Pos: pos}, Op: op, Left: left, Right: right}
	}
}

var addOps = map[lex.Kind]string{lex.Plus: "+", lex.Minus: "-"}

func (p *Parser) parseAdd(ctx context.Context) (ast.Expr, error) {
	left, err := p.parseMul(ctx)
	if err != nil {
		return nil, err
	}

	for {
		op, ok := addOps[p.cur.Kind]
		if !ok {
			return left, nil
		}

		pos := p.cur.Pos

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		right, err := p.parseMul(ctx)
		if err != nil {
			return nil, err
		}

		left = ast.BinOp{Base: ast.Base{Pos: pos}, Op: op, Left: left, Right: right}
	}
}

var mulOps = map[lex.Kind]string{lex.Star: "*", lex.Slash: "/", lex.Percent: "%"}

func (p *Parser) parseMul(ctx context.Context) (ast.Expr, error) {
	left, err := p.parseUnary(ctx)
	if err != nil {
		return nil, err
	}

	for {
		op, ok := mulOps[p.cur.Kind]
		if !ok {
			return left, nil
		}

		pos := p.cur.Pos

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		right, err := p.parseUnary(ctx)
		if err != nil {
			return nil, err
		}

		left = ast.BinOp{Base: ast.Base{Pos: pos}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary(ctx context.Context) (ast.Expr, error) {
	if p.cur.Kind == lex.Minus {
		pos := p.cur.Pos

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		x, err := p.parsePrimary(ctx)
		if err != nil {
			return nil, err
		}

		return ast.UnaryNeg{Base: ast.Base{Pos: pos}, X: x}, nil
	}

	return p.parsePrimary(ctx)
}

func (p *Parser) parsePrimary(ctx context.Context) (ast.Expr, error) {
	switch p.cur.Kind {
	case lex.Int:
		tok := p.cur

		v, err := parseIntLiteral(tok.Text)
		if err != nil {
			return nil, diag.ParseError{Pos: p.lx.PosOf(tok.Pos), Msg: err.Error()}
		}

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		return ast.IntLit{Base: ast.Base{Pos: tok.Pos, End: tok.End}, Value: v}, nil

	case lex.KwTrue, lex.KwFalse:
		tok := p.cur

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		return ast.BoolLit{Base: ast.Base{Pos: tok.Pos, End: tok.End}, Value: tok.Kind == lex.KwTrue}, nil

	case lex.Ident:
		if p.next.Kind == lex.LParen {
			return p.parseCall(ctx)
		}

		tok := p.cur

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		return ast.Ident{Base: ast.Base{Pos: tok.Pos, End: tok.End}, Name: tok.Text}, nil

	case lex.LParen:
		start := p.cur.Pos

		if err := p.advance(ctx); err != nil {
			return nil, err
		}

		x, err := p.parseExpr(ctx)
		if err != nil {
			return nil, err
		}

		end := p.cur.End

		if _, err := p.expect(ctx, lex.RParen, "')'"); err != nil {
			return nil, err
		}

		return ast.Paren{Base: ast.Base{Pos: start, End: end}, X: x}, nil

	default:
		return nil, p.unexpected("expression")
	}
}

func (p *Parser) parseCall(ctx context.Context) (ast.Expr, error) {
	name, err := p.expect(ctx, lex.Ident, "function name")
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(ctx, lex.LParen, "'('"); err != nil {
		return nil, err
	}

	var args []ast.Expr

	for p.cur.Kind != lex.RParen {
		if len(args) > 0 {
			if _, err := p.expect(ctx, lex.Comma, "','"); err != nil {
				return nil, err
			}
		}

		a, err := p.parseExpr(ctx)
		if err != nil {
			return nil, err
		}

		args = append(args, a)
	}

	end := p.cur.End

	if err := p.advance(ctx); err != nil {
		return nil, err
	}

	return ast.Call{Base: ast.Base{Pos: name.Pos, End: end}, Callee: name.Text, Args: args}, nil
}

func parseIntLiteral(s string) (int64, error) {
	var v int64

	for i := 0; i < len(s); i++ {
		v = v*10 + int64(s[i]-'0')
	}

	return v, nil
}
