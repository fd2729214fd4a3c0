// Package parser implements nimmy's Pratt/recursive-descent parser: it
// consumes the pkg/lexer token stream and produces the pkg/ast tree
// pkg/vm executes. Like the lexer, the parser is an external
// collaborator to the VM core — specified here only to the depth needed
// to drive the VM and debugger end to end.
package parser

import (
	"fmt"

	"github.com/treeform/nimmy/pkg/ast"
	nimmyerrors "github.com/treeform/nimmy/pkg/errors"
	"github.com/treeform/nimmy/pkg/lexer"
)

// Parser turns a token stream into an ast.Program.
type Parser struct {
	tokens []lexer.Token
	pos    int
	source string
}

// Parse lexes and parses source in one call.
func Parse(source string) (*ast.Program, error) {
	lx := lexer.New(source)
	toks, err := lx.Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: toks, source: source}
	return p.parseProgram()
}

func (p *Parser) cur() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(tt lexer.TokenType) bool { return p.cur().Type == tt }

func (p *Parser) expect(tt lexer.TokenType, what string) (lexer.Token, error) {
	if !p.at(tt) {
		return lexer.Token{}, p.errorf("expected %s", what)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	t := p.cur()
	return &nimmyerrors.ParseError{
		Line: t.Line, Column: t.Column,
		Message: fmt.Sprintf(format, args...),
		Snippet: nimmyerrors.ExtractSnippet(p.source, t.Line),
	}
}

func pos(t lexer.Token) ast.Position { return ast.Position{Line: t.Line, Column: t.Column} }

func (p *Parser) skipNewlines() {
	for p.at(lexer.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	p.skipNewlines()
	for !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		p.skipNewlines()
	}
	return prog, nil
}

// parseBlock parses `: NEWLINE INDENT stmt* DEDENT` — the `if`/`for`/
// `while` body shape, which is introduced by a colon.
func (p *Parser) parseBlock() (*ast.Block, error) {
	if _, err := p.expect(lexer.COLON, "':'"); err != nil {
		return nil, err
	}
	return p.parseIndentedBody()
}

// parseIndentedBody parses `NEWLINE INDENT stmt* DEDENT`, the indented
// statement sequence shared by every block shape. Callers that need a
// leading token of their own (a colon, an `=`) consume it first.
func (p *Parser) parseIndentedBody() (*ast.Block, error) {
	t := p.cur()
	p.skipNewlines()
	if _, err := p.expect(lexer.INDENT, "indented block"); err != nil {
		return nil, err
	}
	block := &ast.Block{Pos: pos(t)}
	for !p.at(lexer.DEDENT) && !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
		p.skipNewlines()
	}
	if _, err := p.expect(lexer.DEDENT, "end of indented block"); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Type {
	case lexer.LET:
		return p.parseLetOrVar(true)
	case lexer.VAR:
		return p.parseLetOrVar(false)
	case lexer.IF:
		return p.parseIf()
	case lexer.FOR:
		return p.parseFor()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.BREAK:
		t := p.advance()
		return &ast.BreakStmt{Pos: pos(t)}, nil
	case lexer.CONTINUE:
		t := p.advance()
		return &ast.ContinueStmt{Pos: pos(t)}, nil
	case lexer.RETURN:
		return p.parseReturn()
	case lexer.PROC:
		return p.parseProc()
	case lexer.TYPE:
		return p.parseTypeDef()
	case lexer.ECHO:
		return p.parseEcho()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseLetOrVar(isConst bool) (ast.Stmt, error) {
	kw := p.advance()
	name, err := p.expect(lexer.IDENT, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.ASSIGN, "'='"); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if isConst {
		return &ast.LetStmt{Pos: pos(kw), Name: name.Literal, Value: val}, nil
	}
	return &ast.VarStmt{Pos: pos(kw), Name: name.Literal, Value: val}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	kw := p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Pos: pos(kw), Cond: cond, Then: then}
	for p.at(lexer.ELIF) {
		p.advance()
		econd, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ebody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.ElseIfs = append(stmt.ElseIfs, ast.ElseIf{Cond: econd, Body: ebody})
	}
	if p.at(lexer.ELSE) {
		p.advance()
		ebody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = ebody
	}
	return stmt, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	kw := p.advance()
	name, err := p.expect(lexer.IDENT, "loop variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.IN, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Pos: pos(kw), Var: name.Literal, Iterable: iter, Body: body}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	kw := p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Pos: pos(kw), Cond: cond, Body: body}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	kw := p.advance()
	if p.at(lexer.NEWLINE) || p.at(lexer.DEDENT) || p.at(lexer.EOF) {
		return &ast.ReturnStmt{Pos: pos(kw)}, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Pos: pos(kw), Value: val}, nil
}

func (p *Parser) parseProc() (ast.Stmt, error) {
	kw := p.advance()
	name, err := p.expect(lexer.IDENT, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	var params []string
	for !p.at(lexer.RPAREN) {
		pn, err := p.expect(lexer.IDENT, "parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, pn.Literal)
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.ASSIGN, "'='"); err != nil {
		return nil, err
	}
	body, err := p.parseIndentedBody()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{Pos: pos(kw), Name: name.Literal, Params: params, Body: body}, nil
}

func (p *Parser) parseTypeDef() (ast.Stmt, error) {
	kw := p.advance()
	name, err := p.expect(lexer.IDENT, "type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	var fields []string
	for !p.at(lexer.RBRACE) {
		fn, err := p.expect(lexer.IDENT, "field name")
		if err != nil {
			return nil, err
		}
		fields = append(fields, fn.Literal)
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.TypeDef{Pos: pos(kw), Name: name.Literal, Fields: fields}, nil
}

func (p *Parser) parseEcho() (ast.Stmt, error) {
	kw := p.advance()
	var args []ast.Expr
	if !p.at(lexer.NEWLINE) && !p.at(lexer.EOF) && !p.at(lexer.DEDENT) {
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, first)
		for p.at(lexer.COMMA) {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
	}
	return &ast.EchoStmt{Pos: pos(kw), Args: args}, nil
}

func (p *Parser) parseExprOrAssignStmt() (ast.Stmt, error) {
	t := p.cur()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.ASSIGN) {
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Pos: pos(t), Target: e, Value: rhs}, nil
	}
	return &ast.ExprStmt{Pos: pos(t), X: e}, nil
}
