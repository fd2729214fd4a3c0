package parser

import (
	"strconv"

	"github.com/treeform/nimmy/pkg/ast"
	"github.com/treeform/nimmy/pkg/lexer"
)

// parseExpr is the entry point for precedence-climbing expression
// parsing, starting at the lowest-precedence operator (`or`).
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.OR) {
		t := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Pos: pos(t), Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.AND) {
		t := p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Pos: pos(t), Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.EQ) || p.at(lexer.NEQ) {
		t := p.advance()
		op := "=="
		if t.Type == lexer.NEQ {
			op = "!="
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Pos: pos(t), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.LT) || p.at(lexer.LTE) || p.at(lexer.GT) || p.at(lexer.GTE) || p.at(lexer.IN) {
		t := p.advance()
		op := tokOpString(t.Type)
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Pos: pos(t), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func tokOpString(tt lexer.TokenType) string {
	switch tt {
	case lexer.LT:
		return "<"
	case lexer.LTE:
		return "<="
	case lexer.GT:
		return ">"
	case lexer.GTE:
		return ">="
	case lexer.IN:
		return "in"
	default:
		return "?"
	}
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.PLUS) || p.at(lexer.MINUS) || p.at(lexer.AMP) {
		t := p.advance()
		op := map[lexer.TokenType]string{lexer.PLUS: "+", lexer.MINUS: "-", lexer.AMP: "&"}[t.Type]
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Pos: pos(t), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.STAR) || p.at(lexer.SLASH) || p.at(lexer.PERCENT) || p.at(lexer.DIV) || p.at(lexer.MOD) {
		t := p.advance()
		op := map[lexer.TokenType]string{
			lexer.STAR: "*", lexer.SLASH: "/", lexer.PERCENT: "%",
			lexer.DIV: "div", lexer.MOD: "mod",
		}[t.Type]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Pos: pos(t), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.at(lexer.MINUS) || p.at(lexer.NOT) || p.at(lexer.DOLLAR) {
		t := p.advance()
		op := map[lexer.TokenType]string{lexer.MINUS: "-", lexer.NOT: "not", lexer.DOLLAR: "$"}[t.Type]
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Pos: pos(t), Op: op, Operand: operand}, nil
	}
	return p.parseRange()
}

// parseRange binds tighter than unary-level operators conceptually but is
// easiest to resolve just above postfix: `a..b` / `a..<b`.
func (p *Parser) parseRange() (ast.Expr, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.DOTDOT) || p.at(lexer.DOTDOTLT) {
		t := p.advance()
		inclusive := t.Type == lexer.DOTDOT
		right, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return &ast.RangeLit{Pos: pos(t), Start: left, End: right, Inclusive: inclusive}, nil
	}
	return left, nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(lexer.DOT):
			t := p.advance()
			field, err := p.expect(lexer.IDENT, "field name")
			if err != nil {
				return nil, err
			}
			expr = &ast.DotExpr{Pos: pos(t), Left: expr, Field: field.Literal}
		case p.at(lexer.LBRACKET):
			t := p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBRACKET, "']'"); err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{Pos: pos(t), Container: expr, Index: idx}
		case p.at(lexer.LPAREN):
			t := p.advance()
			var args []ast.Expr
			for !p.at(lexer.RPAREN) {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(lexer.COMMA) {
					p.advance()
				}
			}
			if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Pos: pos(t), Callee: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Type {
	case lexer.INT:
		p.advance()
		v, err := strconv.ParseInt(t.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal '%s'", t.Literal)
		}
		return &ast.IntLit{Pos: pos(t), Value: v}, nil
	case lexer.FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(t.Literal, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal '%s'", t.Literal)
		}
		return &ast.FloatLit{Pos: pos(t), Value: v}, nil
	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Pos: pos(t), Value: t.Literal}, nil
	case lexer.TRUE:
		p.advance()
		return &ast.BoolLit{Pos: pos(t), Value: true}, nil
	case lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Pos: pos(t), Value: false}, nil
	case lexer.NIL:
		p.advance()
		return &ast.NilLit{Pos: pos(t)}, nil
	case lexer.IDENT:
		p.advance()
		return &ast.Identifier{Pos: pos(t), Name: t.Literal}, nil
	case lexer.LPAREN:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.LBRACKET:
		return p.parseArrayLit(t)
	case lexer.LBRACE:
		return p.parseBraceLit(t)
	default:
		return nil, p.errorf("unexpected token in expression")
	}
}

func (p *Parser) parseArrayLit(t lexer.Token) (ast.Expr, error) {
	p.advance()
	var elems []ast.Expr
	for !p.at(lexer.RBRACKET) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.RBRACKET, "']'"); err != nil {
		return nil, err
	}
	return &ast.ArrayLit{Pos: pos(t), Elements: elems}, nil
}

// parseBraceLit disambiguates `{}` set/table construction: `{}` is an
// empty table, `{k: v, ...}` is a table, anything else is a set.
func (p *Parser) parseBraceLit(t lexer.Token) (ast.Expr, error) {
	p.advance()
	if p.at(lexer.RBRACE) {
		p.advance()
		return &ast.TableLit{Pos: pos(t)}, nil
	}

	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.COLON) {
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit := &ast.TableLit{Pos: pos(t), Entries: []ast.TableEntry{{Key: first, Value: val}}}
		for p.at(lexer.COMMA) {
			p.advance()
			if p.at(lexer.RBRACE) {
				break
			}
			k, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.COLON, "':'"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			lit.Entries = append(lit.Entries, ast.TableEntry{Key: k, Value: v})
		}
		if _, err := p.expect(lexer.RBRACE, "'}'"); err != nil {
			return nil, err
		}
		return lit, nil
	}

	set := &ast.SetLit{Pos: pos(t), Elements: []ast.Expr{first}}
	for p.at(lexer.COMMA) {
		p.advance()
		if p.at(lexer.RBRACE) {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		set.Elements = append(set.Elements, e)
	}
	if _, err := p.expect(lexer.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return set, nil
}
