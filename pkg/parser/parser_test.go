package parser

import (
	"testing"

	"github.com/treeform/nimmy/pkg/ast"
)

func TestParseLetStmt(t *testing.T) {
	prog, err := Parse("let a = 1\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	let, ok := prog.Statements[0].(*ast.LetStmt)
	if !ok {
		t.Fatalf("expected *ast.LetStmt, got %T", prog.Statements[0])
	}
	if let.Name != "a" {
		t.Errorf("expected name 'a', got %q", let.Name)
	}
	lit, ok := let.Value.(*ast.IntLit)
	if !ok || lit.Value != 1 {
		t.Errorf("expected int literal 1, got %#v", let.Value)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	prog, err := Parse("1 + 2 * 3\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmt := prog.Statements[0].(*ast.ExprStmt)
	bin, ok := stmt.X.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level '+', got %#v", stmt.X)
	}
	rhs, ok := bin.Right.(*ast.BinaryExpr)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected '*' to bind tighter than '+', got %#v", bin.Right)
	}
}

func TestProcDefNoColon(t *testing.T) {
	source := "proc add(a, b) =\n  return a + b\n"
	prog, err := Parse(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, ok := prog.Statements[0].(*ast.FuncDef)
	if !ok {
		t.Fatalf("expected *ast.FuncDef, got %T", prog.Statements[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Errorf("unexpected func def: %#v", fn)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(fn.Body.Statements))
	}
	if _, ok := fn.Body.Statements[0].(*ast.ReturnStmt); !ok {
		t.Errorf("expected a return statement, got %T", fn.Body.Statements[0])
	}
}

func TestIfElifElse(t *testing.T) {
	source := "if a:\n  echo 1\nelif b:\n  echo 2\nelse:\n  echo 3\n"
	prog, err := Parse(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ifs, ok := prog.Statements[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", prog.Statements[0])
	}
	if len(ifs.ElseIfs) != 1 {
		t.Fatalf("expected 1 elif clause, got %d", len(ifs.ElseIfs))
	}
	if ifs.Else == nil {
		t.Fatal("expected an else block")
	}
}

func TestForLoopWithColon(t *testing.T) {
	source := "for i in 1..3:\n  echo i\n"
	prog, err := Parse(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	forStmt, ok := prog.Statements[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected *ast.ForStmt, got %T", prog.Statements[0])
	}
	if forStmt.Var != "i" {
		t.Errorf("expected loop var 'i', got %q", forStmt.Var)
	}
	rng, ok := forStmt.Iterable.(*ast.RangeLit)
	if !ok || !rng.Inclusive {
		t.Errorf("expected an inclusive range, got %#v", forStmt.Iterable)
	}
}

func TestCallExprAndUFCSDotCall(t *testing.T) {
	prog, err := Parse("x.f(y)\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmt := prog.Statements[0].(*ast.ExprStmt)
	call, ok := stmt.X.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", stmt.X)
	}
	dot, ok := call.Callee.(*ast.DotExpr)
	if !ok || dot.Field != "f" {
		t.Fatalf("expected callee x.f, got %#v", call.Callee)
	}
}

func TestTableVsSetLiteral(t *testing.T) {
	tableProg, err := Parse(`{"k": 1}` + "\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tableProg.Statements[0].(*ast.ExprStmt).X.(*ast.TableLit); !ok {
		t.Errorf("expected a TableLit, got %#v", tableProg.Statements[0])
	}

	setProg, err := Parse("{1, 2, 3}\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := setProg.Statements[0].(*ast.ExprStmt).X.(*ast.SetLit); !ok {
		t.Errorf("expected a SetLit, got %#v", setProg.Statements[0])
	}
}

func TestAssignStmt(t *testing.T) {
	prog, err := Parse("x = 5\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assign, ok := prog.Statements[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("expected *ast.AssignStmt, got %T", prog.Statements[0])
	}
	ident, ok := assign.Target.(*ast.Identifier)
	if !ok || ident.Name != "x" {
		t.Errorf("unexpected assign target: %#v", assign.Target)
	}
}

func TestParseErrorReported(t *testing.T) {
	_, err := Parse("let = 1\n")
	if err == nil {
		t.Fatal("expected a parse error for a missing identifier")
	}
}

func TestTypeDef(t *testing.T) {
	prog, err := Parse("type Point { x, y }\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	td, ok := prog.Statements[0].(*ast.TypeDef)
	if !ok {
		t.Fatalf("expected *ast.TypeDef, got %T", prog.Statements[0])
	}
	if td.Name != "Point" || len(td.Fields) != 2 {
		t.Errorf("unexpected type def: %#v", td)
	}
}
