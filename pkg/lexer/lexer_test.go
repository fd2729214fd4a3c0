package lexer

import (
	"strings"
	"testing"
)

func tokenTypes(t *testing.T, source string) []TokenType {
	t.Helper()
	toks, err := New(source).Tokenize()
	if err != nil {
		t.Fatalf("unexpected lex error: %v", err)
	}
	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	return types
}

func TestSimpleExpression(t *testing.T) {
	types := tokenTypes(t, "1 + 2")
	want := []TokenType{INT, PLUS, INT, EOF}
	assertTypes(t, types, want)
}

func TestKeywordsAndOperators(t *testing.T) {
	types := tokenTypes(t, "let x = 1 and not false")
	want := []TokenType{LET, IDENT, ASSIGN, INT, AND, NOT, FALSE, EOF}
	assertTypes(t, types, want)
}

func TestTwoCharOperators(t *testing.T) {
	types := tokenTypes(t, "a == b != c <= d >= e .. f ..< g")
	want := []TokenType{
		IDENT, EQ, IDENT, NEQ, IDENT, LTE, IDENT, GTE, IDENT,
		DOTDOT, IDENT, DOTDOTLT, IDENT, EOF,
	}
	assertTypes(t, types, want)
}

func TestStringEscapes(t *testing.T) {
	toks, err := New(`"hi\nthere"`).Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Type != STRING || toks[0].Literal != "hi\nthere" {
		t.Errorf("got %q, want %q", toks[0].Literal, "hi\nthere")
	}
}

func TestUnterminatedString(t *testing.T) {
	_, err := New(`"oops`).Tokenize()
	if err == nil {
		t.Fatal("expected an error for an unterminated string")
	}
	if !strings.Contains(err.Error(), "Unterminated string") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestFloatVsInt(t *testing.T) {
	toks, err := New("1 1.5").Tokenize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Type != INT {
		t.Errorf("expected 1 to lex as INT, got %v", toks[0].Type)
	}
	if toks[1].Type != FLOAT || toks[1].Literal != "1.5" {
		t.Errorf("expected 1.5 to lex as FLOAT, got %v %q", toks[1].Type, toks[1].Literal)
	}
}

func TestIndentDedent(t *testing.T) {
	source := "if true\n  echo 1\necho 2\n"
	types := tokenTypes(t, source)
	want := []TokenType{
		IF, TRUE, NEWLINE,
		INDENT, ECHO, INT, NEWLINE,
		DEDENT, ECHO, INT, NEWLINE,
		EOF,
	}
	assertTypes(t, types, want)
}

func TestInconsistentIndentation(t *testing.T) {
	source := "if true\n  echo 1\n    echo 2\n echo 3\n"
	_, err := New(source).Tokenize()
	if err == nil {
		t.Fatal("expected an inconsistent indentation error")
	}
	if !strings.Contains(err.Error(), "Inconsistent indentation") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	types := tokenTypes(t, "1 # a comment\n+ 2")
	want := []TokenType{INT, NEWLINE, PLUS, INT, EOF}
	assertTypes(t, types, want)
}

func TestBlankLinesDoNotAffectIndentation(t *testing.T) {
	source := "if true\n  echo 1\n\n  echo 2\n"
	types := tokenTypes(t, source)
	want := []TokenType{
		IF, TRUE, NEWLINE,
		INDENT, ECHO, INT, NEWLINE,
		ECHO, INT, NEWLINE,
		DEDENT, EOF,
	}
	assertTypes(t, types, want)
}

func TestIllegalCharacter(t *testing.T) {
	_, err := New("1 @ 2").Tokenize()
	if err == nil {
		t.Fatal("expected an error for an illegal character")
	}
	if !strings.Contains(err.Error(), "Unexpected character") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func assertTypes(t *testing.T, got, want []TokenType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
