// Package errors defines nimmy's error taxonomy: lex errors, parse errors,
// and runtime errors, all sharing a common NimmyError base and a single
// rendered format: "<category> at line L, column C: <detail>".
package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// NimmyError is the base every lex/parse/runtime error implements.
type NimmyError interface {
	error
	Category() string
	Pos() (line, column int)
	Detail() string
}

// LexError reports a tokenization failure.
type LexError struct {
	Line, Column int
	Message      string
	Snippet      string
}

func (e *LexError) Category() string        { return "lex error" }
func (e *LexError) Pos() (int, int)         { return e.Line, e.Column }
func (e *LexError) Detail() string          { return e.Message }
func (e *LexError) Error() string           { return formatPlain(e) }

// ParseError reports a syntax failure while building the AST.
type ParseError struct {
	Line, Column int
	Message      string
	Snippet      string
	Suggestion   string
}

func (e *ParseError) Category() string { return "parse error" }
func (e *ParseError) Pos() (int, int)  { return e.Line, e.Column }
func (e *ParseError) Detail() string   { return e.Message }
func (e *ParseError) Error() string    { return formatPlain(e) }

// RuntimeError reports a failure during VM execution: an undefined
// variable, a type mismatch, division by zero, and so on.
type RuntimeError struct {
	Line, Column int
	Message      string
	Snippet      string
	CallStack    []string // innermost-last function names active when raised
}

func (e *RuntimeError) Category() string { return "runtime error" }
func (e *RuntimeError) Pos() (int, int)  { return e.Line, e.Column }
func (e *RuntimeError) Detail() string   { return e.Message }
func (e *RuntimeError) Error() string    { return formatPlain(e) }

// formatPlain renders the required "<category> at line L, column C: <detail>" form.
func formatPlain(e NimmyError) string {
	line, col := e.Pos()
	return fmt.Sprintf("%s at line %d, column %d: %s", e.Category(), line, col, e.Detail())
}

// snippetOf extracts a one-line source snippet for rendering, if present.
func snippetOf(e NimmyError) string {
	switch v := e.(type) {
	case *LexError:
		return v.Snippet
	case *ParseError:
		return v.Snippet
	case *RuntimeError:
		return v.Snippet
	default:
		return ""
	}
}

// FormatError renders a nimmy error for a terminal: colorized category and
// message, plus the offending source line and a caret under the column,
// when a snippet is available. Non-NimmyError values fall back to a plain
// "Error: <message>" line. Colors are enabled only when useColors is true
// (callers typically gate this on whether stdout is a terminal).
func FormatError(err error, useColors bool) string {
	if err == nil {
		return ""
	}
	ne, ok := err.(NimmyError)
	if !ok {
		if useColors {
			return color.New(color.Bold, color.FgRed).Sprint("Error: ") + err.Error() + "\n"
		}
		return "Error: " + err.Error() + "\n"
	}

	var b strings.Builder
	line, col := ne.Pos()
	header := formatPlain(ne)
	if useColors {
		b.WriteString(color.New(color.Bold, color.FgRed).Sprint(header))
	} else {
		b.WriteString(header)
	}
	b.WriteString("\n")

	if snippet := snippetOf(ne); snippet != "" {
		b.WriteString("\n")
		if useColors {
			b.WriteString(color.New(color.FgCyan).Sprintf("  %4d | ", line))
		} else {
			b.WriteString(fmt.Sprintf("  %4d | ", line))
		}
		b.WriteString(snippet)
		b.WriteString("\n")
		if col > 0 {
			pad := strings.Repeat(" ", col-1)
			if useColors {
				b.WriteString("       | " + color.New(color.FgRed).Sprint(pad+"^") + "\n")
			} else {
				b.WriteString("       | " + pad + "^\n")
			}
		}
	}

	if pe, ok := err.(*ParseError); ok && pe.Suggestion != "" {
		if useColors {
			b.WriteString(color.New(color.FgYellow).Sprintf("suggestion: %s\n", pe.Suggestion))
		} else {
			b.WriteString(fmt.Sprintf("suggestion: %s\n", pe.Suggestion))
		}
	}

	return b.String()
}

// ExtractSnippet returns the single line of source at (1-based) line,
// or "" if out of range. Used by lexer/parser/VM to attach context when
// constructing a NimmyError.
func ExtractSnippet(source string, line int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}
