package diagram

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// programLexer tokenizes all three programs. Comments start with "--" or "//" and
// run to the end of the line. Strings are delimited by double quotes or by '$'.
// Newlines are significant: they end statements.
var programLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `(?:--|//)[^\n]*`},
	{Name: "String", Pattern: `"(?:\\[^\n]|[^"\\\n])*"|\$[^$\n]*\$`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?|\.\d+`},
	{Name: "Keyword", Pattern: `where\b`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Punct", Pattern: `==|<:|<=|>=|!=|[(){}\[\],;:.=<>+\-*/?#]`},
	{Name: "Newline", Pattern: `\n`},
	{Name: "Whitespace", Pattern: `[ \t\r\f\v]+`},
})

func buildParser[G any]() *participle.Parser[G] {
	return participle.MustBuild[G](
		participle.Lexer(programLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.UseLookahead(participle.MaxLookahead),
	)
}

type pos struct {
	src  string
	line int
	col  int
}

func positionOf(src string, p lexer.Position) pos {
	return pos{src: src, line: p.Line, col: p.Column}
}

// ident is a name together with where it was written.
type ident struct {
	text string
	at   pos
}

// syntaxErr converts a lexer or grammar failure into a compile diagnostic.
func syntaxErr(src, text string, err error) *Error {
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		at := positionOf(src, lexErr.Pos)
		r, _ := utf8.DecodeRuneInString(text[min(lexErr.Pos.Offset, len(text)):])
		if r == '"' || r == '$' {
			return compileErr(CodeParse, at, "", "unterminated string")
		}
		return compileErr(CodeParse, at, string(r), "unexpected character %q", r)
	}

	var unexpected *participle.UnexpectedTokenError
	if errors.As(err, &unexpected) {
		tok := unexpected.Unexpected
		at := positionOf(src, tok.Pos)
		switch {
		case tok.EOF():
			return compileErr(CodeParse, at, "", "unexpected end of input")
		case tok.Value == "\n":
			return compileErr(CodeParse, at, "", "unexpected newline")
		}
		return compileErr(CodeParse, at, tok.Value, "unexpected '%s'", tok.Value)
	}

	var perr participle.Error
	if errors.As(err, &perr) {
		return compileErr(CodeParse, positionOf(src, perr.Position()), "", "%s", perr.Message())
	}
	return compileErr(CodeParse, pos{src: src, line: 1, col: 1}, "", "%v", err)
}

// unquote strips string delimiters. Inside double quotes a backslash keeps the
// next character literally.
func unquote(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	body := lit[1 : len(lit)-1]
	if lit[0] == '$' || !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	escaped := false
	for _, r := range body {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// sourceText returns the program text between two positions with whitespace collapsed.
func sourceText(text string, from, to lexer.Position) string {
	if from.Offset < 0 || to.Offset > len(text) || from.Offset >= to.Offset {
		return ""
	}
	return strings.Join(strings.Fields(text[from.Offset:to.Offset]), " ")
}
