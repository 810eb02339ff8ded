package diagram

import "github.com/alecthomas/participle/v2/lexer"

// Grammars of the three programs. Each production records its position so compile
// errors can point at the offending text.

type nameNode struct {
	Pos  lexer.Position
	Name string `parser:"@Ident"`
}

// Domain program.

type domainFile struct {
	Decls []*domainDecl `parser:"( @@ | Newline | ';' )*"`
}

type domainDecl struct {
	Type      *typeNode      `parser:"(   'type' @@"`
	Predicate *predicateNode `parser:"  | 'predicate' @@ ) ( Newline | ';' | EOF )"`
}

type typeNode struct {
	Pos    lexer.Position
	Name   string    `parser:"@Ident"`
	Parent *nameNode `parser:"( '<:' @@ )?"`
}

type predicateNode struct {
	Pos    lexer.Position
	Name   string       `parser:"@Ident '('"`
	Params []*paramNode `parser:"( @@ ( ',' @@ )* )? ')'"`
}

// paramNode is a parameter type with an optional, meaningless name.
type paramNode struct {
	Type string `parser:"@Ident"`
	Name string `parser:"@Ident?"`
}

// Substance program.

type substanceFile struct {
	Stmts []*substanceStmt `parser:"( @@ | Newline | ';' )*"`
}

type substanceStmt struct {
	Pos       lexer.Position
	AutoLabel *labelList    `parser:"(   'AutoLabel' @@"`
	NoLabel   *labelList    `parser:"  | 'NoLabel' @@"`
	Label     *labelNode    `parser:"  | 'Label' @@"`
	Relation  *relationNode `parser:"  | @@"`
	Decl      *declNode     `parser:"  | @@ ) ( Newline | ';' | EOF )"`
}

type labelList struct {
	All   bool        `parser:"(   @'All'"`
	Names []*nameNode `parser:"  | @@ ( ',' @@ )* )"`
}

type labelNode struct {
	Object *nameNode `parser:"@@"`
	Text   string    `parser:"@String"`
}

type relationNode struct {
	Pos  lexer.Position
	Pred string      `parser:"@Ident '('"`
	Args []*nameNode `parser:"( @@ ( ',' @@ )* )? ')'"`
}

type declNode struct {
	Pos   lexer.Position
	Type  string      `parser:"@Ident"`
	Names []*nameNode `parser:"@@ ( ',' @@ )*"`
}

// Style program.

type styleFile struct {
	Sections []*sectionNode `parser:"( @@ | Newline | ';' )*"`
}

type sectionNode struct {
	Pos    lexer.Position
	Canvas *bodyNode   `parser:"(   'canvas' Newline* @@"`
	Forall *forallNode `parser:"  | 'forall' @@ )"`
}

type forallNode struct {
	Groups []*selectorGroup `parser:"@@ ( ( ',' | ';' ) @@ )* Newline*"`
	Where  []*clauseNode    `parser:"( 'where' Newline* @@ ( ( ';' | ',' ) Newline* @@ )* Newline* )?"`
	Body   *bodyNode        `parser:"@@"`
}

// selectorGroup is "Set x, y": names share the type. A name followed by another
// identifier starts the next group instead ("Set x, Set y").
type selectorGroup struct {
	Type  string          `parser:"@Ident"`
	Names []*selectorName `parser:"@@ ( ',' @@ )*"`
}

type selectorName struct {
	Pos  lexer.Position
	Name string `parser:"@Ident (?! Ident )"`
}

// clauseNode is a predicate applied to selector variables in a where clause.
type clauseNode struct {
	Pos  lexer.Position
	Pred string      `parser:"@Ident '('"`
	Args []*nameNode `parser:"( @@ ( ',' @@ )* )? ')'"`
}

type bodyNode struct {
	Pos   lexer.Position
	Stmts []*stmtNode `parser:"'{' ( @@ | Newline | ';' )* '}'"`
}

type stmtNode struct {
	Pos    lexer.Position
	Goal   *goalNode   `parser:"(   @@"`
	Layer  *layerNode  `parser:"  | @@"`
	Assign *assignNode `parser:"  | @@ ) (?= Newline | ';' | '}' ) ( Newline | ';' )?"`
}

type goalNode struct {
	Keyword string    `parser:"@( 'ensure' | 'encourage' )"`
	Value   *exprNode `parser:"@@"`
}

type layerNode struct {
	Upper *pathNode `parser:"'layer' @@"`
	Dir   *nameNode `parser:"@@"`
	Lower *pathNode `parser:"@@"`
}

type assignNode struct {
	Target *pathNode `parser:"'shape'? @@ ( '=' | ':' )"`
	Value  *exprNode `parser:"@@"`
}

type pathNode struct {
	Pos   lexer.Position
	Parts []string `parser:"@Ident ( '.' @Ident )*"`
}

// Expressions, loosest binding first.

type exprNode struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Left    *sumNode     `parser:"@@"`
	Compare *compareNode `parser:"@@?"`
}

type compareNode struct {
	Pos   lexer.Position
	Op    string   `parser:"@( '==' | '<=' | '>=' | '<' | '>' )"`
	Right *sumNode `parser:"@@"`
}

type sumNode struct {
	Head *termNode `parser:"@@"`
	Tail []*sumOp  `parser:"@@*"`
}

type sumOp struct {
	Pos  lexer.Position
	Op   string    `parser:"@( '+' | '-' )"`
	Term *termNode `parser:"@@"`
}

type termNode struct {
	Head *unaryNode `parser:"@@"`
	Tail []*termOp  `parser:"@@*"`
}

type termOp struct {
	Pos     lexer.Position
	Op      string     `parser:"@( '*' | '/' )"`
	Operand *unaryNode `parser:"@@"`
}

type unaryNode struct {
	Pos     lexer.Position
	Neg     *unaryNode   `parser:"(   '-' @@"`
	Primary *primaryNode `parser:"  | @@ )"`
}

type primaryNode struct {
	Pos    lexer.Position
	Number *float64    `parser:"(   @Number"`
	String *string     `parser:"  | @String"`
	Free   bool        `parser:"  | @'?'"`
	Paren  *tupleNode  `parser:"  | '(' @@ ')'"`
	Vector *tupleNode  `parser:"  | '[' @@ ']'"`
	Call   *callNode   `parser:"  | @@"`
	Shape  *shapeNode  `parser:"  | @@"`
	Path   *pathNode   `parser:"  | @@ )"`
}

// tupleNode is the inside of "(a)", "(a, b)" or "[a, b]"; newlines are insignificant.
type tupleNode struct {
	Elems []*exprNode `parser:"Newline* ( @@ ( Newline* ',' Newline* @@ )* Newline* )?"`
}

type callNode struct {
	Pos  lexer.Position
	Name string     `parser:"@Ident '('"`
	Args *tupleNode `parser:"@@ ')'"`
}

type shapeNode struct {
	Pos   lexer.Position
	Kind  string          `parser:"@Ident '{'"`
	Props []*propertyNode `parser:"( @@ | Newline | ';' | ',' )* '}'"`
}

type propertyNode struct {
	Pos   lexer.Position
	Name  string    `parser:"@Ident ( ':' | '=' )"`
	Value *exprNode `parser:"@@"`
}

var (
	domainParser    = buildParser[domainFile]()
	substanceParser = buildParser[substanceFile]()
	styleParser     = buildParser[styleFile]()
)
