package diagram

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

type expr interface {
	position() pos
}

type numberExpr struct {
	at    pos
	value float64
}

type stringExpr struct {
	at    pos
	value string
}

// freeExpr is "?": a value left to the optimizer.
type freeExpr struct {
	at pos
}

type pathExpr struct {
	at    pos
	parts []string
}

type vectorExpr struct {
	at    pos
	elems []expr
}

type callExpr struct {
	at   pos
	name string
	args []expr
}

type binaryExpr struct {
	at          pos
	op          string
	left, right expr
}

type negExpr struct {
	at      pos
	operand expr
}

type property struct {
	name  string
	at    pos
	value expr
}

type shapeExpr struct {
	at    pos
	kind  string
	props []property
}

func (e *numberExpr) position() pos { return e.at }
func (e *stringExpr) position() pos { return e.at }
func (e *freeExpr) position() pos { return e.at }
func (e *pathExpr) position() pos { return e.at }
func (e *vectorExpr) position() pos { return e.at }
func (e *callExpr) position() pos { return e.at }
func (e *binaryExpr) position() pos { return e.at }
func (e *negExpr) position() pos { return e.at }
func (e *shapeExpr) position() pos { return e.at }

func (e *pathExpr) String() string { return strings.Join(e.parts, ".") }

type stmt interface {
	position() pos
}

type assignStmt struct {
	at     pos
	target *pathExpr
	value  expr
}

type goalStmt struct {
	at     pos
	ensure bool
	value  expr
	source string
}

type layerStmt struct {
	at           pos
	upper, lower *pathExpr
}

func (s *assignStmt) position() pos { return s.at }
func (s *goalStmt) position() pos { return s.at }
func (s *layerStmt) position() pos { return s.at }

type selectorDecl struct {
	typ  string
	name string
	at   pos
}

type predicateClause struct {
	pred string
	args []ident
	at   pos
}

type block struct {
	at    pos
	decls []selectorDecl
	where []predicateClause
	stmts []stmt
}

type styleProgram struct {
	canvas *block
	blocks []*block
}

func parseStyle(text string) (*styleProgram, *Error) {
	file, err := styleParser.ParseString("style", text)
	if err != nil {
		return nil, syntaxErr("style", text, err)
	}
	b := &styleBuilder{text: text}
	prog := &styleProgram{}

	for _, sec := range file.Sections {
		at := b.at(sec.Pos)
		switch {
		case sec.Canvas != nil:
			if prog.canvas != nil {
				return nil, compileErr(CodeDuplicateName, at, "canvas", "canvas is declared twice")
			}
			body, err := b.body(sec.Canvas, at)
			if err != nil {
				return nil, err
			}
			prog.canvas = body
		case sec.Forall != nil:
			body, err := b.body(sec.Forall.Body, at)
			if err != nil {
				return nil, err
			}
			for _, g := range sec.Forall.Groups {
				for _, n := range g.Names {
					body.decls = append(body.decls, selectorDecl{typ: g.Type, name: n.Name, at: b.at(n.Pos)})
				}
			}
			for _, w := range sec.Forall.Where {
				clause := predicateClause{pred: w.Pred, at: b.at(w.Pos)}
				for _, a := range w.Args {
					clause.args = append(clause.args, ident{text: a.Name, at: b.at(a.Pos)})
				}
				body.where = append(body.where, clause)
			}
			prog.blocks = append(prog.blocks, body)
		}
	}
	return prog, nil
}

// styleBuilder turns the parsed style grammar into statements and expressions.
type styleBuilder struct {
	text string
}

func (b *styleBuilder) at(p lexer.Position) pos {
	return positionOf("style", p)
}

func (b *styleBuilder) body(n *bodyNode, at pos) (*block, *Error) {
	out := &block{at: at}
	for _, st := range n.Stmts {
		s, err := b.stmt(st)
		if err != nil {
			return nil, err
		}
		out.stmts = append(out.stmts, s)
	}
	return out, nil
}

func (b *styleBuilder) stmt(n *stmtNode) (stmt, *Error) {
	at := b.at(n.Pos)
	switch {
	case n.Goal != nil:
		value, err := b.expr(n.Goal.Value)
		if err != nil {
			return nil, err
		}
		return &goalStmt{
			at:     at,
			ensure: n.Goal.Keyword == "ensure",
			value:  value,
			source: sourceText(b.text, n.Goal.Value.Pos, n.Goal.Value.EndPos),
		}, nil
	case n.Layer != nil:
		upper, lower := b.path(n.Layer.Upper), b.path(n.Layer.Lower)
		switch n.Layer.Dir.Name {
		case "above":
			return &layerStmt{at: at, upper: upper, lower: lower}, nil
		case "below":
			return &layerStmt{at: at, upper: lower, lower: upper}, nil
		}
		dir := n.Layer.Dir
		return nil, compileErr(CodeParse, b.at(dir.Pos), dir.Name, "expected 'above' or 'below', found '%s'", dir.Name)
	}
	value, err := b.expr(n.Assign.Value)
	if err != nil {
		return nil, err
	}
	return &assignStmt{at: at, target: b.path(n.Assign.Target), value: value}, nil
}

func (b *styleBuilder) path(n *pathNode) *pathExpr {
	return &pathExpr{at: b.at(n.Pos), parts: n.Parts}
}

func (b *styleBuilder) expr(n *exprNode) (expr, *Error) {
	left, err := b.sum(n.Left)
	if err != nil || n.Compare == nil {
		return left, err
	}
	right, err := b.sum(n.Compare.Right)
	if err != nil {
		return nil, err
	}
	return &binaryExpr{at: b.at(n.Compare.Pos), op: n.Compare.Op, left: left, right: right}, nil
}

func (b *styleBuilder) sum(n *sumNode) (expr, *Error) {
	left, err := b.term(n.Head)
	if err != nil {
		return nil, err
	}
	for _, op := range n.Tail {
		right, err := b.term(op.Term)
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{at: b.at(op.Pos), op: op.Op, left: left, right: right}
	}
	return left, nil
}

func (b *styleBuilder) term(n *termNode) (expr, *Error) {
	left, err := b.unary(n.Head)
	if err != nil {
		return nil, err
	}
	for _, op := range n.Tail {
		right, err := b.unary(op.Operand)
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{at: b.at(op.Pos), op: op.Op, left: left, right: right}
	}
	return left, nil
}

func (b *styleBuilder) unary(n *unaryNode) (expr, *Error) {
	if n.Neg != nil {
		operand, err := b.unary(n.Neg)
		if err != nil {
			return nil, err
		}
		return &negExpr{at: b.at(n.Pos), operand: operand}, nil
	}
	return b.primary(n.Primary)
}

func (b *styleBuilder) primary(n *primaryNode) (expr, *Error) {
	at := b.at(n.Pos)
	switch {
	case n.Number != nil:
		return &numberExpr{at: at, value: *n.Number}, nil
	case n.String != nil:
		return &stringExpr{at: at, value: unquote(*n.String)}, nil
	case n.Free:
		return &freeExpr{at: at}, nil
	case n.Paren != nil, n.Vector != nil:
		tuple := n.Paren
		if tuple == nil {
			tuple = n.Vector
		}
		elems, err := b.exprs(tuple)
		if err != nil {
			return nil, err
		}
		if len(elems) == 1 && n.Paren != nil {
			return elems[0], nil
		}
		if len(elems) != 2 {
			return nil, compileErr(CodeParse, at, "", "vectors must have 2 components, found %d", len(elems))
		}
		return &vectorExpr{at: at, elems: elems}, nil
	case n.Call != nil:
		args, err := b.exprs(n.Call.Args)
		if err != nil {
			return nil, err
		}
		return &callExpr{at: at, name: n.Call.Name, args: args}, nil
	case n.Shape != nil:
		shape := &shapeExpr{at: at, kind: n.Shape.Kind}
		for _, p := range n.Shape.Props {
			value, err := b.expr(p.Value)
			if err != nil {
				return nil, err
			}
			shape.props = append(shape.props, property{name: p.Name, at: b.at(p.Pos), value: value})
		}
		return shape, nil
	}
	return b.path(n.Path), nil
}

func (b *styleBuilder) exprs(t *tupleNode) ([]expr, *Error) {
	var out []expr
	for _, e := range t.Elems {
		v, err := b.expr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
