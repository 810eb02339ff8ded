package diagram

import (
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// maxMatches bounds the substitutions one selector may produce.
const maxMatches = 10000

// Source is the input to Compile.
type Source struct {
	Domain    string
	Substance string
	Style     string
	Variation string
}

// Object describes a substance object.
type Object struct {
	Name  string
	Type  string
	Label string
}

// Relation is a predicate applied to substance objects, such as Subset(B, A).
type Relation struct {
	Predicate string
	Args      []string
}

// Stats summarizes a diagram and, once optimized, the solver run.
type Stats struct {
	Variables    int
	Constraints  int
	Objectives   int
	Shapes       int
	Rounds       int
	Steps        int
	MaxViolation float64
	Energy       float64
}

type goal struct {
	name string
	fn   numFn
}

// Diagram is a compiled layout problem: shapes parameterized by a variable
// vector, hard constraints (g(x) <= 0) and soft objectives.
type Diagram struct {
	width, height float64
	shapes        []*Shape
	x             []float64
	varNames      []string
	constraints   []goal
	objectives    []goal
	objects       []Object
	relations     []Relation
	converged     bool
	stats         Stats
}

// Canvas returns the canvas size declared by the style program.
func (d *Diagram) Canvas() (width, height float64) {
	return d.width, d.height
}

// Shapes lists the shapes in paint order.
func (d *Diagram) Shapes() []ShapeInfo {
	out := make([]ShapeInfo, len(d.shapes))
	for i, s := range d.shapes {
		out[i] = ShapeInfo{Name: s.Name, Kind: s.Kind}
	}
	return out
}

// Objects lists the substance objects in declaration order.
func (d *Diagram) Objects() []Object {
	return append([]Object(nil), d.objects...)
}

// Relations lists the substance relations in declaration order.
func (d *Diagram) Relations() []Relation {
	return append([]Relation(nil), d.relations...)
}

// Constraints lists the hard constraints by source description.
func (d *Diagram) Constraints() []string {
	out := make([]string, len(d.constraints))
	for i, g := range d.constraints {
		out[i] = g.name
	}
	return out
}

// Converged reports whether Optimize accepted the current layout.
func (d *Diagram) Converged() bool {
	return d.converged
}

func (d *Diagram) Stats() Stats {
	s := d.stats
	s.Variables = len(d.x)
	s.Constraints = len(d.constraints)
	s.Objectives = len(d.objectives)
	s.Shapes = len(d.shapes)
	return s
}

// Compile parses and checks the three programs and builds the layout problem.
// Initial values are drawn from a generator seeded by src.Variation.
func Compile(ctx context.Context, src Source) (*Diagram, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vocab, err := parseDomain(src.Domain)
	if err != nil {
		return nil, err
	}
	sub, err := parseSubstance(src.Substance, vocab)
	if err != nil {
		return nil, err
	}
	prog, err := parseStyle(src.Style)
	if err != nil {
		return nil, err
	}

	c := newCompiler(vocab, sub, src.Variation)
	if err := c.canvas(prog.canvas); err != nil {
		return nil, err
	}
	for _, b := range prog.blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.bind(b); err != nil {
			return nil, err
		}
	}
	if err := c.resolveAll(); err != nil {
		return nil, err
	}
	for _, p := range c.pending {
		if err := c.statement(p.stmt, p.env); err != nil {
			return nil, err
		}
	}
	c.implicitConstraints()
	c.d.shapes = orderShapes(c.d.shapes, c.layers)
	return c.d, nil
}

type bindingState int

const (
	unresolved bindingState = iota
	resolving
	resolved
)

// binding is a field or local assignment awaiting evaluation. Resolution is lazy,
// so fields may reference each other in any order.
type binding struct {
	name   string
	expr   expr
	env    *env
	seq    int
	state  bindingState
	result value
}

// env is one selector substitution.
type env struct {
	vars   map[string]*object
	locals map[string]*binding
	desc   string
}

type pendingStmt struct {
	stmt stmt
	env  *env
}

type compiler struct {
	vocab      *vocabulary
	sub        *substance
	d          *Diagram
	rng        *rand.Rand
	fields     map[string]map[string]*binding
	fieldOrder map[string][]string
	locals     []*binding
	pending    []pendingStmt
	layers     [][2]*Shape
	seq        int
}

func newCompiler(vocab *vocabulary, sub *substance, variation string) *compiler {
	h := fnv.New64a()
	h.Write([]byte(variation))
	seed := h.Sum64()

	d := &Diagram{}
	for _, o := range sub.order {
		d.objects = append(d.objects, Object{Name: o.name, Type: o.typ, Label: o.label})
	}
	for _, r := range sub.relations {
		d.relations = append(d.relations, Relation{Predicate: r.pred, Args: append([]string(nil), r.args...)})
	}
	return &compiler{
		vocab:      vocab,
		sub:        sub,
		d:          d,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fields:     map[string]map[string]*binding{},
		fieldOrder: map[string][]string{},
	}
}

func (c *compiler) canvas(b *block) *Error {
	if b == nil {
		return compileErr(CodeCanvas, pos{src: "style", line: 1, col: 1}, "canvas", "style must declare canvas { width = ... height = ... }")
	}
	for _, s := range b.stmts {
		a, ok := s.(*assignStmt)
		if !ok || len(a.target.parts) != 1 {
			return compileErr(CodeCanvas, s.position(), "canvas", "canvas only accepts width and height")
		}
		name := a.target.parts[0]
		n, ok := constant(a.value)
		if !ok || n <= 0 {
			return compileErr(CodeCanvas, a.at, name, "canvas %s must be a positive number", name)
		}
		switch name {
		case "width":
			c.d.width = n
		case "height":
			c.d.height = n
		default:
			return compileErr(CodeCanvas, a.at, name, "canvas has no property %q", name)
		}
	}
	if c.d.width == 0 || c.d.height == 0 {
		return compileErr(CodeCanvas, b.at, "canvas", "canvas must set both width and height")
	}
	return nil
}

func constant(e expr) (float64, bool) {
	switch e := e.(type) {
	case *numberExpr:
		return e.value, true
	case *negExpr:
		v, ok := constant(e.operand)
		return -v, ok
	}
	return 0, false
}

// match enumerates the substitutions of a selector: distinct objects of compatible
// types for which every where clause was stated in the substance.
func (c *compiler) match(b *block) ([]map[string]*object, *Error) {
	declared := map[string]bool{}
	for _, d := range b.decls {
		if _, ok := c.vocab.types[d.typ]; !ok {
			return nil, compileErr(CodeTypeNotFound, d.at, d.typ, "type %q is not declared", d.typ)
		}
		if declared[d.name] {
			return nil, compileErr(CodeDuplicateName, d.at, d.name, "selector variable %q is declared twice", d.name)
		}
		declared[d.name] = true
	}
	for _, w := range b.where {
		decl, ok := c.vocab.predicates[w.pred]
		if !ok {
			return nil, compileErr(CodePredicateNotFound, w.at, w.pred, "predicate %q is not declared", w.pred)
		}
		if len(w.args) != len(decl.params) {
			return nil, compileErr(CodeArityMismatch, w.at, w.pred,
				"predicate %q expects %d arguments, got %d", w.pred, len(decl.params), len(w.args))
		}
		for _, a := range w.args {
			if !declared[a.text] {
				return nil, compileErr(CodeVarNotFound, a.at, a.text, "variable %q is not declared by this selector", a.text)
			}
		}
	}

	var (
		out   []map[string]*object
		cur   = map[string]*object{}
		used  = map[*object]bool{}
		limit *Error
	)
	var walk func(i int)
	walk = func(i int) {
		if limit != nil {
			return
		}
		if i == len(b.decls) {
			for _, w := range b.where {
				args := make([]string, len(w.args))
				for k, a := range w.args {
					args[k] = cur[a.text].name
				}
				if !c.sub.holds(w.pred, args) {
					return
				}
			}
			if len(out) == maxMatches {
				limit = compileErr(CodeSelector, b.at, "", "selector matches more than %d substitutions", maxMatches)
				return
			}
			out = append(out, maps.Clone(cur))
			return
		}
		d := b.decls[i]
		for _, obj := range c.sub.order {
			if used[obj] || !c.vocab.isSubtype(obj.typ, d.typ) {
				continue
			}
			used[obj] = true
			cur[d.name] = obj
			walk(i + 1)
			delete(cur, d.name)
			used[obj] = false
		}
	}
	walk(0)
	return out, limit
}

// bind records the assignments of every substitution of b. Goals and layering
// statements are kept until all fields can be resolved.
func (c *compiler) bind(b *block) *Error {
	subs, err := c.match(b)
	if err != nil {
		return err
	}
	for _, vars := range subs {
		desc := make([]string, len(b.decls))
		for i, d := range b.decls {
			desc[i] = d.name + "=" + vars[d.name].name
		}
		e := &env{vars: vars, locals: map[string]*binding{}, desc: strings.Join(desc, ", ")}
		for _, s := range b.stmts {
			if a, ok := s.(*assignStmt); ok {
				if err := c.assign(a, e); err != nil {
					return err
				}
				continue
			}
			c.pending = append(c.pending, pendingStmt{stmt: s, env: e})
		}
	}
	return nil
}

func (c *compiler) newBinding(name string, e expr, en *env) *binding {
	c.seq++
	return &binding{name: name, expr: e, env: en, seq: c.seq}
}

func (c *compiler) assign(s *assignStmt, e *env) *Error {
	parts := s.target.parts
	switch len(parts) {
	case 1:
		if _, isVar := e.vars[parts[0]]; isVar {
			return compileErr(CodeTypeMismatch, s.at, parts[0], "cannot assign to selector variable %q", parts[0])
		}
		b := c.newBinding(parts[0], s.value, e)
		e.locals[parts[0]] = b
		c.locals = append(c.locals, b)
	case 2:
		obj, ok := e.vars[parts[0]]
		if !ok {
			return compileErr(CodeVarNotFound, s.target.at, parts[0], "variable %q is not declared by this selector", parts[0])
		}
		field := parts[1]
		if field == "label" || field == "name" {
			return compileErr(CodeProperty, s.target.at, s.target.String(), "%s is read-only", field)
		}
		fields := c.fields[obj.name]
		if fields == nil {
			fields = map[string]*binding{}
			c.fields[obj.name] = fields
		}
		if _, seen := fields[field]; !seen {
			c.fieldOrder[obj.name] = append(c.fieldOrder[obj.name], field)
		}
		fields[field] = c.newBinding(obj.name+"."+field, s.value, e)
	default:
		return compileErr(CodePathNotFound, s.target.at, s.target.String(),
			"cannot assign to %s: only fields of selector variables can be set", s.target)
	}
	return nil
}

// resolveAll evaluates every binding in a fixed order so variable sampling is
// deterministic. Overridden assignments are never evaluated.
func (c *compiler) resolveAll() *Error {
	for _, obj := range c.sub.order {
		for _, f := range c.fieldOrder[obj.name] {
			if _, err := c.resolve(c.fields[obj.name][f]); err != nil {
				return err
			}
		}
	}
	for _, b := range c.locals {
		if b.env.locals[b.name] != b {
			continue
		}
		if _, err := c.resolve(b); err != nil {
			return err
		}
	}
	sort.SliceStable(c.d.shapes, func(i, j int) bool { return c.d.shapes[i].seq < c.d.shapes[j].seq })
	return nil
}

func (c *compiler) resolve(b *binding) (value, *Error) {
	switch b.state {
	case resolved:
		return b.result, nil
	case resolving:
		return value{}, compileErr(CodeCyclicDefinition, b.expr.position(), b.name, "%s is defined in terms of itself", b.name)
	}
	b.state = resolving

	var (
		v   value
		err *Error
	)
	if se, ok := b.expr.(*shapeExpr); ok {
		v, err = c.shape(se, b)
	} else {
		v, err = c.eval(b.expr, b.env, hintAny)
	}
	if err != nil {
		return value{}, err
	}
	b.state = resolved
	b.result = v
	return v, nil
}

// hint selects the sampling range for a free variable.
type hint int

const (
	hintAny hint = iota
	hintCenter
	hintX
	hintY
	hintRadius
	hintSize
)

func (h hint) component(i int) hint {
	if h != hintCenter {
		return h
	}
	if i == 0 {
		return hintX
	}
	return hintY
}

func hintFor(prop string) hint {
	switch prop {
	case "center":
		return hintCenter
	case "r":
		return hintRadius
	case "width", "height":
		return hintSize
	}
	return hintAny
}

// free allocates a variable and samples its initial value.
func (c *compiler) free(h hint, name string) numFn {
	w, ht := c.d.width, c.d.height
	m := math.Min(w, ht)
	var lo, hi float64
	switch h {
	case hintX:
		lo, hi = 0.1*w, 0.9*w
	case hintY:
		lo, hi = 0.1*ht, 0.9*ht
	case hintRadius:
		lo, hi = 0.05*m, 0.15*m
	case hintSize:
		lo, hi = 0.1*m, 0.25*m
	default:
		lo, hi = 0, 0.25*m
	}
	i := len(c.d.x)
	c.d.x = append(c.d.x, lo+c.rng.Float64()*(hi-lo))
	c.d.varNames = append(c.d.varNames, name)
	return variable(i)
}

func (c *compiler) freeVec(name string) vecFn {
	return pair(c.free(hintX, name+".x"), c.free(hintY, name+".y"))
}

func (c *compiler) shape(se *shapeExpr, b *binding) (value, *Error) {
	props, ok := shapeKinds[se.kind]
	if !ok {
		return value{}, compileErr(CodeUnknownShape, se.at, se.kind, "unknown shape %q", se.kind)
	}
	s := &Shape{Name: b.name, Kind: se.kind, seq: b.seq}
	set := map[string]bool{}
	for _, p := range se.props {
		kind, ok := props[p.name]
		if !ok {
			return value{}, compileErr(CodeProperty, p.at, p.name, "%s has no property %q", se.kind, p.name)
		}
		if set[p.name] {
			return value{}, compileErr(CodeDuplicateName, p.at, p.name, "property %q is set twice", p.name)
		}
		set[p.name] = true
		if _, isFree := p.value.(*freeExpr); isFree && kind == propVec {
			s.center = c.freeVec(b.name + "." + p.name)
			continue
		}
		v, err := c.eval(p.value, b.env, hintFor(p.name))
		if err != nil {
			return value{}, err
		}
		if !s.set(p.name, kind, v) {
			return value{}, compileErr(CodeProperty, p.value.position(), p.name,
				"property %q of %s expects %s, got %s", p.name, se.kind, kind, v.kind)
		}
	}
	c.defaults(s, set)
	c.d.shapes = append(c.d.shapes, s)
	return value{kind: kindShape, shape: s}, nil
}

// defaults fills unset properties. Geometry is sampled; colors are drawn from the
// same generator so the variation fully determines the picture.
func (c *compiler) defaults(s *Shape, set map[string]bool) {
	if !set["center"] {
		s.center = c.freeVec(s.Name + ".center")
	}
	switch s.Kind {
	case Circle:
		if !set["r"] {
			s.r = c.free(hintRadius, s.Name+".r")
		}
	case Rectangle, Image:
		if !set["width"] {
			s.width = c.free(hintSize, s.Name+".width")
		}
		if !set["height"] {
			s.height = c.free(hintSize, s.Name+".height")
		}
	case Equation, Text:
		if !set["fontSize"] {
			s.fontSize = constNum(14)
		}
		s.width = textWidth(s.fontSize, s.text)
		s.height = s.fontSize
	}

	switch s.Kind {
	case Circle, Rectangle:
		if !set["fillColor"] {
			s.fill = hsv(c.rng.Float64()*360, 0.5, 0.9, 0.5)
		}
		if !set["strokeColor"] {
			s.stroke = noColor
			if set["strokeWidth"] {
				s.stroke = namedColors["black"]
			}
		}
		if !set["strokeWidth"] {
			s.strokeWidth = constNum(0)
			if set["strokeColor"] {
				s.strokeWidth = constNum(1)
			}
		}
	case Equation, Text:
		if !set["fillColor"] {
			s.fill = namedColors["black"]
		}
		s.stroke = noColor
	case Image:
		s.fill, s.stroke = noColor, noColor
	}
}

func (c *compiler) eval(e expr, en *env, h hint) (value, *Error) {
	switch e := e.(type) {
	case *numberExpr:
		return numValue(constNum(e.value), true), nil
	case *stringExpr:
		return strValue(e.value), nil
	case *freeExpr:
		name := fmt.Sprintf("?@%d:%d", e.at.line, e.at.col)
		if h == hintCenter {
			return vecValue(c.freeVec(name), false), nil
		}
		return numValue(c.free(h, name), false), nil
	case *pathExpr:
		return c.lookup(e, en)
	case *vectorExpr:
		var xs [2]value
		for i, el := range e.elems {
			v, err := c.eval(el, en, h.component(i))
			if err != nil {
				return value{}, err
			}
			if v.kind != kindNum {
				return value{}, compileErr(CodeTypeMismatch, el.position(), "", "vector components must be numbers, got %s", v.kind)
			}
			xs[i] = v
		}
		return vecValue(pair(xs[0].num, xs[1].num), xs[0].constant && xs[1].constant), nil
	case *negExpr:
		v, err := c.eval(e.operand, en, h)
		if err != nil {
			return value{}, err
		}
		switch v.kind {
		case kindNum:
			f := v.num
			return numValue(func(x []float64) float64 { return -f(x) }, v.constant), nil
		case kindVec:
			f := v.vec
			return vecValue(func(x []float64) vec2 { return f(x).scale(-1) }, v.constant), nil
		}
		return value{}, compileErr(CodeTypeMismatch, e.at, "-", "cannot negate a %s", v.kind)
	case *binaryExpr:
		return c.arith(e, en)
	case *callExpr:
		return c.call(e, en)
	case *shapeExpr:
		return value{}, compileErr(CodeProperty, e.at, e.kind, "a shape can only be assigned to a field")
	}
	return value{}, compileErr(CodeParse, e.position(), "", "unsupported expression")
}

func (c *compiler) lookup(p *pathExpr, en *env) (value, *Error) {
	head, rest := p.parts[0], p.parts[1:]
	var v value

	if obj, ok := en.vars[head]; ok {
		if len(rest) == 0 {
			return value{}, compileErr(CodeTypeMismatch, p.at, head, "selector variable %q is not a value; use one of its fields", head)
		}
		field := rest[0]
		rest = rest[1:]
		if b := c.fields[obj.name][field]; b != nil {
			var err *Error
			if v, err = c.resolve(b); err != nil {
				return value{}, err
			}
		} else {
			switch field {
			case "label":
				v = strValue(obj.label)
			case "name":
				v = strValue(obj.name)
			default:
				return value{}, compileErr(CodePathNotFound, p.at, obj.name+"."+field, "%s.%s is not defined (referenced as %s.%s)", obj.name, field, head, field)
			}
		}
	} else if b, ok := en.locals[head]; ok {
		var err *Error
		if v, err = c.resolve(b); err != nil {
			return value{}, err
		}
	} else {
		return value{}, compileErr(CodeVarNotFound, p.at, head, "%q is not defined in this block", head)
	}

	for _, name := range rest {
		next, ok := member(v, name)
		if !ok {
			return value{}, compileErr(CodePathNotFound, p.at, p.String(), "%s has no member %q", v.kind, name)
		}
		v = next
	}
	return v, nil
}

func member(v value, name string) (value, bool) {
	switch v.kind {
	case kindShape:
		return v.shape.property(name)
	case kindVec:
		f := v.vec
		switch name {
		case "x":
			return numValue(func(x []float64) float64 { return f(x).X }, v.constant), true
		case "y":
			return numValue(func(x []float64) float64 { return f(x).Y }, v.constant), true
		}
	}
	return value{}, false
}

func (c *compiler) arith(e *binaryExpr, en *env) (value, *Error) {
	l, err := c.eval(e.left, en, hintAny)
	if err != nil {
		return value{}, err
	}
	r, err := c.eval(e.right, en, hintAny)
	if err != nil {
		return value{}, err
	}
	k := l.constant && r.constant
	mismatch := compileErr(CodeTypeMismatch, e.at, e.op, "cannot apply '%s' to %s and %s", e.op, l.kind, r.kind)

	switch e.op {
	case "+", "-":
		sign := 1.0
		if e.op == "-" {
			sign = -1
		}
		switch {
		case l.kind == kindNum && r.kind == kindNum:
			a, b := l.num, r.num
			return numValue(func(x []float64) float64 { return a(x) + sign*b(x) }, k), nil
		case l.kind == kindVec && r.kind == kindVec:
			a, b := l.vec, r.vec
			return vecValue(func(x []float64) vec2 { return a(x).add(b(x).scale(sign)) }, k), nil
		case l.kind == kindString && r.kind == kindString && e.op == "+":
			return strValue(l.str + r.str), nil
		}
	case "*":
		switch {
		case l.kind == kindNum && r.kind == kindNum:
			a, b := l.num, r.num
			return numValue(func(x []float64) float64 { return a(x) * b(x) }, k), nil
		case l.kind == kindNum && r.kind == kindVec:
			a, b := l.num, r.vec
			return vecValue(func(x []float64) vec2 { return b(x).scale(a(x)) }, k), nil
		case l.kind == kindVec && r.kind == kindNum:
			a, b := l.vec, r.num
			return vecValue(func(x []float64) vec2 { return a(x).scale(b(x)) }, k), nil
		}
	case "/":
		switch {
		case l.kind == kindNum && r.kind == kindNum:
			a, b := l.num, r.num
			return numValue(func(x []float64) float64 { return a(x) / b(x) }, k), nil
		case l.kind == kindVec && r.kind == kindNum:
			a, b := l.vec, r.num
			return vecValue(func(x []float64) vec2 { return a(x).scale(1 / b(x)) }, k), nil
		}
	default:
		return value{}, compileErr(CodeTypeMismatch, e.at, e.op, "comparison '%s' is only allowed after ensure or encourage", e.op)
	}
	return value{}, mismatch
}

// goalFunctions may only appear directly after ensure or encourage.
var goalFunctions = map[string]bool{
	"contains": true, "disjoint": true, "overlapping": true,
	"near": true, "equal": true, "lessThan": true,
}

func (c *compiler) call(e *callExpr, en *env) (value, *Error) {
	if goalFunctions[e.name] {
		return value{}, compileErr(CodeTypeMismatch, e.at, e.name, "%s can only be used directly after ensure or encourage", e.name)
	}
	args, err := c.args(e, en)
	if err != nil {
		return value{}, err
	}
	argErr := func(want string) *Error {
		return compileErr(CodeTypeMismatch, e.at, e.name, "%s expects %s", e.name, want)
	}
	allConst := true
	for _, a := range args {
		allConst = allConst && a.constant
	}

	switch e.name {
	case "norm":
		if len(args) != 1 || args[0].kind != kindVec {
			return value{}, argErr("one vector")
		}
		f := args[0].vec
		return numValue(func(x []float64) float64 { return f(x).norm() }, allConst), nil
	case "dist":
		if len(args) != 2 {
			return value{}, argErr("two points or shapes")
		}
		a, okA := point(args[0])
		b, okB := point(args[1])
		if !okA || !okB {
			return value{}, argErr("two points or shapes")
		}
		return numValue(func(x []float64) float64 { return a(x).sub(b(x)).norm() }, allConst), nil
	case "max", "min":
		if len(args) != 2 || args[0].kind != kindNum || args[1].kind != kindNum {
			return value{}, argErr("two numbers")
		}
		a, b := args[0].num, args[1].num
		pick := math.Max
		if e.name == "min" {
			pick = math.Min
		}
		return numValue(func(x []float64) float64 { return pick(a(x), b(x)) }, allConst), nil
	case "abs", "sqrt":
		if len(args) != 1 || args[0].kind != kindNum {
			return value{}, argErr("one number")
		}
		f := args[0].num
		if e.name == "abs" {
			return numValue(func(x []float64) float64 { return math.Abs(f(x)) }, allConst), nil
		}
		return numValue(func(x []float64) float64 { return math.Sqrt(math.Max(0, f(x))) }, allConst), nil
	case "rgba":
		if len(args) != 4 || !allConst {
			return value{}, argErr("four constant numbers")
		}
		var ch [4]float64
		for i, a := range args {
			if a.kind != kindNum {
				return value{}, argErr("four constant numbers")
			}
			ch[i] = clamp01(a.num(nil))
		}
		return value{kind: kindColor, color: Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, constant: true}, nil
	}
	return value{}, compileErr(CodeUnknownFunction, e.at, e.name, "unknown function %q", e.name)
}

func (c *compiler) args(e *callExpr, en *env) ([]value, *Error) {
	out := make([]value, len(e.args))
	for i, a := range e.args {
		v, err := c.eval(a, en, hintAny)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// point accepts a vector or a shape, whose center is used.
func point(v value) (vecFn, bool) {
	switch v.kind {
	case kindVec:
		return v.vec, true
	case kindShape:
		return v.shape.center, true
	}
	return nil, false
}

type goalKind int

const (
	// inequality is satisfied when g(x) <= 0.
	inequality goalKind = iota
	// equality is satisfied when g(x), a non-negative distance, is 0.
	equality
	// objective is only ever minimized.
	objective
)

func (c *compiler) statement(s stmt, en *env) *Error {
	switch s := s.(type) {
	case *goalStmt:
		return c.goal(s, en)
	case *layerStmt:
		upper, err := c.layerTarget(s.upper, en)
		if err != nil {
			return err
		}
		lower, err := c.layerTarget(s.lower, en)
		if err != nil {
			return err
		}
		c.layers = append(c.layers, [2]*Shape{upper, lower})
	}
	return nil
}

func (c *compiler) layerTarget(p *pathExpr, en *env) (*Shape, *Error) {
	v, err := c.lookup(p, en)
	if err != nil {
		return nil, err
	}
	if v.kind != kindShape {
		return nil, compileErr(CodeTypeMismatch, p.at, p.String(), "layer expects a shape, %s is a %s", p, v.kind)
	}
	return v.shape, nil
}

func (c *compiler) goal(s *goalStmt, en *env) *Error {
	keyword := "encourage"
	if s.ensure {
		keyword = "ensure"
	}
	name := keyword + " " + s.source
	if en.desc != "" {
		name += " [" + en.desc + "]"
	}

	var (
		fn   numFn
		kind goalKind
		err  *Error
	)
	switch v := s.value.(type) {
	case *binaryExpr:
		if isComparison(v.op) {
			fn, kind, err = c.comparison(v, en)
			break
		}
		fn, kind, err = c.plainGoal(v, en, s.ensure)
	case *callExpr:
		if goalFunctions[v.name] {
			fn, kind, err = c.goalCall(v, en)
			break
		}
		fn, kind, err = c.plainGoal(v, en, s.ensure)
	default:
		fn, kind, err = c.plainGoal(v, en, s.ensure)
	}
	if err != nil {
		return err
	}

	if s.ensure {
		if kind == objective {
			return compileErr(CodeTypeMismatch, s.at, s.source, "%s is an objective; use encourage", s.source)
		}
		c.d.constraints = append(c.d.constraints, goal{name: name, fn: fn})
		return nil
	}
	switch kind {
	case inequality:
		fn = hinge(fn)
	case equality:
		fn = squared(fn)
	}
	c.d.objectives = append(c.d.objectives, goal{name: name, fn: fn})
	return nil
}

func isComparison(op string) bool {
	switch op {
	case "==", "<", ">", "<=", ">=":
		return true
	}
	return false
}

func (c *compiler) plainGoal(e expr, en *env, ensure bool) (numFn, goalKind, *Error) {
	v, err := c.eval(e, en, hintAny)
	if err != nil {
		return nil, 0, err
	}
	if v.kind != kindNum {
		return nil, 0, compileErr(CodeTypeMismatch, e.position(), "", "a goal must be a number, got %s", v.kind)
	}
	if ensure {
		return v.num, inequality, nil
	}
	return v.num, objective, nil
}

func (c *compiler) comparison(e *binaryExpr, en *env) (numFn, goalKind, *Error) {
	l, err := c.eval(e.left, en, hintAny)
	if err != nil {
		return nil, 0, err
	}
	r, err := c.eval(e.right, en, hintAny)
	if err != nil {
		return nil, 0, err
	}
	if e.op == "==" && l.kind == kindVec && r.kind == kindVec {
		a, b := l.vec, r.vec
		return func(x []float64) float64 { return a(x).sub(b(x)).norm() }, equality, nil
	}
	if l.kind != kindNum || r.kind != kindNum {
		return nil, 0, compileErr(CodeTypeMismatch, e.at, e.op, "cannot compare %s with %s", l.kind, r.kind)
	}
	a, b := l.num, r.num
	switch e.op {
	case "==":
		return func(x []float64) float64 { return math.Abs(a(x) - b(x)) }, equality, nil
	case "<", "<=":
		return func(x []float64) float64 { return a(x) - b(x) }, inequality, nil
	default:
		return func(x []float64) float64 { return b(x) - a(x) }, inequality, nil
	}
}

func (c *compiler) goalCall(e *callExpr, en *env) (numFn, goalKind, *Error) {
	args, err := c.args(e, en)
	if err != nil {
		return nil, 0, err
	}
	argErr := func(want string) *Error {
		return compileErr(CodeTypeMismatch, e.at, e.name, "%s expects %s", e.name, want)
	}
	// An optional trailing number is a padding or offset.
	pad := constNum(0)
	if len(args) == 3 {
		if args[2].kind != kindNum {
			return nil, 0, argErr("a number as its third argument")
		}
		pad = args[2].num
		args = args[:2]
	}
	if len(args) != 2 {
		return nil, 0, argErr("two arguments and an optional number")
	}

	switch e.name {
	case "contains", "disjoint", "overlapping":
		if args[0].kind != kindShape || args[1].kind != kindShape {
			return nil, 0, argErr("two shapes")
		}
		a, b := args[0].shape, args[1].shape
		rel := map[string]func(a, b extent, pad float64) float64{
			"contains": contains, "disjoint": disjoint, "overlapping": overlapping,
		}[e.name]
		return func(x []float64) float64 { return rel(a.extent(x), b.extent(x), pad(x)) }, inequality, nil
	case "lessThan":
		if args[0].kind != kindNum || args[1].kind != kindNum {
			return nil, 0, argErr("two numbers")
		}
		a, b := args[0].num, args[1].num
		return func(x []float64) float64 { return a(x) - b(x) + pad(x) }, inequality, nil
	case "equal":
		switch {
		case args[0].kind == kindNum && args[1].kind == kindNum:
			a, b := args[0].num, args[1].num
			return func(x []float64) float64 { return math.Abs(a(x) - b(x)) }, equality, nil
		case args[0].kind == kindVec && args[1].kind == kindVec:
			a, b := args[0].vec, args[1].vec
			return func(x []float64) float64 { return a(x).sub(b(x)).norm() }, equality, nil
		}
		return nil, 0, argErr("two numbers or two vectors")
	case "near":
		a, okA := point(args[0])
		b, okB := point(args[1])
		if !okA || !okB {
			return nil, 0, argErr("two points or shapes")
		}
		return func(x []float64) float64 {
			d := math.Max(0, a(x).sub(b(x)).norm()-pad(x))
			return d * d
		}, objective, nil
	}
	return nil, 0, compileErr(CodeUnknownFunction, e.at, e.name, "unknown function %q", e.name)
}

// implicitConstraints keeps every shape on the canvas with a positive size.
func (c *compiler) implicitConstraints() {
	w, h := c.d.width, c.d.height
	for _, s := range c.d.shapes {
		c.d.constraints = append(c.d.constraints, goal{
			name: "keep " + s.Name + " on the canvas",
			fn:   func(x []float64) float64 { return onCanvas(s.extent(x), w, h) },
		})
		switch s.Kind {
		case Circle:
			c.d.constraints = append(c.d.constraints, goal{
				name: "minimum radius of " + s.Name,
				fn:   func(x []float64) float64 { return 1 - s.r(x) },
			})
		case Rectangle, Image:
			c.d.constraints = append(c.d.constraints, goal{
				name: "minimum size of " + s.Name,
				fn:   func(x []float64) float64 { return math.Max(1-s.width(x), 1-s.height(x)) },
			})
		}
	}
}

// orderShapes applies layering to declaration order. Shapes caught in a layering
// cycle keep their declaration order.
func orderShapes(shapes []*Shape, layers [][2]*Shape) []*Shape {
	n := len(shapes)
	index := make(map[*Shape]int, n)
	for i, s := range shapes {
		index[s] = i
	}
	above := make([][]int, n)
	indeg := make([]int, n)
	for _, l := range layers {
		up, lo := index[l[0]], index[l[1]]
		if up == lo {
			continue
		}
		above[lo] = append(above[lo], up)
		indeg[up]++
	}

	out := make([]*Shape, 0, n)
	done := make([]bool, n)
	for len(out) < n {
		pick := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] == 0 {
				pick = i
				break
			}
		}
		if pick < 0 {
			for i := 0; i < n; i++ {
				if !done[i] {
					pick = i
					break
				}
			}
		}
		done[pick] = true
		out = append(out, shapes[pick])
		for _, u := range above[pick] {
			indeg[u]--
		}
	}
	return out
}
