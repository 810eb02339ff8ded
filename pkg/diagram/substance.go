package diagram

import "github.com/alecthomas/participle/v2/lexer"

// object is a substance declaration such as "Set A".
type object struct {
	name  string
	typ   string
	label string
	at    pos
}

// relation is a predicate application such as "Subset(B, A)".
type relation struct {
	pred string
	args []string
	at   pos
}

type substance struct {
	objects   map[string]*object
	order     []*object
	relations []relation
}

// holds reports whether the relation pred(args...) was stated.
func (s *substance) holds(pred string, args []string) bool {
	for _, r := range s.relations {
		if r.pred != pred || len(r.args) != len(args) {
			continue
		}
		match := true
		for i := range args {
			if r.args[i] != args[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func parseSubstance(text string, vocab *vocabulary) (*substance, *Error) {
	file, err := substanceParser.ParseString("substance", text)
	if err != nil {
		return nil, syntaxErr("substance", text, err)
	}
	sub := &substance{objects: map[string]*object{}}
	at := func(p lexer.Position) pos { return positionOf("substance", p) }

	lookup := func(n *nameNode) (*object, *Error) {
		obj, ok := sub.objects[n.Name]
		if !ok {
			return nil, compileErr(CodeVarNotFound, at(n.Pos), n.Name, "object %q is not declared", n.Name)
		}
		return obj, nil
	}
	setLabels := func(list *labelList, label func(*object) string) *Error {
		if list.All {
			for _, obj := range sub.order {
				obj.label = label(obj)
			}
			return nil
		}
		for _, n := range list.Names {
			obj, err := lookup(n)
			if err != nil {
				return err
			}
			obj.label = label(obj)
		}
		return nil
	}

	for _, st := range file.Stmts {
		switch {
		case st.AutoLabel != nil:
			if err := setLabels(st.AutoLabel, func(o *object) string { return o.name }); err != nil {
				return nil, err
			}
		case st.NoLabel != nil:
			if err := setLabels(st.NoLabel, func(*object) string { return "" }); err != nil {
				return nil, err
			}
		case st.Label != nil:
			obj, err := lookup(st.Label.Object)
			if err != nil {
				return nil, err
			}
			obj.label = unquote(st.Label.Text)
		case st.Relation != nil:
			rel, err := checkRelation(st.Relation, vocab, lookup)
			if err != nil {
				return nil, err
			}
			sub.relations = append(sub.relations, rel)
		case st.Decl != nil:
			if _, ok := vocab.types[st.Decl.Type]; !ok {
				return nil, compileErr(CodeTypeNotFound, at(st.Decl.Pos), st.Decl.Type, "type %q is not declared", st.Decl.Type)
			}
			for _, n := range st.Decl.Names {
				if _, dup := sub.objects[n.Name]; dup {
					return nil, compileErr(CodeDuplicateName, at(n.Pos), n.Name, "object %q is declared twice", n.Name)
				}
				obj := &object{name: n.Name, typ: st.Decl.Type, at: at(n.Pos)}
				sub.objects[n.Name] = obj
				sub.order = append(sub.order, obj)
			}
		}
	}
	return sub, nil
}

func checkRelation(r *relationNode, vocab *vocabulary, lookup func(*nameNode) (*object, *Error)) (relation, *Error) {
	at := positionOf("substance", r.Pos)
	decl, ok := vocab.predicates[r.Pred]
	if !ok {
		return relation{}, compileErr(CodePredicateNotFound, at, r.Pred, "predicate %q is not declared", r.Pred)
	}
	if len(r.Args) != len(decl.params) {
		return relation{}, compileErr(CodeArityMismatch, at, r.Pred,
			"predicate %q expects %d arguments, got %d", r.Pred, len(decl.params), len(r.Args))
	}
	rel := relation{pred: r.Pred, at: at}
	for i, arg := range r.Args {
		obj, err := lookup(arg)
		if err != nil {
			return relation{}, err
		}
		if !vocab.isSubtype(obj.typ, decl.params[i]) {
			return relation{}, compileErr(CodeTypeMismatch, positionOf("substance", arg.Pos), arg.Name,
				"argument %d of %q must be %s, but %q is %s", i+1, r.Pred, decl.params[i], obj.name, obj.typ)
		}
		rel.args = append(rel.args, obj.name)
	}
	return rel, nil
}
