package diagram

// typeDecl is a domain type, optionally a subtype of parent.
type typeDecl struct {
	name     string
	parent   string
	at       pos
	parentAt pos
}

// predicateDecl is a domain predicate with typed parameters.
type predicateDecl struct {
	name   string
	params []string
	at     pos
}

// vocabulary is the checked domain program.
type vocabulary struct {
	types      map[string]*typeDecl
	typeOrder  []string
	predicates map[string]*predicateDecl
	predOrder  []string
}

// isSubtype reports whether t equals of or inherits from it.
func (v *vocabulary) isSubtype(t, of string) bool {
	seen := map[string]bool{}
	for t != "" && !seen[t] {
		if t == of {
			return true
		}
		seen[t] = true
		decl, ok := v.types[t]
		if !ok {
			return false
		}
		t = decl.parent
	}
	return false
}

func parseDomain(text string) (*vocabulary, *Error) {
	file, err := domainParser.ParseString("domain", text)
	if err != nil {
		return nil, syntaxErr("domain", text, err)
	}
	v := &vocabulary{
		types:      map[string]*typeDecl{},
		predicates: map[string]*predicateDecl{},
	}

	for _, d := range file.Decls {
		switch {
		case d.Type != nil:
			decl := &typeDecl{name: d.Type.Name, at: positionOf("domain", d.Type.Pos)}
			if d.Type.Parent != nil {
				decl.parent = d.Type.Parent.Name
				decl.parentAt = positionOf("domain", d.Type.Parent.Pos)
			}
			if _, dup := v.types[decl.name]; dup {
				return nil, compileErr(CodeDuplicateName, decl.at, decl.name, "type %q is declared twice", decl.name)
			}
			v.types[decl.name] = decl
			v.typeOrder = append(v.typeOrder, decl.name)
		case d.Predicate != nil:
			decl := &predicateDecl{name: d.Predicate.Name, at: positionOf("domain", d.Predicate.Pos)}
			for _, param := range d.Predicate.Params {
				decl.params = append(decl.params, param.Type)
			}
			if _, dup := v.predicates[decl.name]; dup {
				return nil, compileErr(CodeDuplicateName, decl.at, decl.name, "predicate %q is declared twice", decl.name)
			}
			v.predicates[decl.name] = decl
			v.predOrder = append(v.predOrder, decl.name)
		}
	}

	for _, name := range v.typeOrder {
		decl := v.types[name]
		if decl.parent != "" {
			if _, ok := v.types[decl.parent]; !ok {
				return nil, compileErr(CodeTypeNotFound, decl.parentAt, decl.parent, "type %q is not declared", decl.parent)
			}
		}
	}
	for _, name := range v.predOrder {
		decl := v.predicates[name]
		for _, param := range decl.params {
			if _, ok := v.types[param]; !ok {
				return nil, compileErr(CodeTypeNotFound, decl.at, param, "type %q is not declared", param)
			}
		}
	}
	return v, nil
}
