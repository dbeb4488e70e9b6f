package cppsource

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"oopcheck/internal/clangast"
)

var declaratorTypes = map[string]bool{
	"field_identifier":         true,
	"identifier":               true,
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"array_declarator":         true,
	"function_declarator":      true,
	"init_declarator":          true,
	"parenthesized_declarator": true,
}

// declarators returns the declarators of a declaration, in source order.
func declarators(decl *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		if c := decl.NamedChild(i); declaratorTypes[c.Type()] {
			out = append(out, c)
		}
	}
	return out
}

// unwrap strips pointer, reference and array declarators until it reaches
// a name or a function declarator. suffix spells the stripped operators
// the way Clang prints them ("*", "&", "*&"). Arrays decay to pointers.
func unwrap(d *sitter.Node) (core *sitter.Node, suffix string) {
	for d != nil {
		switch d.Type() {
		case "pointer_declarator", "abstract_pointer_declarator":
			suffix += "*"
			d = d.ChildByFieldName("declarator")
		case "array_declarator", "abstract_array_declarator":
			suffix += "*"
			d = d.ChildByFieldName("declarator")
		case "reference_declarator", "abstract_reference_declarator":
			if c := d.Child(0); c != nil && c.Type() == "&&" {
				suffix += "&&"
			} else {
				suffix += "&"
			}
			d = firstNamed(d)
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			d = firstNamed(d)
		default:
			return d, suffix
		}
	}
	return nil, suffix
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

func joinType(base, suffix string) string {
	if suffix == "" || base == "" {
		return base
	}
	return base + " " + suffix
}

// baseType is the declaration's cv-qualifiers followed by its type
// specifier, e.g. "const std::string".
func (l *lowering) baseType(decl *sitter.Node) string {
	t := decl.ChildByFieldName("type")
	if t == nil {
		return ""
	}
	var parts []string
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		if c := decl.NamedChild(i); c.Type() == "type_qualifier" {
			parts = append(parts, l.text(c))
		}
	}
	return strings.Join(append(parts, l.text(t)), " ")
}

func hasStorageClass(decl *sitter.Node, src []byte, class string) bool {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		c := decl.NamedChild(i)
		if c.Type() == "storage_class_specifier" && c.Content(src) == class {
			return true
		}
	}
	return false
}

// params returns the parameter types as Clang spells them and a
// ParmVarDecl per named or unnamed parameter. "(void)" is an empty list.
func (l *lowering) params(list *sitter.Node) ([]string, []*clangast.Node) {
	types := []string{}
	var nodes []*clangast.Node
	if list == nil {
		return types, nodes
	}

	for i := 0; i < int(list.ChildCount()); i++ {
		c := list.Child(i)
		switch c.Type() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			typ, name := l.param(c)
			types = append(types, typ)
			nodes = append(nodes, &clangast.Node{
				ID:   l.id(),
				Kind: clangast.KindParmVar,
				Name: name,
				Type: &clangast.QualType{QualType: typ},
				Loc:  l.loc(c),
			})
		case "...":
			types = append(types, "...")
		}
	}

	if len(types) == 1 && types[0] == "void" && len(nodes) == 1 && nodes[0].Name == "" {
		return []string{}, nil
	}
	return types, nodes
}

func (l *lowering) param(p *sitter.Node) (typ, name string) {
	base := l.baseType(p)
	if p.Type() == "variadic_parameter_declaration" {
		base += "..."
	}
	d := p.ChildByFieldName("declarator")
	if d == nil {
		return base, ""
	}

	core, suffix := unwrap(d)
	if core == nil {
		return joinType(base, suffix), ""
	}
	switch core.Type() {
	case "identifier":
		return joinType(base, suffix), l.text(core)
	case "function_declarator", "abstract_function_declarator":
		return l.pointerToFunction(base, d)
	}
	return joinType(base, suffix), ""
}

// pointerToFunction spells a function pointer declarator without its name,
// "void (*)(int)" for "void (*cb)(int)", and returns the name.
func (l *lowering) pointerToFunction(base string, d *sitter.Node) (typ, name string) {
	written := l.text(d)
	if id := findIdentifier(d); id != nil {
		name = l.text(id)
		written = strings.Replace(written, name, "", 1)
	}
	return base + " " + strings.Join(strings.Fields(written), ""), name
}

func containsFunctionDeclarator(n *sitter.Node) bool {
	if n.Type() == "function_declarator" {
		return true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsFunctionDeclarator(n.NamedChild(i)) {
			return true
		}
	}
	return false
}

func findIdentifier(n *sitter.Node) *sitter.Node {
	if n.Type() == "identifier" || n.Type() == "field_identifier" {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "parameter_list" {
			continue
		}
		if id := findIdentifier(c); id != nil {
			return id
		}
	}
	return nil
}

// qualifiers returns the trailing cv, ref and exception qualifiers of a
// function declarator.
func (l *lowering) qualifiers(fn *sitter.Node) string {
	var out []string
	for i := 0; i < int(fn.NamedChildCount()); i++ {
		c := fn.NamedChild(i)
		switch c.Type() {
		case "type_qualifier", "ref_qualifier", "noexcept", "throw_specifier":
			out = append(out, l.text(c))
		}
	}
	return strings.Join(out, " ")
}
