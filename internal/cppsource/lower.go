package cppsource

import (
	"fmt"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"oopcheck/internal/clangast"
)

// lowering is the state of one Parse call. decls maps the signature key of
// every in-class function declaration to its node id; byName maps the
// qualified member name (ns::Class::name) to all ids so that a unique name
// still links when the written parameter types differ. scope holds the
// enclosing namespaces and classes.
type lowering struct {
	src        []byte
	file       string
	logger     *zap.SugaredLogger
	next       int
	decls      map[string]string
	byName     map[string][]string
	scope      []string
	unresolved int
}

func newLowering(src []byte, file string, logger *zap.SugaredLogger) *lowering {
	return &lowering{
		src:    src,
		file:   file,
		logger: logger,
		next:   1,
		decls:  make(map[string]string),
		byName: make(map[string][]string),
	}
}

func (l *lowering) id() string {
	id := fmt.Sprintf("0x%x", l.next)
	l.next++
	return id
}

func (l *lowering) text(n *sitter.Node) string {
	return strings.Join(strings.Fields(n.Content(l.src)), " ")
}

func (l *lowering) loc(n *sitter.Node) *clangast.Loc {
	p := n.StartPoint()
	return &clangast.Loc{Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}

// items lowers the declarations of a namespace-level container.
func (l *lowering) items(container *sitter.Node) []*clangast.Node {
	var out []*clangast.Node
	for i := 0; i < int(container.NamedChildCount()); i++ {
		c := container.NamedChild(i)
		switch c.Type() {
		case "class_specifier", "struct_specifier", "union_specifier":
			if rec := l.record(c); rec != nil {
				out = append(out, rec)
			}
		case "declaration", "type_definition":
			if t := c.ChildByFieldName("type"); t != nil && isRecordSpecifier(t) {
				if rec := l.record(t); rec != nil {
					out = append(out, rec)
				}
			}
		case "function_definition":
			if fn := l.definition(c); fn != nil {
				out = append(out, fn)
			}
		case "namespace_definition":
			ns := &clangast.Node{ID: l.id(), Kind: clangast.KindNamespace, Loc: l.loc(c)}
			if name := c.ChildByFieldName("name"); name != nil {
				ns.Name = l.text(name)
			}
			if body := c.ChildByFieldName("body"); body != nil {
				l.push(ns.Name)
				ns.Inner = l.items(body)
				l.pop()
			}
			out = append(out, ns)
		case "template_declaration", "linkage_specification", "declaration_list",
			"preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
			out = append(out, l.items(c)...)
		}
	}
	return out
}

func isRecordSpecifier(n *sitter.Node) bool {
	switch n.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		return n.ChildByFieldName("body") != nil
	}
	return false
}

// record lowers a class, struct or union with a body. Forward
// declarations produce nothing.
func (l *lowering) record(n *sitter.Node) *clangast.Node {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	tag := strings.TrimSuffix(n.Type(), "_specifier")
	rec := &clangast.Node{
		ID:      l.id(),
		Kind:    clangast.KindCXXRecord,
		TagUsed: tag,
		Loc:     l.loc(n),
	}
	if name := n.ChildByFieldName("name"); name != nil {
		rec.Name = className(l.text(name))
	}
	rec.Bases = l.bases(n, tag)

	l.push(rec.Name)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		rec.Inner = append(rec.Inner, l.member(body.NamedChild(i), rec.Name)...)
	}
	l.pop()
	return rec
}

func (l *lowering) push(name string) {
	if name == "" {
		name = "(anonymous)"
	}
	l.scope = append(l.scope, name)
}

func (l *lowering) pop() { l.scope = l.scope[:len(l.scope)-1] }

// qualified joins scope segments and a member name with "::".
func qualified(scope []string, name string) string {
	return strings.Join(append(append([]string{}, scope...), name), "::")
}

// bases reads the base-specifier list. Access defaults to private for
// classes and public for structs.
func (l *lowering) bases(n *sitter.Node, tag string) []clangast.Base {
	var clause *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "base_class_clause" {
			clause = c
			break
		}
	}
	if clause == nil {
		return nil
	}

	defaultAccess := "public"
	if tag == "class" {
		defaultAccess = "private"
	}

	var out []clangast.Base
	access, virtual := "", false
	for i := 0; i < int(clause.ChildCount()); i++ {
		c := clause.Child(i)
		switch c.Type() {
		case "access_specifier":
			access = l.text(c)
		case "virtual":
			virtual = true
		case "type_identifier", "qualified_identifier", "template_type":
			b := clangast.Base{Type: clangast.QualType{QualType: l.text(c)}, Access: access, IsVirtual: virtual}
			if b.Access == "" {
				b.Access = defaultAccess
			}
			out = append(out, b)
			access, virtual = "", false
		}
	}
	return out
}

// member lowers one entry of a class body.
func (l *lowering) member(n *sitter.Node, class string) []*clangast.Node {
	switch n.Type() {
	case "field_declaration", "declaration":
		var out []*clangast.Node
		if t := n.ChildByFieldName("type"); t != nil && isRecordSpecifier(t) {
			if rec := l.record(t); rec != nil {
				out = append(out, rec)
			}
		}
		for _, d := range declarators(n) {
			if fn := l.function(n, d, class, false); fn != nil {
				out = append(out, fn)
				continue
			}
			if f := l.field(n, d); f != nil {
				out = append(out, f)
			}
		}
		return out

	case "function_definition":
		if d := n.ChildByFieldName("declarator"); d != nil {
			if fn := l.function(n, d, class, true); fn != nil {
				return []*clangast.Node{fn}
			}
		}

	case "class_specifier", "struct_specifier", "union_specifier":
		if rec := l.record(n); rec != nil {
			return []*clangast.Node{rec}
		}

	case "template_declaration", "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
		var out []*clangast.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, l.member(n.NamedChild(i), class)...)
		}
		return out
	}
	return nil
}

// field lowers a data member. Static data members are VarDecls in Clang.
// A pointer to function such as "void (*cb)(int)" is a field named cb.
func (l *lowering) field(decl, d *sitter.Node) *clangast.Node {
	core, suffix := unwrap(d)
	if core == nil {
		return nil
	}

	var name, typ string
	switch core.Type() {
	case "field_identifier", "identifier":
		name, typ = l.text(core), joinType(l.baseType(decl), suffix)
	case "function_declarator":
		inner := core.ChildByFieldName("declarator")
		if !isIndirection(inner) || containsFunctionDeclarator(inner) {
			return nil
		}
		typ, name = l.pointerToFunction(l.baseType(decl), d)
		if name == "" {
			return nil
		}
	default:
		return nil
	}

	kind := clangast.KindField
	if hasStorageClass(decl, l.src, "static") {
		kind = "VarDecl"
	}
	return &clangast.Node{
		ID:   l.id(),
		Kind: kind,
		Name: name,
		Type: &clangast.QualType{QualType: typ},
		Loc:  l.loc(d),
	}
}

// isIndirection reports whether a function declarator's name position holds
// "(*name)" or "(&name)" rather than a name, i.e. the declarator declares a
// pointer or reference to function.
func isIndirection(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "parenthesized_declarator", "pointer_declarator", "reference_declarator":
		return true
	}
	return false
}

// function lowers a member function declared or defined in class.
func (l *lowering) function(decl, d *sitter.Node, class string, defined bool) *clangast.Node {
	core, suffix := unwrap(d)
	if core == nil || core.Type() != "function_declarator" {
		return nil
	}
	nameNode := core.ChildByFieldName("declarator")
	if nameNode == nil || isIndirection(nameNode) {
		return nil
	}

	n, params := l.signature(decl, core, suffix, nameNode, class)
	if n == nil {
		return nil
	}
	if defined {
		n.Inner = append(n.Inner, l.body(decl)...)
	}

	key := qualified(l.scope, n.Name)
	if _, seen := l.decls[key+params]; !seen {
		l.decls[key+params] = n.ID
	}
	l.byName[key] = append(l.byName[key], n.ID)
	return n
}

// definition lowers a namespace-level function definition. Qualified
// names (Class::method) become out-of-line member definitions linked to
// their declaration; anything else is a plain FunctionDecl.
func (l *lowering) definition(n *sitter.Node) *clangast.Node {
	d := n.ChildByFieldName("declarator")
	if d == nil {
		return nil
	}
	core, suffix := unwrap(d)
	if core == nil || core.Type() != "function_declarator" {
		return nil
	}
	nameNode := core.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil
	}

	if nameNode.Type() != "qualified_identifier" {
		fn := &clangast.Node{ID: l.id(), Kind: clangast.KindFunction, Name: l.text(nameNode), Loc: l.loc(n)}
		fn.Inner = l.body(n)
		return fn
	}

	segs := l.segments(nameNode)
	if len(segs) < 2 {
		return nil
	}
	owner := make([]string, 0, len(segs)-1)
	for _, seg := range segs[:len(segs)-1] {
		owner = append(owner, className(seg))
	}
	class := owner[len(owner)-1]

	fn, params := l.signature(n, core, suffix, nameNode, class)
	if fn == nil {
		return nil
	}
	fn.Loc = l.loc(n)
	fn.Inner = append(fn.Inner, l.body(n)...)

	if id, ok := l.previousDecl(owner, fn.Name, params); ok {
		fn.PreviousDecl = id
	} else {
		l.unresolved++
		l.logger.Debugw("no in-class declaration for definition",
			"name", qualified(append(append([]string{}, l.scope...), owner...), fn.Name))
	}
	return fn
}

// previousDecl finds the declaration an out-of-line definition refers to.
// The qualifier is looked up from the innermost enclosing namespace
// outwards; at each level an exact parameter match wins over a unique name.
func (l *lowering) previousDecl(owner []string, name, params string) (string, bool) {
	for i := len(l.scope); i >= 0; i-- {
		scope := append(append([]string{}, l.scope[:i]...), owner...)
		key := qualified(scope, name)
		if id, ok := l.decls[key+params]; ok {
			return id, true
		}
		if ids := l.byName[key]; len(ids) == 1 {
			return ids[0], true
		}
	}
	return "", false
}

// signature builds the function node without its body and returns it with
// its parameter key, the "(params) qualifiers" part of the signature.
// nameNode is either the plain member name or the qualified name of an
// out-of-line definition.
func (l *lowering) signature(decl, core *sitter.Node, suffix string, nameNode *sitter.Node, class string) (*clangast.Node, string) {
	name := l.text(nameNode)
	if nameNode.Type() == "qualified_identifier" {
		segs := l.segments(nameNode)
		name = segs[len(segs)-1]
	}
	name = strings.ReplaceAll(name, "operator ", "operator")

	kind := clangast.KindMethod
	ret := ""
	switch {
	case strings.HasPrefix(name, "~"):
		kind = clangast.KindDestructor
		name = "~" + class
		ret = "void"
	case name == class && decl.ChildByFieldName("type") == nil:
		kind = clangast.KindConstructor
		ret = "void"
	default:
		ret = joinType(l.baseType(decl), suffix)
		if ret == "" {
			return nil, ""
		}
	}

	params, paramNodes := l.params(core.ChildByFieldName("parameters"))
	key := "(" + strings.Join(params, ", ") + ")"
	if q := l.qualifiers(core); q != "" {
		key += " " + q
	}

	return &clangast.Node{
		ID:    l.id(),
		Kind:  kind,
		Name:  name,
		Type:  &clangast.QualType{QualType: ret + " " + key},
		Loc:   l.loc(nameNode),
		Inner: paramNodes,
	}, key
}

func (l *lowering) body(def *sitter.Node) []*clangast.Node {
	b := def.ChildByFieldName("body")
	if b == nil {
		return nil
	}
	kind := clangast.KindCompoundStmt
	if b.Type() == "try_statement" {
		kind = "CXXTryStmt"
	}
	return []*clangast.Node{{ID: l.id(), Kind: kind, Loc: l.loc(b)}}
}

// segments flattens a qualified name into its scope components.
func (l *lowering) segments(n *sitter.Node) []string {
	if n.Type() != "qualified_identifier" {
		return []string{l.text(n)}
	}
	var out []string
	if scope := n.ChildByFieldName("scope"); scope != nil {
		out = append(out, l.segments(scope)...)
	}
	if name := n.ChildByFieldName("name"); name != nil {
		out = append(out, l.segments(name)...)
	}
	return slices.DeleteFunc(out, func(s string) bool { return s == "" })
}

// className drops template arguments and namespace qualification.
func className(s string) string {
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	return strings.TrimSpace(s)
}
