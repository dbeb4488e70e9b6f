package extractor

import (
	"github.com/cockroachdb/errors"

	"oopcheck/internal/clangast"
	"oopcheck/internal/facts"
)

func (r *run) visit(n *clangast.Node, enclosing *ClassContext) (*ClassContext, error) {
	r.visited++

	switch d := clangast.Classify(n).(type) {
	case clangast.RecordDecl:
		return r.onRecord(d, enclosing), nil
	case clangast.FieldDecl:
		r.onField(d, enclosing)
	case clangast.ConstructorDecl:
		if err := r.onConstructor(d, enclosing); err != nil {
			return nil, err
		}
	case clangast.DestructorDecl:
		r.onDestructor(d, enclosing)
	case clangast.MethodDecl:
		if err := r.onMethod(d, enclosing); err != nil {
			return nil, err
		}
	}
	return enclosing, nil
}

// onRecord emits the class and its inheritance edges and opens a new
// context for the record's children. Anonymous records (lambda closures,
// unnamed structs) are transparent.
func (r *run) onRecord(d clangast.RecordDecl, enclosing *ClassContext) *ClassContext {
	if d.Name == "" {
		r.logger.Debugw("skipping anonymous record", "id", d.ID)
		return enclosing
	}

	r.assert(facts.Class(d.Name))
	for _, base := range d.Bases {
		r.assert(facts.Parent(base.Type.QualType, d.Name, base.Access))
	}
	ctx := &ClassContext{Name: d.Name, NodeID: d.ID, Outer: enclosing}
	if enclosing != nil {
		r.logger.Debugw("nested record", "class", ctx.Path(), "id", d.ID, "outer_id", enclosing.NodeID)
	}
	return ctx
}

func (r *run) onField(d clangast.FieldDecl, enclosing *ClassContext) {
	if enclosing == nil || d.Name == "" {
		return
	}
	r.assert(facts.Property(enclosing.Name, d.Name))
}

func (r *run) onConstructor(d clangast.ConstructorDecl, enclosing *ClassContext) error {
	if enclosing == nil || d.Implicit {
		return nil
	}
	sig, err := ParseSignature(d.Signature)
	if err != nil {
		return errors.Wrapf(err, "constructor node %s of class %s", d.ID, enclosing.Name)
	}
	r.assert(facts.Constructor(enclosing.Name, sig.Params))
	return nil
}

func (r *run) onDestructor(d clangast.DestructorDecl, enclosing *ClassContext) {
	if enclosing == nil || d.Implicit {
		return
	}
	r.assert(facts.Destructor(enclosing.Name))
}

func (r *run) onMethod(d clangast.MethodDecl, enclosing *ClassContext) error {
	sig, err := ParseSignature(d.Signature)
	if err != nil {
		return errors.Wrapf(err, "method node %s (%s)", d.ID, d.Name)
	}

	if enclosing != nil {
		r.assert(facts.MethodDeclaration(enclosing.Name, d.Name, sig.ReturnType, sig.Params))
		if d.HasBody {
			r.assert(facts.MethodImplementation(enclosing.Name, d.Name, facts.Inside, sig.ReturnType, sig.Params))
		}
		if d.ID != "" {
			r.xref.Record(d.ID, enclosing)
		}
		return nil
	}

	owner, resolved := r.xref.Resolve(d.PreviousDecl)
	if resolved && d.HasBody {
		r.logger.Debugw("resolved out-of-line definition", "id", d.ID, "declaration", d.PreviousDecl, "class_id", owner.NodeID)
		r.assert(facts.MethodImplementation(owner.Name, d.Name, facts.Outside, sig.ReturnType, sig.Params))
		return nil
	}

	reason := "definition has no body"
	switch {
	case d.PreviousDecl == "":
		reason = "no previous declaration"
	case !resolved:
		reason = "previous declaration " + d.PreviousDecl + " is not a class member"
	}
	r.diagnose(Diagnostic{
		Code:    DiagUnresolvedMethod,
		NodeID:  d.ID,
		Name:    d.Name,
		Message: "unresolved method node: " + reason,
	})
	return nil
}
