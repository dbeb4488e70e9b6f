package clangast

// Decl is the closed set of node kinds the extractor handles. Each variant
// exposes only the fields its handler needs.
type Decl interface {
	isDecl()
}

// RecordDecl is a class, struct or union declaration.
type RecordDecl struct {
	ID    string
	Name  string
	Bases []Base
}

type FieldDecl struct {
	ID   string
	Name string
}

type ConstructorDecl struct {
	ID        string
	Signature string
	Implicit  bool
}

type DestructorDecl struct {
	ID       string
	Implicit bool
}

// MethodDecl covers both in-class declarations and out-of-line
// definitions.
type MethodDecl struct {
	ID           string
	Name         string
	Signature    string
	PreviousDecl string
	HasBody      bool
}

func (RecordDecl) isDecl()      {}
func (FieldDecl) isDecl()       {}
func (ConstructorDecl) isDecl() {}
func (DestructorDecl) isDecl()  {}
func (MethodDecl) isDecl()      {}

// Classify maps a node onto its variant. Unhandled kinds return nil; their
// children are still walked.
func Classify(n *Node) Decl {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindCXXRecord, KindRecord:
		return RecordDecl{ID: n.ID, Name: n.Name, Bases: n.Bases}
	case KindField:
		return FieldDecl{ID: n.ID, Name: n.Name}
	case KindConstructor:
		return ConstructorDecl{ID: n.ID, Signature: n.Signature(), Implicit: n.IsImplicit}
	case KindDestructor:
		return DestructorDecl{ID: n.ID, Implicit: n.IsImplicit}
	case KindMethod:
		return MethodDecl{
			ID:           n.ID,
			Name:         n.Name,
			Signature:    n.Signature(),
			PreviousDecl: n.PreviousDecl,
			HasBody:      n.HasBody(),
		}
	}
	return nil
}
