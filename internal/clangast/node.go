// Package clangast models the subset of Clang's JSON AST dump
// (-Xclang -ast-dump=json) needed to recover class structure.
package clangast

import "strings"

// Node kinds with handlers or special meaning.
const (
	KindTranslationUnit = "TranslationUnitDecl"
	KindCXXRecord       = "CXXRecordDecl"
	KindRecord          = "RecordDecl"
	KindField           = "FieldDecl"
	KindConstructor     = "CXXConstructorDecl"
	KindDestructor      = "CXXDestructorDecl"
	KindMethod          = "CXXMethodDecl"
	KindNamespace       = "NamespaceDecl"
	KindFunction        = "FunctionDecl"
	KindParmVar         = "ParmVarDecl"
	KindCompoundStmt    = "CompoundStmt"
)

// Node is one record of the dump. Only the fields the extractor reads are
// decoded; everything else is ignored.
type Node struct {
	ID           string    `json:"id,omitempty"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name,omitempty"`
	Type         *QualType `json:"type,omitempty"`
	Loc          *Loc      `json:"loc,omitempty"`
	IsImplicit   bool      `json:"isImplicit,omitempty"`
	TagUsed      string    `json:"tagUsed,omitempty"`
	Bases        []Base    `json:"bases,omitempty"`
	PreviousDecl string    `json:"previousDecl,omitempty"`
	Inner        []*Node   `json:"inner,omitempty"`
}

type QualType struct {
	QualType string `json:"qualType"`
}

// Loc is a source location. Clang omits File when it equals the file of
// the previously printed location.
type Loc struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

// Base is one entry of a record's base-specifier list.
type Base struct {
	Type      QualType `json:"type"`
	Access    string   `json:"access"`
	IsVirtual bool     `json:"isVirtual,omitempty"`
}

// File returns the node's location file, or "" when absent.
func (n *Node) File() string {
	if n == nil || n.Loc == nil {
		return ""
	}
	return n.Loc.File
}

// Signature returns type.qualType, or "" when absent.
func (n *Node) Signature() string {
	if n == nil || n.Type == nil {
		return ""
	}
	return n.Type.QualType
}

// HasBody reports whether the node carries a statement body. Parameter
// declarations also live in inner, so a non-empty inner is not enough.
func (n *Node) HasBody() bool {
	if n == nil {
		return false
	}
	for _, c := range n.Inner {
		if c != nil && strings.HasSuffix(c.Kind, "Stmt") {
			return true
		}
	}
	return false
}
