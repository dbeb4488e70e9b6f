// Package facts holds the relational vocabulary produced by the extractor
// and the append-only store the query evaluator reads from.
package facts

import (
	"sort"
	"strings"

	"oopcheck/internal/term"
)

// Relation names. These and their arities are the contract between the
// extractor and queries written against it.
const (
	RelClass                = "class"
	RelParent               = "parent"
	RelProperty             = "property"
	RelConstructor          = "constructor"
	RelDestructor           = "destructor"
	RelMethodDeclaration    = "method_declaration"
	RelMethodImplementation = "method_implementation"
)

// Location tells where a method body was written.
type Location string

const (
	Inside  Location = "inside"
	Outside Location = "outside"
)

// RelationMetadata documents one relation of the schema.
type RelationMetadata struct {
	Arity   int
	Fields  []string
	Example string
}

// Schema maps relation names to their metadata.
var Schema = map[string]RelationMetadata{
	RelClass:                {1, []string{"name"}, "class('Animal')"},
	RelParent:               {3, []string{"base", "derived", "access"}, "parent('Animal','Dog',public)"},
	RelProperty:             {2, []string{"class", "field"}, "property('Animal',age)"},
	RelConstructor:          {2, []string{"class", "params"}, "constructor('Animal',[int])"},
	RelDestructor:           {1, []string{"class"}, "destructor('Animal')"},
	RelMethodDeclaration:    {4, []string{"class", "method", "return", "params"}, "method_declaration('Animal',speak,void,[])"},
	RelMethodImplementation: {5, []string{"class", "method", "location", "return", "params"}, "method_implementation('Animal',speak,outside,void,[])"},
}

// Arity returns the arity of a schema relation.
func Arity(relation string) (int, bool) {
	m, ok := Schema[relation]
	return m.Arity, ok
}

// RelationNames returns the schema relations in sorted order.
func RelationNames() []string {
	names := make([]string, 0, len(Schema))
	for name := range Schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fact is one relation tuple. Facts are never mutated after creation.
type Fact struct {
	Relation string
	Args     []term.Term
}

// String renders the fact as a clause, e.g. class('Animal').
func (f Fact) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Relation + "(" + strings.Join(args, ",") + ")."
}

func Class(name string) Fact {
	return Fact{Relation: RelClass, Args: []term.Term{term.Atom(name)}}
}

func Parent(base, derived, access string) Fact {
	return Fact{Relation: RelParent, Args: []term.Term{term.Atom(base), term.Atom(derived), term.Atom(access)}}
}

func Property(class, field string) Fact {
	return Fact{Relation: RelProperty, Args: []term.Term{term.Atom(class), term.Atom(field)}}
}

func Constructor(class string, params []string) Fact {
	return Fact{Relation: RelConstructor, Args: []term.Term{term.Atom(class), term.Atoms(params...)}}
}

func Destructor(class string) Fact {
	return Fact{Relation: RelDestructor, Args: []term.Term{term.Atom(class)}}
}

func MethodDeclaration(class, method, returnType string, params []string) Fact {
	return Fact{
		Relation: RelMethodDeclaration,
		Args:     []term.Term{term.Atom(class), term.Atom(method), term.Atom(returnType), term.Atoms(params...)},
	}
}

func MethodImplementation(class, method string, loc Location, returnType string, params []string) Fact {
	return Fact{
		Relation: RelMethodImplementation,
		Args: []term.Term{
			term.Atom(class), term.Atom(method), term.Atom(string(loc)), term.Atom(returnType), term.Atoms(params...),
		},
	}
}
