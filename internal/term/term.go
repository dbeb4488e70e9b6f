// Package term defines the logic terms shared by the fact base and the
// query evaluator: atoms, integers, variables and cons lists.
package term

import (
	"regexp"
	"strconv"
	"strings"
)

// Term is a closed set of logic values.
type Term interface {
	String() string
	isTerm()
}

// Atom is a symbolic constant. 'Animal' and Animal denote the same atom.
type Atom string

// Int is an integer constant, produced by length/2 and integer literals.
type Int int64

// Var is a logic variable. Identity is the ID; Name is only for display.
type Var struct {
	ID   int
	Name string
}

// Cons is a non-empty list cell.
type Cons struct {
	Head Term
	Tail Term
}

type emptyList struct{}

// Nil is the empty list [].
var Nil Term = emptyList{}

func (Atom) isTerm()      {}
func (Int) isTerm()       {}
func (Var) isTerm()       {}
func (Cons) isTerm()      {}
func (emptyList) isTerm() {}

var plainAtomRe = regexp.MustCompile(`^[a-z][A-Za-z0-9_]*$`)

func (a Atom) String() string {
	s := string(a)
	if plainAtomRe.MatchString(s) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`)
	return "'" + r.Replace(s) + "'"
}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func (v Var) String() string {
	if v.Name != "" && v.Name != "_" {
		return v.Name
	}
	return "_G" + strconv.Itoa(v.ID)
}

func (emptyList) String() string { return "[]" }

func (c Cons) String() string {
	var b strings.Builder
	b.WriteByte('[')
	var cur Term = c
	for i := 0; ; i++ {
		cell, ok := cur.(Cons)
		if !ok {
			break
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(cell.Head.String())
		cur = cell.Tail
	}
	if !IsNil(cur) {
		b.WriteByte('|')
		b.WriteString(cur.String())
	}
	b.WriteByte(']')
	return b.String()
}

// List builds a proper list from elems.
func List(elems ...Term) Term {
	return ListWithTail(Nil, elems...)
}

// ListWithTail builds [e1,...,en|tail].
func ListWithTail(tail Term, elems ...Term) Term {
	out := tail
	for i := len(elems) - 1; i >= 0; i-- {
		out = Cons{Head: elems[i], Tail: out}
	}
	return out
}

// Atoms builds a proper list of atoms.
func Atoms(names ...string) Term {
	elems := make([]Term, len(names))
	for i, n := range names {
		elems[i] = Atom(n)
	}
	return List(elems...)
}

// Elements returns the elements of a proper list. deref is applied to every
// cell before inspection so that callers can follow variable bindings; pass
// nil for ground terms. ok is false for partial lists and non-lists.
func Elements(t Term, deref func(Term) Term) (elems []Term, ok bool) {
	if deref == nil {
		deref = func(t Term) Term { return t }
	}
	cur := deref(t)
	for {
		switch cell := cur.(type) {
		case emptyList:
			return elems, true
		case Cons:
			elems = append(elems, cell.Head)
			cur = deref(cell.Tail)
		default:
			return elems, false
		}
	}
}

// IsNil reports whether t is the empty list.
func IsNil(t Term) bool {
	_, ok := t.(emptyList)
	return ok
}

// Equal reports structural equality. Variables are equal only to
// themselves.
func Equal(a, b Term) bool {
	switch x := a.(type) {
	case Atom:
		y, ok := b.(Atom)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Var:
		y, ok := b.(Var)
		return ok && x.ID == y.ID
	case emptyList:
		return IsNil(b)
	case Cons:
		y, ok := b.(Cons)
		return ok && Equal(x.Head, y.Head) && Equal(x.Tail, y.Tail)
	}
	return false
}
