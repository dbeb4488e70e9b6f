package query

import "oopcheck/internal/term"

// Bindings is a substitution with a trail. Bindings made after a mark are
// undone by Undo(mark), which is how the evaluator backtracks.
type Bindings struct {
	vals  map[int]term.Term
	trail []int
}

func NewBindings() *Bindings {
	return &Bindings{vals: make(map[int]term.Term)}
}

func (b *Bindings) Mark() int { return len(b.trail) }

func (b *Bindings) Undo(mark int) {
	for i := len(b.trail) - 1; i >= mark; i-- {
		delete(b.vals, b.trail[i])
	}
	b.trail = b.trail[:mark]
}

func (b *Bindings) bind(v term.Var, t term.Term) {
	b.vals[v.ID] = t
	b.trail = append(b.trail, v.ID)
}

// Deref follows variable bindings until it reaches a non-variable or an
// unbound variable.
func (b *Bindings) Deref(t term.Term) term.Term {
	for {
		v, ok := t.(term.Var)
		if !ok {
			return t
		}
		next, bound := b.vals[v.ID]
		if !bound {
			return v
		}
		t = next
	}
}

// Resolve substitutes all bound variables in t.
func (b *Bindings) Resolve(t term.Term) term.Term {
	switch x := b.Deref(t).(type) {
	case term.Cons:
		return term.Cons{Head: b.Resolve(x.Head), Tail: b.Resolve(x.Tail)}
	default:
		return x
	}
}

// Unify makes a and c equal, binding variables as needed. On failure some
// bindings may already have been made; callers undo to their mark.
func (b *Bindings) Unify(a, c term.Term) bool {
	a, c = b.Deref(a), b.Deref(c)

	if va, ok := a.(term.Var); ok {
		if vc, ok := c.(term.Var); ok && va.ID == vc.ID {
			return true
		}
		if b.occurs(va, c) {
			return false
		}
		b.bind(va, c)
		return true
	}
	if vc, ok := c.(term.Var); ok {
		if b.occurs(vc, a) {
			return false
		}
		b.bind(vc, a)
		return true
	}

	switch x := a.(type) {
	case term.Cons:
		y, ok := c.(term.Cons)
		return ok && b.Unify(x.Head, y.Head) && b.Unify(x.Tail, y.Tail)
	default:
		return term.Equal(a, c)
	}
}

func (b *Bindings) occurs(v term.Var, t term.Term) bool {
	switch x := b.Deref(t).(type) {
	case term.Var:
		return x.ID == v.ID
	case term.Cons:
		return b.occurs(v, x.Head) || b.occurs(v, x.Tail)
	}
	return false
}
