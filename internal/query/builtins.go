package query

import (
	"github.com/cockroachdb/errors"

	"oopcheck/internal/term"
)

const maxFreshList = 1 << 16

type builtinFunc func(s *search, args []term.Term, k cont) (bool, error)

// builtins are evaluated by fixed logic rather than by fact lookup.
var builtins = map[string]builtinFunc{
	"true":      func(_ *search, _ []term.Term, k cont) (bool, error) { return k() },
	"fail":      func(*search, []term.Term, cont) (bool, error) { return false, nil },
	"=":         unifyGoal,
	`\=`:        notUnifiable,
	"==":        identical,
	`\==`:       notIdentical,
	"all_diff":  allDiff,
	"member":    member,
	"memberchk": memberchk,
	"length":    length,
}

var builtinArity = map[string]int{
	"true":      0,
	"fail":      0,
	"=":         2,
	`\=`:        2,
	"==":        2,
	`\==`:       2,
	"all_diff":  1,
	"member":    2,
	"memberchk": 2,
	"length":    2,
}

func isOperator(name string) bool {
	switch name {
	case "=", `\=`, "==", `\==`:
		return true
	}
	return false
}

func unifyGoal(s *search, args []term.Term, k cont) (bool, error) {
	return s.once(args[0], args[1], k)
}

func notUnifiable(s *search, args []term.Term, k cont) (bool, error) {
	mark := s.b.Mark()
	ok := s.b.Unify(args[0], args[1])
	s.b.Undo(mark)
	if ok {
		return false, nil
	}
	return k()
}

func identical(s *search, args []term.Term, k cont) (bool, error) {
	if !term.Equal(s.b.Resolve(args[0]), s.b.Resolve(args[1])) {
		return false, nil
	}
	return k()
}

func notIdentical(s *search, args []term.Term, k cont) (bool, error) {
	if term.Equal(s.b.Resolve(args[0]), s.b.Resolve(args[1])) {
		return false, nil
	}
	return k()
}

// properList returns the elements of a proper list or an instantiation
// error naming the built-in.
func (s *search) properList(name string, t term.Term) ([]term.Term, error) {
	elems, ok := term.Elements(t, s.b.Deref)
	if !ok {
		return nil, errors.Wrapf(ErrInstantiation, "%s: %s is not a proper list", name, s.b.Resolve(t))
	}
	return elems, nil
}

// allDiff succeeds when no two elements of the list unify. It leaves no
// bindings and offers no alternatives.
func allDiff(s *search, args []term.Term, k cont) (bool, error) {
	elems, err := s.properList("all_diff/1", args[0])
	if err != nil {
		return false, err
	}
	for i := 0; i < len(elems); i++ {
		for j := i + 1; j < len(elems); j++ {
			if err := s.tick(); err != nil {
				return false, err
			}
			mark := s.b.Mark()
			same := s.b.Unify(elems[i], elems[j])
			s.b.Undo(mark)
			if same {
				return false, nil
			}
		}
	}
	return k()
}

func member(s *search, args []term.Term, k cont) (bool, error) {
	elems, err := s.properList("member/2", args[1])
	if err != nil {
		return false, err
	}
	for _, e := range elems {
		if err := s.tick(); err != nil {
			return false, err
		}
		stop, err := s.once(args[0], e, k)
		if stop || err != nil {
			return stop, err
		}
	}
	return false, nil
}

// memberchk commits to the first element that unifies.
func memberchk(s *search, args []term.Term, k cont) (bool, error) {
	elems, err := s.properList("memberchk/2", args[1])
	if err != nil {
		return false, err
	}
	for _, e := range elems {
		mark := s.b.Mark()
		if s.b.Unify(args[0], e) {
			stop, err := k()
			if stop || err != nil {
				return stop, err
			}
			s.b.Undo(mark)
			return false, nil
		}
		s.b.Undo(mark)
	}
	return false, nil
}

// length relates a proper list to its length, or builds a list of fresh
// variables when only the length is known.
func length(s *search, args []term.Term, k cont) (bool, error) {
	if elems, ok := term.Elements(args[0], s.b.Deref); ok {
		return s.once(args[1], term.Int(len(elems)), k)
	}

	n, ok := s.b.Deref(args[1]).(term.Int)
	if !ok {
		return false, errors.Wrapf(ErrInstantiation, "length/2: %s is not a proper list and the length is unbound",
			s.b.Resolve(args[0]))
	}
	if n < 0 {
		return false, nil
	}
	if n > maxFreshList {
		return false, errors.Wrapf(ErrBudgetExhausted, "length/2: refusing to build a list of %d elements", n)
	}
	vars := make([]term.Term, n)
	for i := range vars {
		vars[i] = s.fresh()
	}
	return s.once(args[0], term.List(vars...), k)
}
