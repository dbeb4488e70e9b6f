package facts

import "iter"

// Source is the read side of a fact base.
type Source interface {
	FactsOf(relation string) iter.Seq[Fact]
}

// Store is an append-only multiset of facts. Duplicates are kept and
// assertion order is preserved per relation.
type Store struct {
	facts  []Fact
	byRel  map[string][]int
	frozen bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byRel: make(map[string][]int)}
}

// Assert appends a fact. Asserting into a frozen store is a programming
// error.
func (s *Store) Assert(f Fact) {
	if s.frozen {
		panic("facts: assert on frozen store: " + f.String())
	}
	s.byRel[f.Relation] = append(s.byRel[f.Relation], len(s.facts))
	s.facts = append(s.facts, f)
}

// Freeze makes the store read-only.
func (s *Store) Freeze() { s.frozen = true }

func (s *Store) Frozen() bool { return s.frozen }

// FactsOf yields the facts of one relation in assertion order. The
// sequence can be ranged over any number of times.
func (s *Store) FactsOf(relation string) iter.Seq[Fact] {
	idx := s.byRel[relation]
	return func(yield func(Fact) bool) {
		for _, i := range idx {
			if !yield(s.facts[i]) {
				return
			}
		}
	}
}

// All returns a copy of every fact in assertion order.
func (s *Store) All() []Fact {
	out := make([]Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

func (s *Store) Len() int { return len(s.facts) }

// Count returns the number of facts asserted for a relation.
func (s *Store) Count(relation string) int { return len(s.byRel[relation]) }
