package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oopcheck/internal/term"
)

func collect(s *Store, rel string) []string {
	var out []string
	for f := range s.FactsOf(rel) {
		out = append(out, f.String())
	}
	return out
}

func TestStore_AssertAndFactsOf(t *testing.T) {
	s := NewStore()
	s.Assert(Class("Animal"))
	s.Assert(Property("Animal", "age"))
	s.Assert(Class("Dog"))
	s.Assert(Class("Animal"))

	t.Run("Assertion order per relation", func(t *testing.T) {
		assert.Equal(t, []string{"class('Animal').", "class('Dog').", "class('Animal')."}, collect(s, RelClass))
	})

	t.Run("Duplicates are kept", func(t *testing.T) {
		assert.Equal(t, 3, s.Count(RelClass))
		assert.Equal(t, 4, s.Len())
	})

	t.Run("Sequence is re-iterable", func(t *testing.T) {
		assert.Equal(t, collect(s, RelClass), collect(s, RelClass))
	})

	t.Run("Unknown relation is empty", func(t *testing.T) {
		assert.Empty(t, collect(s, RelDestructor))
	})

	t.Run("Early stop", func(t *testing.T) {
		n := 0
		for range s.FactsOf(RelClass) {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})
}

func TestStore_Freeze(t *testing.T) {
	s := NewStore()
	s.Assert(Destructor("Animal"))
	s.Freeze()
	require.True(t, s.Frozen())
	assert.Panics(t, func() { s.Assert(Class("Late")) })
	assert.Equal(t, 1, s.Len())
}

func TestFactConstructors_MatchSchema(t *testing.T) {
	all := []Fact{
		Class("A"),
		Parent("A", "B", "public"),
		Property("A", "x"),
		Constructor("A", nil),
		Destructor("A"),
		MethodDeclaration("A", "f", "void", []string{"int"}),
		MethodImplementation("A", "f", Outside, "void", []string{"int"}),
	}
	for _, f := range all {
		arity, ok := Arity(f.Relation)
		require.True(t, ok, f.Relation)
		assert.Len(t, f.Args, arity, f.Relation)
	}
	assert.Len(t, RelationNames(), len(all))
}

func TestFact_String(t *testing.T) {
	assert.Equal(t, "constructor('Animal',[])", trimDot(Constructor("Animal", nil).String()))
	assert.Equal(t, "parent('Animal','Dog',public)", trimDot(Parent("Animal", "Dog", "public").String()))
	assert.Equal(t,
		"method_implementation('Animal',speak,inside,void,[int,'const char *'])",
		trimDot(MethodImplementation("Animal", "speak", Inside, "void", []string{"int", "const char *"}).String()),
	)
	assert.True(t, term.IsNil(Constructor("Animal", []string{}).Args[1]))
}

func trimDot(s string) string { return s[:len(s)-1] }
