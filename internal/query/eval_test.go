package query

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oopcheck/internal/facts"
	"oopcheck/internal/term"
)

func zooStore() *facts.Store {
	s := facts.NewStore()
	s.Assert(facts.Class("Animal"))
	s.Assert(facts.Property("Animal", "age"))
	s.Assert(facts.Constructor("Animal", nil))
	s.Assert(facts.Destructor("Animal"))
	s.Assert(facts.MethodDeclaration("Animal", "speak", "void", nil))
	s.Assert(facts.Class("Dog"))
	s.Assert(facts.Parent("Animal", "Dog", "public"))
	s.Assert(facts.Constructor("Dog", []string{"int", "const std::string &"}))
	s.Assert(facts.MethodDeclaration("Dog", "speak", "void", nil))
	s.Assert(facts.MethodImplementation("Dog", "speak", facts.Outside, "void", nil))
	s.Assert(facts.Class("Cat"))
	s.Assert(facts.Parent("Animal", "Cat", "private"))
	s.Freeze()
	return s
}

func solve(t *testing.T, src string) Result {
	t.Helper()
	res, err := NewEvaluator(zooStore(), Options{}, nil).SolveString(context.Background(), src)
	require.NoError(t, err)
	return res
}

func TestSolve_Verdicts(t *testing.T) {
	tests := []struct {
		name  string
		query string
		found bool
	}{
		{"Ground fact", "class('Animal')", true},
		{"Missing fact", "class('Bird')", false},
		{"Conjunction", "class('Animal'), property('Animal', age), constructor('Animal', [])", true},
		{"Wrong constructor parameters", "constructor('Animal', ['int'])", false},
		{"Parameter order matters", "constructor('Dog', ['const std::string &', int])", false},
		{"Parameter list", "constructor('Dog', [int, 'const std::string &'])", true},
		{"Public parent", "parent('Animal', 'Dog', public)", true},
		{"Private parent", "parent('Animal', 'Dog', private)", false},
		{"Join through variables", "parent(B, D, private), method_declaration(B, speak, void, [])", true},
		{"Backtracking into the second candidate", "parent('Animal', D, _), \\+ constructor(D, _)", true},
		{"Outside implementation", "method_implementation('Dog', speak, outside, _, [])", true},
		{"Inside implementation", "method_implementation('Dog', speak, inside, _, [])", false},
		{"Disjunction", "class('Bird') ; class('Cat')", true},
		{"Failing disjunction", "class('Bird') ; class('Fish')", false},
		{"true", "true", true},
		{"fail", "class(_), fail", false},
		{"Unification", "X = 'Dog', class(X)", true},
		{"Unification failure", "'Dog' = 'Cat'", false},
		{"Not unifiable", "'Dog' \\= 'Cat'", true},
		{"Identical unbound", "X == Y", false},
		{"Not identical", "class(X), class(Y), X \\== Y", true},
		{"Partial list unification", "[a|T] = [a, b, c], T = [b, c]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.found, solve(t, tt.query).Found)
		})
	}
}

func TestSolve_FirstSolutionBindings(t *testing.T) {
	res := solve(t, "parent(Base, Derived, Access), _Ignored = Access")
	require.True(t, res.Found)
	assert.Equal(t, map[string]term.Term{
		"Base":    term.Atom("Animal"),
		"Derived": term.Atom("Dog"),
		"Access":  term.Atom("public"),
	}, res.Bindings)
	assert.Positive(t, res.Steps)
}

func TestSolve_Negation(t *testing.T) {
	t.Run("Succeeds when the inner goal has no solution", func(t *testing.T) {
		assert.True(t, solve(t, `\+ class('Bird')`).Found)
		assert.False(t, solve(t, `\+ class('Dog')`).Found)
	})

	t.Run("Does not bind outer variables", func(t *testing.T) {
		res := solve(t, `\+ \+ class(X), X == 'Unbound'`)
		assert.False(t, res.Found)

		res = solve(t, `\+ \+ class(X), X = free`)
		require.True(t, res.Found)
		assert.Equal(t, term.Atom("free"), res.Bindings["X"])
	})

	t.Run("Uses current bindings", func(t *testing.T) {
		res := solve(t, `class(C), \+ parent(_, C, _)`)
		require.True(t, res.Found)
		assert.Equal(t, term.Atom("Animal"), res.Bindings["C"])

		res = solve(t, `parent(_, C, _), \+ constructor(C, _)`)
		require.True(t, res.Found)
		assert.Equal(t, term.Atom("Cat"), res.Bindings["C"])
	})
}

func TestSolve_AllDiff(t *testing.T) {
	assert.True(t, solve(t, "all_diff([a, b, c])").Found)
	assert.False(t, solve(t, "all_diff([a, b, a])").Found)
	assert.True(t, solve(t, "all_diff([])").Found)
	assert.True(t, solve(t, "class(A), class(B), class(C), all_diff([A, B, C])").Found)
	assert.False(t, solve(t, "class(A), class(B), all_diff([A, B]), A == B").Found)

	t.Run("Unbound elements unify", func(t *testing.T) {
		assert.False(t, solve(t, "all_diff([a, X])").Found)
	})

	t.Run("Binds nothing", func(t *testing.T) {
		res := solve(t, `all_diff([[T, a], [b, b]]), T \== b`)
		require.True(t, res.Found)
		_, isVar := res.Bindings["T"].(term.Var)
		assert.True(t, isVar)
	})

	t.Run("Unbound list", func(t *testing.T) {
		_, err := NewEvaluator(zooStore(), Options{}, nil).SolveString(context.Background(), "all_diff(L)")
		assert.True(t, errors.Is(err, ErrInstantiation))
	})
}

func TestSolve_Lists(t *testing.T) {
	res := solve(t, "member(X, [b, c]), class(X) ; member(X, ['Cat', 'Dog']), class(X)")
	require.True(t, res.Found)
	assert.Equal(t, term.Atom("Cat"), res.Bindings["X"])

	assert.True(t, solve(t, "memberchk(int, [double, int])").Found)
	assert.False(t, solve(t, "memberchk(X, [a, b]), X == b").Found)
	assert.True(t, solve(t, "member(X, [a, b]), X == b").Found)

	res = solve(t, "constructor('Dog', P), length(P, N)")
	require.True(t, res.Found)
	assert.Equal(t, term.Int(2), res.Bindings["N"])

	res = solve(t, "length(L, 2)")
	require.True(t, res.Found)
	elems, ok := term.Elements(res.Bindings["L"], nil)
	require.True(t, ok)
	assert.Len(t, elems, 2)

	_, err := NewEvaluator(zooStore(), Options{}, nil).SolveString(context.Background(), "length(L, N)")
	assert.True(t, errors.Is(err, ErrInstantiation))
}

func TestSolve_Errors(t *testing.T) {
	eval := NewEvaluator(zooStore(), Options{}, nil)
	ctx := context.Background()

	t.Run("Arity error is not a failure", func(t *testing.T) {
		res, err := eval.SolveString(ctx, "constructor('Animal')")
		assert.True(t, errors.Is(err, ErrArity))
		assert.False(t, res.Found)
	})

	t.Run("Unknown relation", func(t *testing.T) {
		_, err := eval.SolveString(ctx, "interface('Animal')")
		assert.True(t, errors.Is(err, ErrUnknownRelation))
	})

	t.Run("Syntax", func(t *testing.T) {
		_, err := eval.SolveString(ctx, "class('Animal'")
		assert.True(t, errors.Is(err, ErrSyntax))
	})
}

func TestSolve_Budget(t *testing.T) {
	src := "class(A), class(B), class(C), class(D), class(E), fail"

	t.Run("Exhausted", func(t *testing.T) {
		_, err := NewEvaluator(zooStore(), Options{StepBudget: 50}, nil).SolveString(context.Background(), src)
		assert.True(t, errors.Is(err, ErrBudgetExhausted))
	})

	t.Run("Unlimited", func(t *testing.T) {
		res, err := NewEvaluator(zooStore(), Options{}, nil).SolveString(context.Background(), src)
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Greater(t, res.Steps, 50)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		deep := "class(A), class(B), class(C), class(D), class(E), class(F), class(G), fail"
		_, err := NewEvaluator(zooStore(), Options{}, nil).SolveString(ctx, deep)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestSolve_Deterministic(t *testing.T) {
	q := MustParse("parent(B, D, A), class(D)")
	eval := NewEvaluator(zooStore(), Options{}, nil)
	first, err := eval.Solve(context.Background(), q)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := eval.Solve(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
