package extractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"oopcheck/internal/clangast"
)

const srcFile = "animal.cpp"

func tu(items ...*clangast.Node) *clangast.Node {
	return &clangast.Node{ID: "0x1", Kind: clangast.KindTranslationUnit, Inner: items}
}

func inFile(file string, n *clangast.Node) *clangast.Node {
	n.Loc = &clangast.Loc{File: file, Line: 1, Col: 1}
	return n
}

func record(id, name string, inner ...*clangast.Node) *clangast.Node {
	return &clangast.Node{ID: id, Kind: clangast.KindCXXRecord, Name: name, TagUsed: "class", Inner: inner}
}

func field(id, name string) *clangast.Node {
	return &clangast.Node{ID: id, Kind: clangast.KindField, Name: name, Type: &clangast.QualType{QualType: "int"}}
}

func ctor(id, sig string, implicit bool, inner ...*clangast.Node) *clangast.Node {
	return &clangast.Node{ID: id, Kind: clangast.KindConstructor, Type: &clangast.QualType{QualType: sig}, IsImplicit: implicit, Inner: inner}
}

func dtor(id string, implicit bool) *clangast.Node {
	return &clangast.Node{ID: id, Kind: clangast.KindDestructor, Type: &clangast.QualType{QualType: "void () noexcept"}, IsImplicit: implicit}
}

func method(id, name, sig string, inner ...*clangast.Node) *clangast.Node {
	return &clangast.Node{ID: id, Kind: clangast.KindMethod, Name: name, Type: &clangast.QualType{QualType: sig}, Inner: inner}
}

func param(name string) *clangast.Node {
	return &clangast.Node{Kind: clangast.KindParmVar, Name: name}
}

func body() *clangast.Node {
	return &clangast.Node{Kind: clangast.KindCompoundStmt}
}

func extract(t *testing.T, root *clangast.Node) *Result {
	t.Helper()
	res, err := NewExtractor(nil).Extract(root, srcFile)
	require.NoError(t, err)
	return res
}

func factStrings(res *Result) []string {
	out := []string{}
	for _, f := range res.Store.All() {
		out = append(out, f.String())
	}
	return out
}

func assertFacts(t *testing.T, want []string, res *Result) {
	t.Helper()
	if diff := cmp.Diff(want, factStrings(res)); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractor_SchemaCompleteness(t *testing.T) {
	tests := []struct {
		name string
		root *clangast.Node
		want []string
	}{
		{
			name: "class",
			root: tu(inFile(srcFile, record("0x2", "A"))),
			want: []string{"class('A')."},
		},
		{
			name: "class with bases",
			root: tu(inFile(srcFile, &clangast.Node{
				ID: "0x2", Kind: clangast.KindCXXRecord, Name: "Dog",
				Bases: []clangast.Base{
					{Type: clangast.QualType{QualType: "Animal"}, Access: "public"},
					{Type: clangast.QualType{QualType: "Pet"}, Access: "protected"},
				},
			})),
			want: []string{"class('Dog').", "parent('Animal','Dog',public).", "parent('Pet','Dog',protected)."},
		},
		{
			name: "field",
			root: tu(inFile(srcFile, record("0x2", "A", field("0x3", "age")))),
			want: []string{"class('A').", "property('A',age)."},
		},
		{
			name: "explicit constructor",
			root: tu(inFile(srcFile, record("0x2", "A", ctor("0x3", "void (int, double)", false, param("a"), param("b"))))),
			want: []string{"class('A').", "constructor('A',[int,double])."},
		},
		{
			name: "implicit constructor",
			root: tu(inFile(srcFile, record("0x2", "A", ctor("0x3", "void ()", true)))),
			want: []string{"class('A')."},
		},
		{
			name: "explicit destructor",
			root: tu(inFile(srcFile, record("0x2", "A", dtor("0x3", false)))),
			want: []string{"class('A').", "destructor('A')."},
		},
		{
			name: "implicit destructor",
			root: tu(inFile(srcFile, record("0x2", "A", dtor("0x3", true)))),
			want: []string{"class('A')."},
		},
		{
			name: "method declaration with parameters and no body",
			root: tu(inFile(srcFile, record("0x2", "A", method("0x3", "set", "void (int)", param("v"))))),
			want: []string{"class('A').", "method_declaration('A',set,void,[int])."},
		},
		{
			name: "method defined in class",
			root: tu(inFile(srcFile, record("0x2", "A", method("0x3", "get", "int () const", body())))),
			want: []string{
				"class('A').",
				"method_declaration('A',get,int,[]).",
				"method_implementation('A',get,inside,int,[]).",
			},
		},
		{
			name: "field outside class",
			root: tu(inFile(srcFile, field("0x3", "stray"))),
			want: []string{},
		},
		{
			name: "constructor outside class",
			root: tu(inFile(srcFile, ctor("0x3", "void ()", false, body()))),
			want: []string{},
		},
		{
			name: "anonymous record is transparent",
			root: tu(inFile(srcFile, record("0x2", "A", record("0x3", "", field("0x4", "x"))))),
			want: []string{"class('A').", "property('A',x)."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extract(t, tt.root)
			assertFacts(t, tt.want, res)
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestExtractor_OutOfLineResolution(t *testing.T) {
	decl := method("0x3", "speak", "void ()")
	class := inFile(srcFile, record("0x2", "Animal", decl))

	t.Run("Resolved through previousDecl", func(t *testing.T) {
		def := method("0x9", "speak", "void ()", body())
		def.PreviousDecl = "0x3"
		res := extract(t, tu(class, def))

		assertFacts(t, []string{
			"class('Animal').",
			"method_declaration('Animal',speak,void,[]).",
			"method_implementation('Animal',speak,outside,void,[]).",
		}, res)
		assert.Empty(t, res.Diagnostics)
		assert.Equal(t, 1, res.Stats.DeclarationsIndexed)
	})

	t.Run("Missing previousDecl", func(t *testing.T) {
		def := method("0x9", "speak", "void ()", body())
		res := extract(t, tu(class, def))

		assert.Equal(t, 0, res.Store.Count("method_implementation"))
		require.Len(t, res.Diagnostics, 1)
		assert.Equal(t, DiagUnresolvedMethod, res.Diagnostics[0].Code)
		assert.Equal(t, "0x9", res.Diagnostics[0].NodeID)
	})

	t.Run("Unknown previousDecl", func(t *testing.T) {
		def := method("0x9", "speak", "void ()", body())
		def.PreviousDecl = "0xdead"
		res := extract(t, tu(class, def))

		assert.Equal(t, 0, res.Store.Count("method_implementation"))
		require.Len(t, res.Diagnostics, 1)
		assert.Contains(t, res.Diagnostics[0].Message, "0xdead")
	})

	t.Run("Resolved declaration without body", func(t *testing.T) {
		redecl := method("0x9", "speak", "void ()")
		redecl.PreviousDecl = "0x3"
		res := extract(t, tu(class, redecl))

		assert.Equal(t, 0, res.Store.Count("method_implementation"))
		require.Len(t, res.Diagnostics, 1)
		assert.Contains(t, res.Diagnostics[0].Message, "no body")
	})

	t.Run("Inside a namespace", func(t *testing.T) {
		def := method("0x9", "speak", "void ()", body())
		def.PreviousDecl = "0x3"
		ns := inFile(srcFile, &clangast.Node{ID: "0x8", Kind: clangast.KindNamespace, Name: "zoo",
			Inner: []*clangast.Node{record("0x2", "Animal", method("0x3", "speak", "void ()")), def}})
		res := extract(t, tu(ns))

		assert.Equal(t, 1, res.Store.Count("method_implementation"))
	})
}

func TestExtractor_FileRestriction(t *testing.T) {
	root := tu(
		&clangast.Node{ID: "0x2", Kind: "TypedefDecl", Name: "__builtin_va_list", Loc: &clangast.Loc{}},
		inFile("/usr/include/c++/vector", record("0x3", "vector")),
		record("0x4", "allocator"),
		inFile(srcFile, record("0x5", "Animal")),
		record("0x6", "Dog"),
		inFile("other.h", record("0x7", "Cat")),
		record("0x8", "Bird"),
	)

	res := extract(t, root)
	assertFacts(t, []string{"class('Animal').", "class('Dog')."}, res)
	assert.Equal(t, 2, res.Stats.TopLevelWalked)
	assert.Equal(t, 5, res.Stats.TopLevelSkipped)
}

func TestExtractor_ContextScoping(t *testing.T) {
	root := tu(inFile(srcFile, record("0x2", "Outer",
		field("0x3", "a"),
		record("0x4", "Inner", field("0x5", "b")),
		field("0x6", "c"),
	)), field("0x7", "global"))

	res := extract(t, root)
	assertFacts(t, []string{
		"class('Outer').",
		"property('Outer',a).",
		"class('Inner').",
		"property('Inner',b).",
		"property('Outer',c).",
	}, res)

	t.Run("Nested records are logged with their path", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		_, err := NewExtractor(zap.New(core).Sugar()).Extract(root, srcFile)
		require.NoError(t, err)

		nested := logs.FilterMessage("nested record").All()
		require.Len(t, nested, 1)
		fields := nested[0].ContextMap()
		assert.Equal(t, "Outer::Inner", fields["class"])
		assert.Equal(t, "0x2", fields["outer_id"])
	})
}

func TestClassContext_Path(t *testing.T) {
	outer := &ClassContext{Name: "Outer", NodeID: "0x2"}
	inner := &ClassContext{Name: "Inner", NodeID: "0x4", Outer: outer}
	assert.Equal(t, "Outer", outer.Path())
	assert.Equal(t, "Outer::Inner", inner.Path())
	assert.Equal(t, "", (*ClassContext)(nil).Path())
}

func TestExtractor_MalformedSignature(t *testing.T) {
	root := tu(inFile(srcFile, record("0x2", "A", method("0x3", "broken", "int"))))

	_, err := NewExtractor(nil).Extract(root, srcFile)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedSignature))
	assert.Contains(t, err.Error(), "0x3")

	t.Run("Function type inside template arguments", func(t *testing.T) {
		root := tu(inFile(srcFile, record("0x2", "A",
			method("0x3", "make", "std::function<void (int)> (double)"),
			method("0x4", "wrap", "std::function<void (int) (double)"),
		)))

		_, err := NewExtractor(nil).Extract(root, srcFile)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedSignature))
		assert.Contains(t, err.Error(), "0x4")

		root.Inner[0].Inner = root.Inner[0].Inner[:1]
		assertFacts(t, []string{
			"class('A').",
			"method_declaration('A',make,'std::function<void (int)>',[double]).",
		}, extract(t, root))
	})
}

func TestExtractor_RootKind(t *testing.T) {
	_, err := NewExtractor(nil).Extract(&clangast.Node{Kind: "NamespaceDecl"}, srcFile)
	assert.True(t, errors.Is(err, clangast.ErrNotTranslationUnit))
}

func TestExtractor_AnimalScenario(t *testing.T) {
	root := tu(inFile(srcFile, record("0x2", "Animal",
		&clangast.Node{ID: "0x3", Kind: clangast.KindCXXRecord, Name: "Animal", IsImplicit: true},
		field("0x4", "age"),
		ctor("0x5", "void ()", false),
		dtor("0x6", false),
		method("0x7", "speak", "void ()"),
		ctor("0x8", "void (const Animal &)", true, param("")),
	)))

	first := extract(t, root)
	assertFacts(t, []string{
		"class('Animal').",
		"class('Animal').",
		"property('Animal',age).",
		"constructor('Animal',[]).",
		"destructor('Animal').",
		"method_declaration('Animal',speak,void,[]).",
	}, first)

	t.Run("Deterministic", func(t *testing.T) {
		second := extract(t, root)
		assert.Equal(t, factStrings(first), factStrings(second))
	})

	t.Run("Store is frozen", func(t *testing.T) {
		assert.True(t, first.Store.Frozen())
	})

	t.Run("Stats", func(t *testing.T) {
		assert.Equal(t, 8, first.Stats.NodesVisited)
		assert.Equal(t, 1, first.Stats.DeclarationsIndexed)
		assert.Equal(t, 2, first.Stats.FactsByRelation["class"])
		assert.NotContains(t, first.Stats.FactsByRelation, "parent")
	})
}

func TestWalk_PreOrderAndDepth(t *testing.T) {
	t.Run("Pre-order", func(t *testing.T) {
		root := &clangast.Node{ID: "a", Inner: []*clangast.Node{
			{ID: "b", Inner: []*clangast.Node{{ID: "c"}, {ID: "d"}}},
			nil,
			{ID: "e"},
		}}
		var order []string
		err := Walk(root, nil, func(n *clangast.Node, enclosing *ClassContext) (*ClassContext, error) {
			order = append(order, n.ID)
			return enclosing, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
	})

	t.Run("Deep tree", func(t *testing.T) {
		root := &clangast.Node{Kind: clangast.KindCompoundStmt}
		cur := root
		for i := 0; i < 200000; i++ {
			next := &clangast.Node{Kind: clangast.KindCompoundStmt}
			cur.Inner = []*clangast.Node{next}
			cur = next
		}
		n := 0
		err := Walk(root, nil, func(_ *clangast.Node, enclosing *ClassContext) (*ClassContext, error) {
			n++
			return enclosing, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 200001, n)
	})

	t.Run("Visitor error stops the walk", func(t *testing.T) {
		root := &clangast.Node{ID: "a", Inner: []*clangast.Node{{ID: "b"}, {ID: "c"}}}
		var seen []string
		err := Walk(root, nil, func(n *clangast.Node, enclosing *ClassContext) (*ClassContext, error) {
			seen = append(seen, n.ID)
			if n.ID == "b" {
				return nil, fmt.Errorf("stop at %s", n.ID)
			}
			return enclosing, nil
		})
		require.Error(t, err)
		assert.Equal(t, "a,b", strings.Join(seen, ","))
	})
}
