package query

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	goalLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `%[^\n]*`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Not", Pattern: `\\\+`},
		{Name: "Cmp", Pattern: `\\==|\\=|==|=`},
		{Name: "Variable", Pattern: `[A-Z_][A-Za-z0-9_]*`},
		{Name: "Ident", Pattern: `[a-z][A-Za-z0-9_]*`},
		{Name: "Quoted", Pattern: `'(?:[^'\\]|\\.|'')*'|"(?:[^"\\]|\\.)*"`},
		{Name: "Int", Pattern: `\d+`},
		{Name: "Punct", Pattern: `[(),;\[\]|.]`},
	})

	goalParser = participle.MustBuild[program](
		participle.Lexer(goalLexer),
		participle.Elide("Whitespace", "Comment"),
	)
)

// The structs below are the concrete syntax tree. Parse lowers them into
// Goal values.

type program struct {
	Body *disjunction `@@ "."?`
}

type disjunction struct {
	Alts []*conjunction `@@ ( ";" @@ )*`
}

type conjunction struct {
	Goals []*unary `@@ ( "," @@ )*`
}

type unary struct {
	Pos    lexer.Position
	Not    *unary       `  Not @@`
	Group  *disjunction `| "(" @@ ")"`
	Simple *simple      `| @@`
}

type simple struct {
	Left  *termNode `@@`
	Op    string    `( @Cmp`
	Right *termNode `  @@ )?`
}

type termNode struct {
	Pos      lexer.Position
	Variable *string   `  @Variable`
	Int      *int64    `| @Int`
	List     *listNode `| @@`
	Compound *compound `| @@`
}

type compound struct {
	Functor string      `@( Ident | Quoted )`
	Args    []*termNode `( "(" @@ ( "," @@ )* ")" )?`
}

type listNode struct {
	Elems []*termNode `"[" ( @@ ( "," @@ )*`
	Tail  *termNode   `      ( "|" @@ )? )? "]"`
}
