// Package cppsource builds a Clang-style AST from C++ source text with
// tree-sitter, for machines where clang is not available. Only the
// declarations the extractor consumes are produced: records with their
// bases, fields, constructors, destructors and methods, including
// out-of-line definitions linked to their in-class declaration through
// previousDecl.
package cppsource

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"go.uber.org/zap"

	"oopcheck/internal/clangast"
)

// ErrSyntax is returned when tree-sitter cannot parse the source cleanly.
var ErrSyntax = errors.New("C++ syntax error")

// Parser lowers C++ source into clangast trees.
type Parser struct {
	logger *zap.SugaredLogger
}

// NewParser creates a parser. A nil logger discards output.
func NewParser(logger *zap.SugaredLogger) *Parser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Parser{logger: logger}
}

// Parse lowers src into a translation unit whose top-level declarations
// are located in file.
func (p *Parser) Parse(ctx context.Context, src []byte, file string) (*clangast.Node, error) {
	root, err := sitter.ParseCtx(ctx, src, cpp.GetLanguage())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", file)
	}
	if root.HasError() {
		pos := firstError(root)
		return nil, errors.WithHint(
			errors.Wrapf(ErrSyntax, "%s:%d:%d", file, pos.Row+1, pos.Column+1),
			"only plain C++ declarations are understood; run clang for macro-heavy sources",
		)
	}

	l := newLowering(src, file, p.logger)
	tu := &clangast.Node{ID: l.id(), Kind: clangast.KindTranslationUnit}
	for _, item := range l.items(root) {
		if item.Loc == nil {
			item.Loc = &clangast.Loc{}
		}
		item.Loc.File = file
		tu.Inner = append(tu.Inner, item)
	}

	p.logger.Debugw("lowered C++ source",
		"file", file,
		"top_level", len(tu.Inner),
		"nodes", l.next-1,
		"unresolved_definitions", l.unresolved)
	return tu, nil
}

// ParseFile reads and lowers the source file at path. The path is used
// verbatim as loc.file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*clangast.Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read source file %s", path)
	}
	return p.Parse(ctx, src, path)
}

func firstError(n *sitter.Node) sitter.Point {
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type() == "ERROR" || cur.IsMissing() {
			return cur.StartPoint()
		}
		for i := int(cur.ChildCount()) - 1; i >= 0; i-- {
			if c := cur.Child(i); c != nil && (c.HasError() || c.IsMissing()) {
				stack = append(stack, c)
			}
		}
	}
	return n.StartPoint()
}
