package extractor

import (
	"path/filepath"

	"oopcheck/internal/clangast"
)

// ClassContext is the class lexically enclosing the node being visited.
// A nil *ClassContext means "no enclosing class".
type ClassContext struct {
	Name   string
	NodeID string
	Outer  *ClassContext
}

// Path is the nesting path of the class, e.g. "Outer::Inner".
func (c *ClassContext) Path() string {
	if c == nil {
		return ""
	}
	if c.Outer == nil {
		return c.Name
	}
	return c.Outer.Path() + "::" + c.Name
}

// VisitFunc is called once per node before its children. The returned
// context is the one the node's children are walked with.
type VisitFunc func(n *clangast.Node, enclosing *ClassContext) (*ClassContext, error)

type frame struct {
	node      *clangast.Node
	enclosing *ClassContext
}

// Walk visits root and its descendants depth-first in pre-order. It keeps
// an explicit work-list instead of recursing, so tree depth is bounded
// only by memory.
func Walk(root *clangast.Node, enclosing *ClassContext, visit VisitFunc) error {
	stack := []frame{{node: root, enclosing: enclosing}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node == nil {
			continue
		}

		inner, err := visit(f.node, f.enclosing)
		if err != nil {
			return err
		}

		for i := len(f.node.Inner) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Inner[i], enclosing: inner})
		}
	}
	return nil
}

// WalkTranslationUnit walks the top-level declarations of root that belong
// to targetFile. Clang prints loc.file only when it changes, so the current
// file carries over to following siblings that omit it.
func WalkTranslationUnit(root *clangast.Node, targetFile string, visit VisitFunc) (walked, skipped int, err error) {
	target := filepath.Clean(targetFile)
	current := ""
	for _, item := range root.Inner {
		if item == nil {
			continue
		}
		if f := item.File(); f != "" {
			current = filepath.Clean(f)
		}
		if current != target {
			skipped++
			continue
		}
		walked++
		if err := Walk(item, nil, visit); err != nil {
			return walked, skipped, err
		}
	}
	return walked, skipped, nil
}
