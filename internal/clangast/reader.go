package clangast

import (
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var (
	// ErrMalformedDocument is returned when the input is not a JSON AST node.
	ErrMalformedDocument = errors.New("malformed AST document")

	// ErrNotTranslationUnit is returned when the root is not a
	// TranslationUnitDecl.
	ErrNotTranslationUnit = errors.New("root node is not a translation unit")
)

// Decode reads one AST document and checks its root.
func Decode(r io.Reader) (*Node, error) {
	var root Node
	dec := json.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(ErrMalformedDocument, "%v", err),
			"produce the input with: clang++ -Xclang -ast-dump=json -fsyntax-only <file>",
		)
	}
	if root.Kind == "" {
		return nil, errors.Wrap(ErrMalformedDocument, "root node has no kind")
	}
	if err := CheckRoot(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// ReadFile decodes the AST document stored at path.
func ReadFile(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open AST file %s", path)
	}
	defer f.Close()

	root, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read AST file %s", path)
	}
	return root, nil
}

// CheckRoot verifies that root is a translation unit.
func CheckRoot(root *Node) error {
	if root == nil || root.Kind != KindTranslationUnit {
		kind := "<nil>"
		if root != nil {
			kind = root.Kind
		}
		return errors.Wrapf(ErrNotTranslationUnit, "got %q", kind)
	}
	return nil
}
