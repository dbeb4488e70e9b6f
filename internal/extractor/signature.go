package extractor

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMalformedSignature is returned for a type.qualType that does not have
// the shape "ret (params) qualifiers".
var ErrMalformedSignature = errors.New("malformed signature")

// Signature is a parsed function type such as "int (const char *, int) const".
type Signature struct {
	ReturnType string
	Params     []string
	Qualifiers string
}

// ParseSignature splits a Clang function type into its return type,
// ordered parameter types and trailing qualifiers. The parameter list is the
// first "(" outside template arguments, so a return type such as
// "std::function<void (int)>" stays whole. Parameters are split on
// top-level commas only. Shapes where the return type is itself a function
// type are rejected instead of being truncated.
func ParseSignature(s string) (Signature, error) {
	open, err := paramListStart(s)
	if err != nil {
		return Signature{}, errors.Wrapf(err, "%q", s)
	}

	ret := strings.TrimSpace(s[:open])
	if ret == "" {
		return Signature{}, errors.Wrapf(ErrMalformedSignature, "%q: missing return type", s)
	}

	closeIdx := matchParen(s, open)
	if closeIdx < 0 {
		return Signature{}, errors.Wrapf(ErrMalformedSignature, "%q: unbalanced parentheses", s)
	}

	qualifiers := strings.TrimSpace(s[closeIdx+1:])
	if strings.HasPrefix(qualifiers, "(") {
		return Signature{}, errors.WithHint(
			errors.Wrapf(ErrMalformedSignature, "%q: function type returning a function type", s),
			"return types containing parentheses are not supported",
		)
	}
	if !balanced(qualifiers) {
		return Signature{}, errors.Wrapf(ErrMalformedSignature, "%q: unbalanced parentheses after the parameter list", s)
	}

	params, err := splitParams(s[open+1 : closeIdx])
	if err != nil {
		return Signature{}, errors.Wrapf(err, "%q", s)
	}

	return Signature{ReturnType: ret, Params: params, Qualifiers: qualifiers}, nil
}

// paramListStart returns the index of the first "(" outside angle
// brackets. Parentheses inside template arguments belong to the return
// type.
func paramListStart(s string) (int, error) {
	angle := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			angle++
		case '>':
			if angle == 0 {
				return -1, errors.Wrap(ErrMalformedSignature, "unbalanced angle brackets")
			}
			angle--
		case '(':
			if angle == 0 {
				return i, nil
			}
		case ')':
			if angle == 0 {
				return -1, errors.Wrap(ErrMalformedSignature, "unbalanced parentheses")
			}
		}
	}
	if angle != 0 {
		return -1, errors.Wrap(ErrMalformedSignature, "unbalanced angle brackets")
	}
	return -1, errors.Wrap(ErrMalformedSignature, "no parameter list")
}

func balanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// matchParen returns the index of the ')' closing the '(' at open, or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitParams splits a raw parameter list. A blank list is a zero-argument
// signature and yields an empty, non-nil slice.
func splitParams(raw string) ([]string, error) {
	params := []string{}
	if strings.TrimSpace(raw) == "" {
		return params, nil
	}

	depth := 0
	start := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '(', '<', '[':
			depth++
		case ')', '>', ']':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
	}
	params = append(params, strings.TrimSpace(raw[start:]))

	if depth != 0 {
		return nil, errors.Wrap(ErrMalformedSignature, "unbalanced brackets in parameter list")
	}
	for _, p := range params {
		if p == "" {
			return nil, errors.Wrap(ErrMalformedSignature, "empty parameter type")
		}
	}
	return params, nil
}
