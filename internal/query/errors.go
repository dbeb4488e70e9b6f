package query

import "github.com/cockroachdb/errors"

// Query authoring and evaluation errors. None of them is a FAILED verdict.
var (
	ErrSyntax          = errors.New("query syntax error")
	ErrUnknownRelation = errors.New("unknown relation")
	ErrArity           = errors.New("wrong arity")
	ErrInstantiation   = errors.New("instantiation error")
	ErrBudgetExhausted = errors.New("step budget exhausted")
)
