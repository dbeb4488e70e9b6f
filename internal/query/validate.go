package query

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"oopcheck/internal/facts"
)

// Validate checks that every call in q names a schema relation or a
// built-in with the right number of arguments.
func Validate(q *Query) error {
	return validateGoal(q.Goal)
}

func validateGoal(g Goal) error {
	switch g := g.(type) {
	case Call:
		return validateCall(g)
	case Conj:
		for _, sub := range g.Goals {
			if err := validateGoal(sub); err != nil {
				return err
			}
		}
	case Disj:
		for _, sub := range g.Alts {
			if err := validateGoal(sub); err != nil {
				return err
			}
		}
	case Not:
		return validateGoal(g.Goal)
	}
	return nil
}

func validateCall(c Call) error {
	if arity, ok := builtinArity[c.Name]; ok {
		if arity != len(c.Args) {
			return errors.Wrapf(ErrArity, "%s: %s: built-in %s takes %d arguments", c.Pos, c.Indicator(), c.Name, arity)
		}
		return nil
	}

	arity, ok := facts.Arity(c.Name)
	if !ok {
		return errors.WithHint(
			errors.Wrapf(ErrUnknownRelation, "%s: %s", c.Pos, c.Indicator()),
			"known relations: "+strings.Join(knownIndicators(), ", "),
		)
	}
	if arity != len(c.Args) {
		return errors.WithHint(
			errors.Wrapf(ErrArity, "%s: %s: relation %s has arity %d", c.Pos, c.Indicator(), c.Name, arity),
			"example: "+facts.Schema[c.Name].Example,
		)
	}
	return nil
}

func knownIndicators() []string {
	var out []string
	for _, name := range facts.RelationNames() {
		arity, _ := facts.Arity(name)
		out = append(out, name+"/"+strconv.Itoa(arity))
	}
	return out
}
