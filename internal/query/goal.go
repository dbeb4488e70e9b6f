// Package query parses and evaluates goals over a fact base. The goal
// language is a small Prolog subset: conjunction, disjunction,
// negation-as-failure, stored relations and a fixed set of built-ins.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/cockroachdb/errors"

	"oopcheck/internal/term"
)

// Goal is a node of a lowered query.
type Goal interface {
	fmt.Stringer
	isGoal()
}

// Call applies a relation or built-in to arguments.
type Call struct {
	Name string
	Args []term.Term
	Pos  lexer.Position
}

// Conj succeeds when every goal succeeds, left to right.
type Conj struct{ Goals []Goal }

// Disj tries each alternative in order.
type Disj struct{ Alts []Goal }

// Not succeeds when Goal has no solution. It never binds variables.
type Not struct{ Goal Goal }

func (Call) isGoal() {}
func (Conj) isGoal() {}
func (Disj) isGoal() {}
func (Not) isGoal()  {}

func (c Call) Indicator() string { return c.Name + "/" + strconv.Itoa(len(c.Args)) }

func (c Call) String() string {
	if len(c.Args) == 2 && isOperator(c.Name) {
		return c.Args[0].String() + " " + c.Name + " " + c.Args[1].String()
	}
	if len(c.Args) == 0 {
		return term.Atom(c.Name).String()
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return term.Atom(c.Name).String() + "(" + strings.Join(args, ",") + ")"
}

func (c Conj) String() string { return joinGoals(c.Goals, ", ") }
func (d Disj) String() string { return "(" + joinGoals(d.Alts, " ; ") + ")" }
func (n Not) String() string  { return `\+ ` + n.Goal.String() }

func joinGoals(goals []Goal, sep string) string {
	parts := make([]string, len(goals))
	for i, g := range goals {
		if _, ok := g.(Conj); ok {
			parts[i] = "(" + g.String() + ")"
			continue
		}
		parts[i] = g.String()
	}
	return strings.Join(parts, sep)
}

// Query is a parsed goal together with its named variables.
type Query struct {
	Source string
	Goal   Goal
	// Vars lists the named variables in order of first appearance. Names
	// starting with "_" are not reported in results.
	Vars []term.Var
	// NumVars is one past the highest variable id in the goal.
	NumVars int
}

// Parse parses a goal. Comments start with % and a trailing full stop is
// optional. Double-quoted strings are rejected: facts only hold atoms.
func Parse(src string) (*Query, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.WithHint(errors.Wrap(ErrSyntax, "empty query"),
			"write a goal such as class('Animal'), property('Animal', age)")
	}

	prog, err := goalParser.ParseString("", src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, errors.Wrapf(ErrSyntax, "%s: %s", perr.Position(), perr.Message())
		}
		return nil, errors.Wrapf(ErrSyntax, "%v", err)
	}

	l := &lowering{vars: make(map[string]term.Var), next: 1}
	goal, err := l.disjunction(prog.Body)
	if err != nil {
		return nil, err
	}
	return &Query{Source: src, Goal: goal, Vars: l.order, NumVars: l.next}, nil
}

// MustParse is Parse for goals known to be valid.
func MustParse(src string) *Query {
	q, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return q
}

type lowering struct {
	vars  map[string]term.Var
	order []term.Var
	next  int
}

func (l *lowering) disjunction(d *disjunction) (Goal, error) {
	alts := make([]Goal, 0, len(d.Alts))
	for _, c := range d.Alts {
		g, err := l.conjunction(c)
		if err != nil {
			return nil, err
		}
		alts = append(alts, g)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return Disj{Alts: alts}, nil
}

func (l *lowering) conjunction(c *conjunction) (Goal, error) {
	goals := make([]Goal, 0, len(c.Goals))
	for _, u := range c.Goals {
		g, err := l.unary(u)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	if len(goals) == 1 {
		return goals[0], nil
	}
	return Conj{Goals: goals}, nil
}

func (l *lowering) unary(u *unary) (Goal, error) {
	switch {
	case u.Not != nil:
		inner, err := l.unary(u.Not)
		if err != nil {
			return nil, err
		}
		return Not{Goal: inner}, nil
	case u.Group != nil:
		return l.disjunction(u.Group)
	default:
		return l.simple(u.Simple)
	}
}

func (l *lowering) simple(s *simple) (Goal, error) {
	if s.Op != "" {
		left, err := l.term(s.Left)
		if err != nil {
			return nil, err
		}
		right, err := l.term(s.Right)
		if err != nil {
			return nil, err
		}
		return Call{Name: s.Op, Args: []term.Term{left, right}, Pos: s.Left.Pos}, nil
	}

	c := s.Left.Compound
	if c == nil {
		return nil, errors.Wrapf(ErrSyntax, "%s: goal is not callable", s.Left.Pos)
	}
	name, err := functorName(c.Functor)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", s.Left.Pos)
	}
	args := make([]term.Term, 0, len(c.Args))
	for _, a := range c.Args {
		t, err := l.term(a)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}
	return Call{Name: name, Args: args, Pos: s.Left.Pos}, nil
}

func (l *lowering) term(n *termNode) (term.Term, error) {
	switch {
	case n.Variable != nil:
		return l.variable(*n.Variable), nil
	case n.Int != nil:
		return term.Int(*n.Int), nil
	case n.List != nil:
		elems := make([]term.Term, 0, len(n.List.Elems))
		for _, e := range n.List.Elems {
			t, err := l.term(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, t)
		}
		tail := term.Nil
		if n.List.Tail != nil {
			t, err := l.term(n.List.Tail)
			if err != nil {
				return nil, err
			}
			tail = t
		}
		return term.ListWithTail(tail, elems...), nil
	case n.Compound != nil:
		if len(n.Compound.Args) > 0 {
			return nil, errors.WithHint(
				errors.Wrapf(ErrSyntax, "%s: compound term %s(...) used as an argument", n.Pos, n.Compound.Functor),
				"arguments are atoms, integers, variables or lists",
			)
		}
		name, err := functorName(n.Compound.Functor)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", n.Pos)
		}
		return term.Atom(name), nil
	}
	return nil, errors.Wrapf(ErrSyntax, "%s: empty term", n.Pos)
}

func (l *lowering) variable(name string) term.Var {
	if name == "_" {
		v := term.Var{ID: l.next, Name: "_"}
		l.next++
		return v
	}
	if v, ok := l.vars[name]; ok {
		return v
	}
	v := term.Var{ID: l.next, Name: name}
	l.next++
	l.vars[name] = v
	l.order = append(l.order, v)
	return v
}

func functorName(raw string) (string, error) {
	if raw == "" || (raw[0] != '\'' && raw[0] != '"') {
		return raw, nil
	}
	if raw[0] == '"' {
		// Double quotes denote strings, which never equal an atom.
		return "", errors.WithHint(
			errors.Wrapf(ErrSyntax, "string %s is not an atom", raw),
			"quote atoms with single quotes, e.g. "+term.Atom(raw[1:len(raw)-1]).String(),
		)
	}
	return unquote(raw)
}

// unquote strips the quotes of a quoted atom and resolves escapes. A
// doubled quote character stands for itself.
func unquote(raw string) (string, error) {
	q := raw[0]
	body := raw[1 : len(raw)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == q && i+1 < len(body) && body[i+1] == q:
			b.WriteByte(q)
			i++
		case c == '\\':
			if i+1 >= len(body) {
				return "", errors.Wrapf(ErrSyntax, "dangling escape in %s", raw)
			}
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '\'', '"':
				b.WriteByte(body[i])
			default:
				return "", errors.Wrapf(ErrSyntax, "unknown escape \\%c in %s", body[i], raw)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
