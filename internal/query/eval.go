package query

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"oopcheck/internal/facts"
	"oopcheck/internal/term"
)

const ctxCheckInterval = 1024

// Options tune one evaluation.
type Options struct {
	// StepBudget caps the number of resolution steps. Zero means no limit.
	StepBudget int
}

// Result reports whether the goal has a solution. Bindings holds the named
// variables of the first solution.
type Result struct {
	Found    bool
	Bindings map[string]term.Term
	Steps    int
}

// Evaluator answers goals against a frozen fact source by depth-first
// search with backtracking.
type Evaluator struct {
	src    facts.Source
	opts   Options
	logger *zap.SugaredLogger
}

// NewEvaluator creates an evaluator. A nil logger discards output.
func NewEvaluator(src facts.Source, opts Options, logger *zap.SugaredLogger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Evaluator{src: src, opts: opts, logger: logger}
}

// Solve validates q and searches for its first solution. Errors are never
// a "no solution" answer: they report a bad query, a runtime
// instantiation problem, an exhausted budget or a cancelled context.
func (e *Evaluator) Solve(ctx context.Context, q *Query) (Result, error) {
	if err := Validate(q); err != nil {
		return Result{}, err
	}

	s := &search{
		ctx:     ctx,
		src:     e.src,
		budget:  e.opts.StepBudget,
		b:       NewBindings(),
		nextVar: q.NumVars,
	}

	var res Result
	found, err := s.solve(q.Goal, func() (bool, error) {
		res.Bindings = make(map[string]term.Term)
		for _, v := range q.Vars {
			if strings.HasPrefix(v.Name, "_") {
				continue
			}
			res.Bindings[v.Name] = s.b.Resolve(v)
		}
		return true, nil
	})
	res.Found = found
	res.Steps = s.steps
	if err != nil {
		e.logger.Debugw("query aborted", "query", q.Source, "steps", s.steps, "error", err)
		return res, err
	}

	e.logger.Debugw("query evaluated", "query", q.Source, "found", found, "steps", s.steps)
	return res, nil
}

// SolveString parses and solves src.
func (e *Evaluator) SolveString(ctx context.Context, src string) (Result, error) {
	q, err := Parse(src)
	if err != nil {
		return Result{}, err
	}
	return e.Solve(ctx, q)
}

// cont is a success continuation. It returns true to stop the search.
type cont func() (bool, error)

type search struct {
	ctx     context.Context
	src     facts.Source
	budget  int
	steps   int
	b       *Bindings
	nextVar int
}

func (s *search) tick() error {
	s.steps++
	if s.budget > 0 && s.steps > s.budget {
		return errors.Wrapf(ErrBudgetExhausted, "after %d steps", s.budget)
	}
	if s.steps%ctxCheckInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			return errors.Wrap(err, "query evaluation cancelled")
		}
	}
	return nil
}

func (s *search) fresh() term.Var {
	v := term.Var{ID: s.nextVar}
	s.nextVar++
	return v
}

func (s *search) solve(g Goal, k cont) (bool, error) {
	if err := s.tick(); err != nil {
		return false, err
	}

	switch g := g.(type) {
	case Conj:
		return s.conj(g.Goals, k)

	case Disj:
		for _, alt := range g.Alts {
			mark := s.b.Mark()
			stop, err := s.solve(alt, k)
			if stop || err != nil {
				return stop, err
			}
			s.b.Undo(mark)
		}
		return false, nil

	case Not:
		mark := s.b.Mark()
		found, err := s.solve(g.Goal, func() (bool, error) { return true, nil })
		s.b.Undo(mark)
		if err != nil || found {
			return false, err
		}
		return k()

	case Call:
		if fn, ok := builtins[g.Name]; ok {
			return fn(s, g.Args, k)
		}
		return s.relation(g, k)
	}
	return false, errors.AssertionFailedf("unexpected goal %T", g)
}

func (s *search) conj(goals []Goal, k cont) (bool, error) {
	if len(goals) == 0 {
		return k()
	}
	return s.solve(goals[0], func() (bool, error) {
		return s.conj(goals[1:], k)
	})
}

// relation tries each stored fact in assertion order.
func (s *search) relation(c Call, k cont) (bool, error) {
	for f := range s.src.FactsOf(c.Name) {
		if err := s.tick(); err != nil {
			return false, err
		}
		if len(f.Args) != len(c.Args) {
			continue
		}
		mark := s.b.Mark()
		if s.unifyAll(c.Args, f.Args) {
			stop, err := k()
			if stop || err != nil {
				return stop, err
			}
		}
		s.b.Undo(mark)
	}
	return false, nil
}

func (s *search) unifyAll(xs, ys []term.Term) bool {
	for i := range xs {
		if !s.b.Unify(xs[i], ys[i]) {
			return false
		}
	}
	return true
}

// once runs k if a unifies with c, undoing the bindings when the branch
// fails.
func (s *search) once(a, c term.Term, k cont) (bool, error) {
	mark := s.b.Mark()
	if s.b.Unify(a, c) {
		stop, err := k()
		if stop || err != nil {
			return stop, err
		}
	}
	s.b.Undo(mark)
	return false, nil
}
