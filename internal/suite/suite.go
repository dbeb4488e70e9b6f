// Package suite runs a list of goals with expected verdicts against one
// fact base, described in a YAML file:
//
//	input: animal.ast.json
//	target: animal.cpp
//	checks:
//	  - name: animal has an age
//	    query: property('Animal', age)
//	    expect: PASSED
package suite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"oopcheck/internal/checker"
	"oopcheck/internal/facts"
)

var ErrInvalidSuite = errors.New("invalid suite")

type Suite struct {
	Input    string  `yaml:"input"`
	Target   string  `yaml:"target"`
	Frontend string  `yaml:"frontend"`
	Checks   []Check `yaml:"checks"`

	// dir is the directory relative input paths are resolved against.
	dir string
}

type Check struct {
	Name   string          `yaml:"name"`
	Query  string          `yaml:"query"`
	Expect checker.Verdict `yaml:"expect"`
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read suite %s", path)
	}
	s, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "suite %s", path)
	}
	return s, nil
}

// Parse decodes a suite. Relative input paths are resolved against dir.
func Parse(data []byte, dir string) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(ErrInvalidSuite, "%v", err)
	}
	s.dir = dir

	if len(s.Checks) == 0 {
		return nil, errors.Wrap(ErrInvalidSuite, "no checks")
	}
	for i := range s.Checks {
		c := &s.Checks[i]
		if strings.TrimSpace(c.Query) == "" {
			return nil, errors.Wrapf(ErrInvalidSuite, "check %d has no query", i+1)
		}
		if c.Name == "" {
			c.Name = c.Query
		}
		switch checker.Verdict(strings.ToUpper(string(c.Expect))) {
		case "", checker.Passed:
			c.Expect = checker.Passed
		case checker.Failed:
			c.Expect = checker.Failed
		default:
			return nil, errors.Wrapf(ErrInvalidSuite, "check %q: expect must be PASSED or FAILED, got %q", c.Name, c.Expect)
		}
	}
	return &s, nil
}

// InputPath is Input resolved against the suite's directory.
func (s *Suite) InputPath() string {
	if s.Input == "" || filepath.IsAbs(s.Input) {
		return s.Input
	}
	return filepath.Join(s.dir, s.Input)
}

// Result is the outcome of one check. Err is set when the goal could not be
// evaluated; such a check never matches its expectation.
type Result struct {
	Check   Check
	Verdict checker.Verdict
	Err     error
	Elapsed time.Duration
}

func (r Result) OK() bool { return r.Err == nil && r.Verdict == r.Check.Expect }

type Report struct {
	Results []Result
	Passed  int
	Failed  int
	Errored int
}

func (r *Report) OK() bool { return r.Failed == 0 && r.Errored == 0 }

// Runner evaluates suites with a shared checker.
type Runner struct {
	checker *checker.Checker
	logger  *zap.SugaredLogger
}

func NewRunner(c *checker.Checker, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{checker: c, logger: logger}
}

// Run loads the suite's input once and evaluates every check against it.
// Only a failure to load the input is returned as an error.
func (r *Runner) Run(ctx context.Context, s *Suite) (*Report, error) {
	frontend, err := checker.ParseFrontend(s.Frontend)
	if err != nil {
		return nil, err
	}
	res, err := r.checker.Load(ctx, checker.Input{Path: s.InputPath(), Target: s.Target, Frontend: frontend})
	if err != nil {
		return nil, err
	}
	return r.RunAgainst(ctx, s, res.Store), nil
}

// RunAgainst evaluates every check against an already loaded fact base.
func (r *Runner) RunAgainst(ctx context.Context, s *Suite, src facts.Source) *Report {
	report := &Report{}
	for _, c := range s.Checks {
		start := time.Now()
		out, err := r.checker.Check(ctx, src, c.Query)
		res := Result{Check: c, Verdict: out.Verdict, Err: err, Elapsed: time.Since(start)}

		switch {
		case err != nil:
			report.Errored++
			r.logger.Warnw("check errored", "name", c.Name, "error", err)
		case res.OK():
			report.Passed++
		default:
			report.Failed++
			r.logger.Infow("check did not match", "name", c.Name, "expected", c.Expect, "got", out.Verdict)
		}
		report.Results = append(report.Results, res)
	}
	return report
}
