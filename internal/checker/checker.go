// Package checker runs one structural check: load a syntax tree, extract
// facts for the target file, evaluate a goal and turn the answer into a
// verdict.
package checker

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"oopcheck/internal/clangast"
	"oopcheck/internal/cppsource"
	"oopcheck/internal/extractor"
	"oopcheck/internal/facts"
	"oopcheck/internal/query"
)

// Verdict is the binary outcome of a check.
type Verdict string

const (
	Passed Verdict = "PASSED"
	Failed Verdict = "FAILED"
)

// VerdictOf maps "a solution exists" to a verdict.
func VerdictOf(found bool) Verdict {
	if found {
		return Passed
	}
	return Failed
}

// Frontend selects how the input file is turned into a syntax tree.
type Frontend string

const (
	FrontendAuto   Frontend = "auto"
	FrontendClang  Frontend = "clang"
	FrontendSource Frontend = "cpp"
)

var (
	ErrUnknownFrontend = errors.New("unknown frontend")
	ErrNoTarget        = errors.New("target file not set")
)

// ParseFrontend validates a frontend name. The empty string means auto.
func ParseFrontend(s string) (Frontend, error) {
	switch f := Frontend(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FrontendAuto, nil
	case FrontendAuto, FrontendClang, FrontendSource:
		return f, nil
	}
	return "", errors.WithHint(errors.Wrapf(ErrUnknownFrontend, "%q", s), "use one of: auto, clang, cpp")
}

// DetectFrontend picks clang for JSON dumps and the source front end for
// everything else.
func DetectFrontend(path string) Frontend {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FrontendClang
	}
	return FrontendSource
}

// Input names what to check.
type Input struct {
	// Path is a Clang JSON AST dump or a C++ source file.
	Path string
	// Target restricts extraction to declarations from this file. For C++
	// sources it defaults to Path.
	Target   string
	Frontend Frontend
}

// Options configure a Checker.
type Options struct {
	StepBudget int
}

// Outcome is the answer to one goal.
type Outcome struct {
	Query   string
	Verdict Verdict
	Result  query.Result
}

// Report is the result of Run.
type Report struct {
	Outcome
	Extraction *extractor.Result
	Elapsed    time.Duration
}

// Checker orchestrates loading, extraction and evaluation.
type Checker struct {
	opts      Options
	logger    *zap.SugaredLogger
	extractor *extractor.Extractor
	parser    *cppsource.Parser
}

// New creates a checker. A nil logger discards output.
func New(opts Options, logger *zap.SugaredLogger) *Checker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Checker{
		opts:      opts,
		logger:    logger,
		extractor: extractor.NewExtractor(logger.Named("extractor")),
		parser:    cppsource.NewParser(logger.Named("cppsource")),
	}
}

// Load reads the input and extracts the facts of its target file. The
// returned store is frozen.
func (c *Checker) Load(ctx context.Context, in Input) (*extractor.Result, error) {
	frontend := in.Frontend
	if frontend == "" || frontend == FrontendAuto {
		frontend = DetectFrontend(in.Path)
	}

	var (
		root   *clangast.Node
		target = in.Target
		err    error
	)
	switch frontend {
	case FrontendClang:
		if target == "" {
			return nil, errors.WithHint(ErrNoTarget,
				"pass the source file name as it appears in loc.file, e.g. --target animal.cpp")
		}
		root, err = clangast.ReadFile(in.Path)
	case FrontendSource:
		if target == "" {
			target = in.Path
		}
		root, err = c.parser.ParseFile(ctx, in.Path)
	default:
		return nil, errors.Wrapf(ErrUnknownFrontend, "%q", frontend)
	}
	if err != nil {
		return nil, err
	}

	res, err := c.extractor.Extract(root, target)
	if err != nil {
		return nil, errors.Wrapf(err, "extraction from %s failed", in.Path)
	}

	c.logger.Infow("facts extracted",
		"input", in.Path,
		"frontend", frontend,
		"target", target,
		"facts", res.Store.Len(),
		"diagnostics", len(res.Diagnostics))
	return res, nil
}

// Check evaluates goal against src.
func (c *Checker) Check(ctx context.Context, src facts.Source, goal string) (Outcome, error) {
	q, err := query.Parse(goal)
	if err != nil {
		return Outcome{}, err
	}
	eval := query.NewEvaluator(src, query.Options{StepBudget: c.opts.StepBudget}, c.logger.Named("query"))
	res, err := eval.Solve(ctx, q)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Query: goal, Verdict: VerdictOf(res.Found), Result: res}, nil
}

// Run loads the input and evaluates goal once. Any error means there is
// no verdict.
func (c *Checker) Run(ctx context.Context, in Input, goal string) (*Report, error) {
	start := time.Now()

	// Query errors are reported before the input is read.
	q, err := query.Parse(goal)
	if err != nil {
		return nil, err
	}
	if err := query.Validate(q); err != nil {
		return nil, err
	}

	res, err := c.Load(ctx, in)
	if err != nil {
		return nil, err
	}

	out, err := c.Check(ctx, res.Store, goal)
	if err != nil {
		return nil, err
	}

	report := &Report{Outcome: out, Extraction: res, Elapsed: time.Since(start)}
	c.logger.Infow("check finished", "verdict", out.Verdict, "steps", out.Result.Steps, "elapsed", report.Elapsed)
	return report, nil
}
