package extractor

import (
	"go.uber.org/zap"

	"oopcheck/internal/clangast"
	"oopcheck/internal/facts"
)

// Stats summarises one extraction run.
type Stats struct {
	TopLevelWalked  int `json:"top_level_walked"`
	TopLevelSkipped int `json:"top_level_skipped"`
	NodesVisited    int `json:"nodes_visited"`
	// DeclarationsIndexed counts in-class method declarations that
	// out-of-line definitions can resolve to.
	DeclarationsIndexed int            `json:"declarations_indexed"`
	FactsByRelation     map[string]int `json:"facts_by_relation"`
}

// Result is the outcome of one extraction run. Store is frozen.
type Result struct {
	Store       *facts.Store
	Diagnostics []Diagnostic
	Stats       Stats
}

// Extractor turns a Clang AST into a fact base.
type Extractor struct {
	logger *zap.SugaredLogger
}

// NewExtractor creates an extractor. A nil logger discards output.
func NewExtractor(logger *zap.SugaredLogger) *Extractor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Extractor{logger: logger}
}

// Extract walks the top-level declarations of root that belong to
// targetFile and collects their facts. A malformed signature aborts the run.
func (e *Extractor) Extract(root *clangast.Node, targetFile string) (*Result, error) {
	if err := clangast.CheckRoot(root); err != nil {
		return nil, err
	}

	r := newRun(e.logger)
	walked, skipped, err := WalkTranslationUnit(root, targetFile, r.visit)
	if err != nil {
		return nil, err
	}
	r.store.Freeze()

	res := &Result{
		Store:       r.store,
		Diagnostics: r.diags,
		Stats: Stats{
			TopLevelWalked:      walked,
			TopLevelSkipped:     skipped,
			NodesVisited:        r.visited,
			DeclarationsIndexed: r.xref.Len(),
			FactsByRelation:     make(map[string]int),
		},
	}
	for _, rel := range facts.RelationNames() {
		if n := r.store.Count(rel); n > 0 {
			res.Stats.FactsByRelation[rel] = n
		}
	}

	e.logger.Debugw("extraction finished",
		"target", targetFile,
		"top_level_walked", walked,
		"top_level_skipped", skipped,
		"nodes", r.visited,
		"facts", r.store.Len(),
		"diagnostics", len(r.diags))
	return res, nil
}

// run is the state of one extraction. The cross-reference table lives
// and dies with it.
type run struct {
	logger  *zap.SugaredLogger
	store   *facts.Store
	xref    *XRefTable
	diags   []Diagnostic
	visited int
}

func newRun(logger *zap.SugaredLogger) *run {
	return &run{
		logger: logger,
		store:  facts.NewStore(),
		xref:   NewXRefTable(),
	}
}

func (r *run) assert(f facts.Fact) {
	r.logger.Debugw("collected fact", "fact", f.String())
	r.store.Assert(f)
}

func (r *run) diagnose(d Diagnostic) {
	r.logger.Warnw(d.Message, "code", d.Code, "id", d.NodeID, "name", d.Name)
	r.diags = append(r.diags, d)
}
