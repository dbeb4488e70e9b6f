package storage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"oopcheck/internal/extractor"
	"oopcheck/internal/facts"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// Run describes one persisted extraction.
type Run struct {
	ID          string
	Input       string
	Target      string
	Frontend    string
	CreatedAt   time.Time
	FactCount   int
	Diagnostics []extractor.Diagnostic
}

// NewRun creates run metadata with a fresh id.
func NewRun(input, target, frontend string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Input:     input,
		Target:    target,
		Frontend:  frontend,
		CreatedAt: time.Now().UTC(),
	}
}

// Store combines run persistence with lifecycle management.
type Store interface {
	RunStore
	Close() error
}

// RunStore persists extracted fact bases so later queries can run without
// re-reading the syntax tree.
type RunStore interface {
	// SaveRun upserts the run and replaces its facts.
	SaveRun(ctx context.Context, run *Run, fs []facts.Fact) error

	// LoadRun returns the run and a frozen store holding its facts in
	// their original order.
	LoadRun(ctx context.Context, id string) (*Run, *facts.Store, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// ResolveRunID expands a unique id prefix.
	ResolveRunID(ctx context.Context, prefix string) (string, error)

	DeleteRun(ctx context.Context, id string) error
}
