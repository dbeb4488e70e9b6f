package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oopcheck/internal/extractor"
	"oopcheck/internal/facts"
	"oopcheck/internal/term"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleFacts() []facts.Fact {
	return []facts.Fact{
		facts.Class("Animal"),
		facts.Property("Animal", "age"),
		facts.Constructor("Animal", nil),
		facts.Constructor("Animal", []string{"int", "const std::string &"}),
		facts.Class("Animal"),
		facts.MethodImplementation("Dog", "speak", facts.Outside, "void", nil),
		{Relation: "custom", Args: []term.Term{term.Int(42), term.List(term.Atoms("a"), term.Int(-1))}},
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := NewRun("animal.ast.json", "animal.cpp", "clang")
	run.Diagnostics = []extractor.Diagnostic{{Code: extractor.DiagUnresolvedMethod, NodeID: "0x9", Name: "speak", Message: "unresolved"}}
	want := sampleFacts()
	require.NoError(t, store.SaveRun(ctx, run, want))
	assert.Equal(t, len(want), run.FactCount)

	loaded, fs, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, "animal.cpp", loaded.Target)
	assert.Equal(t, "clang", loaded.Frontend)
	assert.Equal(t, len(want), loaded.FactCount)
	assert.Equal(t, run.Diagnostics, loaded.Diagnostics)
	assert.WithinDuration(t, run.CreatedAt, loaded.CreatedAt, time.Microsecond)

	assert.True(t, fs.Frozen())
	require.Equal(t, len(want), fs.Len())
	for i, f := range fs.All() {
		assert.Equal(t, want[i].String(), f.String())
	}
	assert.Equal(t, 2, fs.Count(facts.RelClass))
}

func TestSQLiteStore_SaveRun_ReplacesFacts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := NewRun("a.cpp", "a.cpp", "cpp")
	require.NoError(t, store.SaveRun(ctx, run, sampleFacts()))
	require.NoError(t, store.SaveRun(ctx, run, []facts.Fact{facts.Class("Only")}))

	_, fs, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fs.Len())
	assert.Equal(t, "class('Only').", fs.All()[0].String())

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteStore_EmptyRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := NewRun("empty.json", "empty.cpp", "clang")
	require.NoError(t, store.SaveRun(ctx, run, nil))

	loaded, fs, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fs.Len())
	assert.Nil(t, loaded.Diagnostics)
}

func TestSQLiteStore_ListAndResolve(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ids := []string{"aaaa1111", "aaaa2222", "bbbb3333"}
	for i, id := range ids {
		run := &Run{ID: id, Input: id + ".json", Target: "x.cpp", Frontend: "clang", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, store.SaveRun(ctx, run, nil))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "bbbb3333", runs[0].ID)
	assert.Equal(t, "aaaa2222", runs[1].ID)

	id, err := store.ResolveRunID(ctx, "bb")
	require.NoError(t, err)
	assert.Equal(t, "bbbb3333", id)

	_, err = store.ResolveRunID(ctx, "aaaa")
	assert.True(t, errors.Is(err, ErrAmbiguousRun))

	_, err = store.ResolveRunID(ctx, "cc")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = store.ResolveRunID(ctx, "%")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := NewRun("a.json", "a.cpp", "clang")
	require.NoError(t, store.SaveRun(ctx, run, sampleFacts()))
	require.NoError(t, store.DeleteRun(ctx, run.ID))

	_, _, err := store.LoadRun(ctx, run.ID)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(store.DeleteRun(ctx, run.ID), ErrRunNotFound))
}

func TestEncodeTerm_RejectsVariables(t *testing.T) {
	_, err := encodeArgs([]term.Term{term.Var{ID: 1, Name: "X"}})
	assert.Error(t, err)
}
