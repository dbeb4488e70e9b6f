package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"oopcheck/internal/facts"
	"oopcheck/internal/term"
)

// timeLayout has a fixed width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to init schema")
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT,
			target TEXT,
			frontend TEXT,
			created_at TEXT,
			fact_count INTEGER,
			diagnostics JSON
		);`,
		`CREATE TABLE IF NOT EXISTS facts (
			run_id TEXT,
			seq INTEGER,
			relation TEXT,
			args JSON,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_facts_relation ON facts(run_id, relation);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, fs []facts.Fact) error {
	diags, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return errors.Wrap(err, "failed to encode diagnostics")
	}
	run.FactCount = len(fs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, input, target, frontend, created_at, fact_count, diagnostics)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			input=excluded.input,
			target=excluded.target,
			frontend=excluded.frontend,
			created_at=excluded.created_at,
			fact_count=excluded.fact_count,
			diagnostics=excluded.diagnostics
	`, run.ID, run.Input, run.Target, run.Frontend, run.CreatedAt.UTC().Format(timeLayout), run.FactCount, diags); err != nil {
		return errors.Wrapf(err, "failed to save run %s", run.ID)
	}

	// Facts are a snapshot: a re-saved run replaces what it had.
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE run_id = ?`, run.ID); err != nil {
		return errors.Wrapf(err, "failed to clear facts of run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO facts (run_id, seq, relation, args) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range fs {
		args, err := encodeArgs(f.Args)
		if err != nil {
			return errors.Wrapf(err, "failed to encode fact %s", f)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, f.Relation, args); err != nil {
			return errors.Wrapf(err, "failed to save fact %s", f)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadRun(ctx context.Context, id string) (*Run, *facts.Store, error) {
	run, err := s.getRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT relation, args FROM facts WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to query facts")
	}
	defer rows.Close()

	store := facts.NewStore()
	for rows.Next() {
		var rel string
		var raw []byte
		if err := rows.Scan(&rel, &raw); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan fact")
		}
		args, err := decodeArgs(raw)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to decode %s fact of run %s", rel, id)
		}
		store.Assert(facts.Fact{Relation: rel, Args: args})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	store.Freeze()

	return run, store, nil
}

func (s *SQLiteStore) getRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input, target, frontend, created_at, fact_count, diagnostics
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input, target, frontend, created_at, fact_count, diagnostics
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) ResolveRunID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", errors.Wrap(ErrRunNotFound, "empty run id")
	}

	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, pattern)
	if err != nil {
		return "", errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", errors.Wrapf(ErrRunNotFound, "%s", prefix)
	case 1:
		return ids[0], nil
	}
	return "", errors.WithHint(errors.Wrapf(ErrAmbiguousRun, "%s", prefix), "use more characters of the run id")
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete run %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE run_id = ?`, id); err != nil {
		return errors.Wrapf(err, "failed to delete facts of run %s", id)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run     Run
		created string
		diags   []byte
	)
	if err := sc.Scan(&run.ID, &run.Input, &run.Target, &run.Frontend, &created, &run.FactCount, &diags); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s has a bad timestamp", run.ID)
	}
	run.CreatedAt = t
	if len(diags) > 0 {
		if err := json.Unmarshal(diags, &run.Diagnostics); err != nil {
			return nil, errors.Wrapf(err, "run %s has bad diagnostics", run.ID)
		}
	}
	return &run, nil
}

// Fact arguments are stored as JSON: atoms are strings, integers are
// numbers and lists are arrays.

func encodeArgs(args []term.Term) ([]byte, error) {
	vals := make([]any, len(args))
	for i, a := range args {
		v, err := encodeTerm(a)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return json.Marshal(vals)
}

func encodeTerm(t term.Term) (any, error) {
	switch x := t.(type) {
	case term.Atom:
		return string(x), nil
	case term.Int:
		return int64(x), nil
	}
	elems, ok := term.Elements(t, nil)
	if !ok {
		return nil, errors.Newf("cannot store term %s", t)
	}
	out := make([]any, len(elems))
	for i, e := range elems {
		v, err := encodeTerm(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeArgs(raw []byte) ([]term.Term, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var vals []any
	if err := dec.Decode(&vals); err != nil {
		return nil, err
	}
	out := make([]term.Term, len(vals))
	for i, v := range vals {
		t, err := decodeTerm(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func decodeTerm(v any) (term.Term, error) {
	switch x := v.(type) {
	case string:
		return term.Atom(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, errors.Wrapf(err, "non-integer %s", x)
		}
		return term.Int(n), nil
	case []any:
		elems := make([]term.Term, len(x))
		for i, e := range x {
			t, err := decodeTerm(e)
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		return term.List(elems...), nil
	}
	return nil, errors.Newf("unexpected JSON value %v", v)
}
