// Package annuaire keeps a sqlite index of every document a batch has seen:
// its format version, title, type and the outcome of its latest compilation.
package annuaire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/compile"
	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Document is one indexed row.
type Document struct {
	Path       string    `json:"path"`
	Version    string    `json:"version"`
	Title      string    `json:"title,omitempty"`
	DocType    string    `json:"type_document,omitempty"`
	Variants   []string  `json:"variants,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	RunID      string    `json:"run_id"`
	CompiledAt time.Time `json:"compiled_at"`
}

// RunSummary is one recorded batch run.
type RunSummary struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Total    int       `json:"total"`
	Failed   int       `json:"failed"`
	Mode     string    `json:"mode"`
}

// Store is the sqlite-backed index. It implements batch.Observer.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ batch.Observer = (*Store)(nil)

// Open opens or creates the index at path. Use ":memory:" for a transient index.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryIndex, "open sqlite index").
			WithContext("path", path).
			Build()
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryIndex, "initialize index schema").
			WithContext("path", path).
			Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		title TEXT,
		doc_type TEXT,
		variants TEXT,
		success INTEGER NOT NULL,
		error TEXT,
		run_id TEXT NOT NULL,
		compiled_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		total INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		mode TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(doc_type);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts the index row for a finished entry.
func (s *Store) Record(ctx context.Context, run batch.Run, e batch.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errMsg := ""
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, version, title, doc_type, variants, success, error, run_id, compiled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			version = excluded.version,
			title = excluded.title,
			doc_type = excluded.doc_type,
			variants = excluded.variants,
			success = excluded.success,
			error = excluded.error,
			run_id = excluded.run_id,
			compiled_at = excluded.compiled_at`,
		e.Path, e.Version.String(), e.Title, e.DocType, joinVariants(e.Results),
		!e.Failed(), errMsg, run.ID, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// RecordRun stores the summary of a finished run.
func (s *Store) RecordRun(ctx context.Context, run batch.Run, entries []batch.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO runs (id, started_at, finished_at, total, failed, mode) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.Started.UnixMilli(), time.Now().UnixMilli(), len(entries), batch.Failures(entries), run.Mode.String(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// EntryDone records the entry, skipped ones excepted. Failures are logged, never propagated.
func (s *Store) EntryDone(ctx context.Context, run batch.Run, e batch.Entry) {
	if e.Skipped != "" {
		return
	}
	if err := s.Record(ctx, run, e); err != nil {
		slog.Warn("Index update failed", logfields.RunID(run.ID), logfields.Path(e.Path), logfields.Error(err))
	}
}

// RunDone records the run summary.
func (s *Store) RunDone(ctx context.Context, run batch.Run, entries []batch.Entry) {
	if err := s.RecordRun(ctx, run, entries); err != nil {
		slog.Warn("Index run record failed", logfields.RunID(run.ID), logfields.Error(err))
	}
}

const documentColumns = "path, version, title, doc_type, variants, success, error, run_id, compiled_at"

// Get returns the row for path.
func (s *Store) Get(ctx context.Context, path string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE path = ?", path)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, foundationerrors.NotFoundError("document not indexed").
			WithContext("path", path).
			Build()
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document: %w", err)
	}
	return d, nil
}

// List returns indexed documents ordered by path. An empty docType lists all.
func (s *Store) List(ctx context.Context, docType string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if docType != "" {
		query += " WHERE doc_type = ?"
		args = append(args, docType)
	}
	query += " ORDER BY path"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Runs returns the most recent runs first, at most limit of them.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, total, failed, mode FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Total, &r.Failed, &r.Mode); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(started)
		r.Finished = time.UnixMilli(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var d Document
	var title, docType, variants, errMsg sql.NullString
	var compiledAt int64
	if err := row.Scan(&d.Path, &d.Version, &title, &docType, &variants, &d.Success, &errMsg, &d.RunID, &compiledAt); err != nil {
		return Document{}, err
	}
	d.Title = title.String
	d.DocType = docType.String
	d.Error = errMsg.String
	if variants.String != "" {
		d.Variants = strings.Split(variants.String, ",")
	}
	d.CompiledAt = time.UnixMilli(compiledAt)
	return d, nil
}

func joinVariants(results []compile.Result) string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, string(r.Variant))
	}
	return strings.Join(names, ",")
}
