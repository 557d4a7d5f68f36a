package backend

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/sha1n/relic-search/internal/domain"
)

// SQLiteBackend stores document metadata in a table and contents in an FTS5
// virtual table sharing its rowid. Queries use the FTS5 MATCH syntax.
type SQLiteBackend struct {
	mu      sync.RWMutex
	db      *sql.DB
	path    string
	timeout time.Duration
	closed  bool
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite opens or creates the database at path. An empty path creates an
// in-memory database.
func OpenSQLite(path string, opts Options) (*SQLiteBackend, error) {
	timeout := opts.timeout()

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteBackend{db: db, path: path, timeout: timeout}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		rowid     INTEGER PRIMARY KEY,
		id        TEXT NOT NULL UNIQUE,
		repo      TEXT NOT NULL,
		filename  TEXT NOT NULL,
		version   TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS documents_repo_timestamp ON documents(repo, timestamp);

	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		contents,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add implements Backend. Documents sharing an ID are replaced; FTS5 has no
// REPLACE, so the old contents row is deleted first.
func (s *SQLiteBackend) Add(ctx context.Context, docs ...domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents(id, repo, filename, version, timestamp) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo = excluded.repo,
			filename = excluded.filename,
			version = excluded.version,
			timestamp = excluded.timestamp
		RETURNING rowid`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer upsertStmt.Close()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM documents_fts WHERE rowid = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO documents_fts(rowid, contents) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	for _, doc := range docs {
		var rowid int64
		err := upsertStmt.QueryRowContext(ctx, doc.ID, doc.Repo, doc.Filename, doc.Version, formatTimestamp(doc.Timestamp)).Scan(&rowid)
		if err != nil {
			return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
		}
		if _, err := deleteStmt.ExecContext(ctx, rowid); err != nil {
			return fmt.Errorf("failed to delete existing contents %s: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, rowid, doc.Contents); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Search implements Backend.
func (s *SQLiteBackend) Search(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	from, where, args := s.buildWhere(req)

	var total uint64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+from+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = storedFields
	}
	columns := make([]string, len(fields))
	for i, f := range fields {
		if !isStoredField(f) {
			return nil, fmt.Errorf("unknown field %q", f)
		}
		columns[i] = columnFor(f)
	}

	order := " ORDER BY d.rowid"
	if req.Sort != nil {
		dir := "ASC"
		if req.Sort.Descending {
			dir = "DESC"
		}
		order = fmt.Sprintf(" ORDER BY %s %s, d.rowid %s", columnFor(req.Sort.Field), dir, dir)
	}

	stmt := "SELECT d.id, " + strings.Join(columns, ", ") + " " + from + where + order + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, stmt, append(args, limitOrDefault(req.Limit), req.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	result := &Result{HitCount: total}
	for rows.Next() {
		var id string
		values := make([]sql.NullString, len(fields))
		dest := make([]any, 0, len(fields)+1)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		hit := Hit{ID: id, Fields: make(map[string]string, len(fields))}
		for i, f := range fields {
			if values[i].Valid {
				hit.Fields[f] = values[i].String
			}
		}
		result.Documents = append(result.Documents, hit)
	}

	return result, rows.Err()
}

// buildWhere returns the FROM clause, the WHERE clause and its arguments.
func (s *SQLiteBackend) buildWhere(req Request) (string, string, []any) {
	from := "FROM documents d JOIN documents_fts ON documents_fts.rowid = d.rowid"

	var conds []string
	var args []any
	if req.Query != "" {
		conds = append(conds, "documents_fts MATCH ?")
		args = append(args, req.Query)
	}
	for _, f := range req.Filters {
		conds = append(conds, columnFor(f.Field)+" = ?")
		args = append(args, f.Value)
	}

	if len(conds) == 0 {
		return from, "", args
	}
	return from, " WHERE " + strings.Join(conds, " AND "), args
}

// columnFor maps a stored field to its column. Callers validate field names.
func columnFor(field string) string {
	if field == domain.FieldContents {
		return "documents_fts.contents"
	}
	return "d." + field
}

// Commit implements Backend by merging the FTS5 b-trees and, for file
// databases, checkpointing the WAL.
func (s *SQLiteBackend) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `INSERT INTO documents_fts(documents_fts) VALUES ('optimize')`); err != nil {
		return fmt.Errorf("optimize failed: %w", err)
	}
	if s.path != "" {
		if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("checkpoint failed: %w", err)
		}
	}
	return nil
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
