package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CTAG07/linetmpl/pkg/subst"
)

// ErrNotFound is returned when a named template does not exist in the backend.
var ErrNotFound = errors.New("template not found")

// TemplateInfo holds the metadata for a stored template.
type TemplateInfo struct {
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// SetupSchema initializes the template table in the provided database. It
// should be called once on startup before any other operations are performed.
// It is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const schemaTemplates = `
CREATE TABLE IF NOT EXISTS templates (
    template_id INTEGER PRIMARY KEY,
    template_name TEXT NOT NULL UNIQUE,
    content BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store is a SQLite-backed template store. It holds the database connection
// and prepared SQL statements for efficient access. All methods are safe for
// concurrent use; the underlying *sql.DB handles pooling.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	stmtGet    *sql.Stmt
	stmtUpsert *sql.Stmt
	stmtDelete *sql.Stmt
	stmtList   *sql.Stmt
}

// NewStore creates and returns a new Store. It pre-compiles all necessary SQL
// statements, returning an error if any preparation fails. SetupSchema must
// have been run against the database first.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}

	var err error
	if s.stmtGet, err = db.Prepare("SELECT content FROM templates WHERE template_name = ?"); err != nil {
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}
	if s.stmtUpsert, err = db.Prepare(`
INSERT INTO templates (template_name, content, updated_at) VALUES (?, ?, ?)
ON CONFLICT(template_name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`); err != nil {
		return nil, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	if s.stmtDelete, err = db.Prepare("DELETE FROM templates WHERE template_name = ?"); err != nil {
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	if s.stmtList, err = db.Prepare("SELECT template_name, length(content), updated_at FROM templates ORDER BY template_name"); err != nil {
		return nil, fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return s, nil
}

// Close releases the prepared statements. It does not close the database
// connection, which belongs to the caller.
func (s *Store) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtUpsert.Close()
	_ = s.stmtDelete.Close()
	_ = s.stmtList.Close()
}

// Put inserts or replaces the template stored under name.
func (s *Store) Put(ctx context.Context, name string, content []byte) error {
	if _, err := s.stmtUpsert.ExecContext(ctx, name, content, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store template %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "Template stored",
		slog.String("template", name),
		slog.Int("size", len(content)),
	)
	return nil
}

// Get returns the raw bytes of the template stored under name, or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	var content []byte
	err := s.stmtGet.QueryRowContext(ctx, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %q: %w", name, err)
	}
	return content, nil
}

// Delete removes the template stored under name. Deleting a template that
// does not exist returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.stmtDelete.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete template %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	s.logger.InfoContext(ctx, "Template deleted", slog.String("template", name))
	return nil
}

// List returns the metadata of every stored template, ordered by name.
func (s *Store) List(ctx context.Context) ([]TemplateInfo, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var infos []TemplateInfo
	for rows.Next() {
		var info TemplateInfo
		var updated int64
		if err = rows.Scan(&info.Name, &info.Size, &updated); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(updated, 0)
		infos = append(infos, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Source returns a line source reading the template stored under name. The
// blob is loaded once; the source itself adds no further copies.
func (s *Store) Source(ctx context.Context, name string) (*subst.MemorySource, error) {
	content, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return subst.NewMemorySource(content), nil
}
