// Package postgres implements the Store over raw SQL against PostgreSQL.
// Slug uniqueness is enforced by the database: inserts probe candidate
// slugs and retry on a unique violation, so concurrent creates from
// several processes stay safe. Document mutations and the parent
// module's updated_at bump share one transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/avelichko/promo-cms/pkg/api"
	"github.com/avelichko/promo-cms/pkg/sessions"
	"github.com/avelichko/promo-cms/pkg/storage/postgres/migrations"
)

const uniqueViolation = "23505"

// maxSlugAttempts bounds the probe loop; past this the create fails
// rather than spinning against a pathological table.
const maxSlugAttempts = 100

// Config holds connection settings for the PostgreSQL backend.
type Config struct {
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout time.Duration
}

// Storage implements api.Store over PostgreSQL.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// New opens a connection pool against cfg.DSN and verifies it with a ping.
func New(cfg Config) (*Storage, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an existing handle. Tests use it with sqlmock.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db, now: time.Now}
}

// gooseUpContext is a seam for testing Migrate.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// ListModules implements api.Store.
func (s *Storage) ListModules(ctx context.Context) ([]api.ModuleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, preview, updated_at
		FROM modules
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	out := []api.ModuleSummary{}
	for rows.Next() {
		var m api.ModuleSummary
		if err := rows.Scan(&m.ID, &m.Slug, &m.Title, &m.Preview, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return out, nil
}

func (s *Storage) getModule(ctx context.Context, where string, arg any) (*api.ModuleDetail, error) {
	var m api.Module
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, preview, description, created_at, updated_at
		FROM modules
		WHERE `+where, arg).Scan(
		&m.ID, &m.Slug, &m.Title, &m.Preview, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}

	docs, err := s.listDocumentSummaries(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return &api.ModuleDetail{Module: m, Documents: docs}, nil
}

func (s *Storage) listDocumentSummaries(ctx context.Context, moduleID string) ([]api.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, updated_at
		FROM documents
		WHERE module_id = $1
		ORDER BY updated_at DESC`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	out := []api.DocumentSummary{}
	for rows.Next() {
		var d api.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return out, nil
}

// GetModuleBySlug implements api.Store.
func (s *Storage) GetModuleBySlug(ctx context.Context, slug string) (*api.ModuleDetail, error) {
	return s.getModule(ctx, "slug = $1", slug)
}

// GetModuleByID implements api.Store.
func (s *Storage) GetModuleByID(ctx context.Context, id string) (*api.ModuleDetail, error) {
	return s.getModule(ctx, "id = $1", id)
}

// CreateModule implements api.Store. The UNIQUE constraint on slug is
// the arbiter: each candidate slug is tried with an INSERT, and a
// unique violation moves on to the next suffix.
func (s *Storage) CreateModule(ctx context.Context, draft api.ModuleDraft) (*api.ModuleDetail, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	base := draft.BaseSlug()
	now := s.now().UTC()
	module := api.Module{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(draft.Title),
		Preview:     draft.NormalizedPreview(),
		Description: draft.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt+1)
		}

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO modules (id, slug, title, preview, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			module.ID, candidate, module.Title, module.Preview, module.Description,
			module.CreatedAt, module.UpdatedAt)
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create module: %w", err)
		}
		module.Slug = candidate
		return &api.ModuleDetail{Module: module, Documents: []api.DocumentSummary{}}, nil
	}
	return nil, api.ErrSlugConflict
}

// UpdateModule implements api.Store. NULL parameters leave the stored
// column untouched; the slug is never part of the statement.
func (s *Storage) UpdateModule(ctx context.Context, id string, upd api.ModuleUpdate) (*api.ModuleDetail, error) {
	title := upd.Title
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		title = &trimmed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE modules
		SET title = COALESCE($2, title),
		    preview = COALESCE($3, preview),
		    description = COALESCE($4, description),
		    updated_at = $5
		WHERE id = $1`,
		id, title, upd.Preview, upd.Description, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update module: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update module: %w", err)
	}
	if affected == 0 {
		return nil, api.ErrNotFound
	}
	return s.GetModuleByID(ctx, id)
}

// DeleteModule implements api.Store. Documents go with the module via
// the ON DELETE CASCADE constraint.
func (s *Storage) DeleteModule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}
	if affected == 0 {
		return api.ErrNotFound
	}
	return nil
}

// GetDocument implements api.Store.
func (s *Storage) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	var d api.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, module_id, title, content, updated_at
		FROM documents
		WHERE id = $1`, id).Scan(&d.ID, &d.ModuleID, &d.Title, &d.Content, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

func (s *Storage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateDocument implements api.Store. The insert and the parent
// updated_at bump commit together.
func (s *Storage) CreateDocument(ctx context.Context, moduleID string, draft api.DocumentDraft) (*api.Document, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := api.Document{
		ID:        uuid.NewString(),
		ModuleID:  moduleID,
		Title:     strings.TrimSpace(draft.Title),
		Content:   draft.Content,
		UpdatedAt: now,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE modules SET updated_at = $2 WHERE id = $1`, moduleID, now)
		if err != nil {
			return fmt.Errorf("failed to touch module: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to touch module: %w", err)
		}
		if affected == 0 {
			return api.ErrModuleNotFound
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, module_id, title, content, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			doc.ID, doc.ModuleID, doc.Title, doc.Content, doc.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocument implements api.Store.
func (s *Storage) UpdateDocument(ctx context.Context, id string, upd api.DocumentUpdate) (*api.Document, error) {
	title := upd.Title
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		title = &trimmed
	}

	now := s.now().UTC()
	var doc api.Document
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE documents
			SET title = COALESCE($2, title),
			    content = COALESCE($3, content),
			    updated_at = $4
			WHERE id = $1
			RETURNING id, module_id, title, content, updated_at`,
			id, title, upd.Content, now).Scan(
			&doc.ID, &doc.ModuleID, &doc.Title, &doc.Content, &doc.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE modules SET updated_at = $2 WHERE id = $1`, doc.ModuleID, now); err != nil {
			return fmt.Errorf("failed to touch module: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument implements api.Store.
func (s *Storage) DeleteDocument(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var moduleID string
		err := tx.QueryRowContext(ctx,
			`DELETE FROM documents WHERE id = $1 RETURNING module_id`, id).Scan(&moduleID)
		if errors.Is(err, sql.ErrNoRows) {
			return api.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE modules SET updated_at = $2 WHERE id = $1`, moduleID, s.now().UTC()); err != nil {
			return fmt.Errorf("failed to touch module: %w", err)
		}
		return nil
	})
}

// CreateSession implements sessions.Store.
func (s *Storage) CreateSession(ctx context.Context, sess *sessions.Session) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, created_at, expires_at)
		VALUES ($1, $2, $3)`,
		sess.Token, sess.CreatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession implements sessions.Store.
func (s *Storage) GetSession(ctx context.Context, token string) (*sessions.Session, error) {
	var sess sessions.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT token, created_at, expires_at
		FROM sessions
		WHERE token = $1`, token).Scan(&sess.Token, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// DeleteSession implements sessions.Store.
func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions implements sessions.Store.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return removed, nil
}

// Ping implements api.Store.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements api.Store.
func (s *Storage) Close() error {
	return s.db.Close()
}
