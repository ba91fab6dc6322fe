package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/promo-cms/pkg/api"
	"github.com/avelichko/promo-cms/pkg/sessions"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewWithDB(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func strPtr(s string) *string { return &s }

func TestListModules(t *testing.T) {
	s, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"id", "slug", "title", "preview", "updated_at"}).
		AddRow("id-2", "beta", "Beta", "🧩", fixedNow).
		AddRow("id-1", "alpha", "Alpha", "🧩", fixedNow.Add(-time.Hour))
	mock.ExpectQuery(`SELECT id, slug, title, preview, updated_at\s+FROM modules\s+ORDER BY updated_at DESC`).
		WillReturnRows(rows)

	list, err := s.ListModules(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "beta", list[0].Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModuleBySlug(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT id, slug, title, preview, description, created_at, updated_at\s+FROM modules\s+WHERE slug = \$1`).
		WithArgs("alpha").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "title", "preview", "description", "created_at", "updated_at"}).
			AddRow("id-1", "alpha", "Alpha", "🧩", "", fixedNow, fixedNow))
	mock.ExpectQuery(`SELECT id, title, updated_at\s+FROM documents\s+WHERE module_id = \$1`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "updated_at"}).
			AddRow("doc-1", "Install", fixedNow))

	detail, err := s.GetModuleBySlug(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "id-1", detail.ID)
	require.Len(t, detail.Documents, 1)
	assert.Equal(t, "doc-1", detail.Documents[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModuleBySlugNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT id, slug, title, preview, description, created_at, updated_at\s+FROM modules`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetModuleBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateModule(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`INSERT INTO modules`).
		WithArgs(sqlmock.AnyArg(), "fire-detector", "Fire Detector", api.DefaultPreview, "", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	detail, err := s.CreateModule(context.Background(), api.ModuleDraft{Title: "Fire Detector"})
	require.NoError(t, err)
	assert.Equal(t, "fire-detector", detail.Slug)
	assert.Equal(t, fixedNow, detail.CreatedAt)
	assert.Empty(t, detail.Documents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateModuleRetriesOnSlugConflict(t *testing.T) {
	s, mock := newMockStorage(t)

	taken := &pq.Error{Code: uniqueViolation}
	mock.ExpectExec(`INSERT INTO modules`).
		WithArgs(sqlmock.AnyArg(), "fire-detector", "Fire Detector", api.DefaultPreview, "", fixedNow, fixedNow).
		WillReturnError(taken)
	mock.ExpectExec(`INSERT INTO modules`).
		WithArgs(sqlmock.AnyArg(), "fire-detector-2", "Fire Detector", api.DefaultPreview, "", fixedNow, fixedNow).
		WillReturnError(taken)
	mock.ExpectExec(`INSERT INTO modules`).
		WithArgs(sqlmock.AnyArg(), "fire-detector-3", "Fire Detector", api.DefaultPreview, "", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	detail, err := s.CreateModule(context.Background(), api.ModuleDraft{Title: "Fire Detector"})
	require.NoError(t, err)
	assert.Equal(t, "fire-detector-3", detail.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateModuleValidatesBeforeTouchingDB(t *testing.T) {
	s, mock := newMockStorage(t)

	_, err := s.CreateModule(context.Background(), api.ModuleDraft{Title: " "})
	assert.ErrorIs(t, err, api.ErrTitleRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateModule(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`UPDATE modules`).
		WithArgs("id-1", strPtr("New Title"), nil, nil, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, slug, title, preview, description, created_at, updated_at\s+FROM modules\s+WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "title", "preview", "description", "created_at", "updated_at"}).
			AddRow("id-1", "alpha", "New Title", "🧩", "", fixedNow, fixedNow))
	mock.ExpectQuery(`SELECT id, title, updated_at\s+FROM documents`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "updated_at"}))

	detail, err := s.UpdateModule(context.Background(), "id-1", api.ModuleUpdate{Title: strPtr(" New Title ")})
	require.NoError(t, err)
	assert.Equal(t, "New Title", detail.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateModuleNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`UPDATE modules`).
		WithArgs("missing", nil, nil, nil, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.UpdateModule(context.Background(), "missing", api.ModuleUpdate{})
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteModule(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`DELETE FROM modules WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.DeleteModule(context.Background(), "id-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteModuleNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`DELETE FROM modules WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteModule(context.Background(), "missing"), api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT id, module_id, title, content, updated_at\s+FROM documents`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentCommitsWithParentBump(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE modules SET updated_at = \$2 WHERE id = \$1`).
		WithArgs("mod-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(sqlmock.AnyArg(), "mod-1", "Install", "steps", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc, err := s.CreateDocument(context.Background(), "mod-1", api.DocumentDraft{Title: "Install", Content: "steps"})
	require.NoError(t, err)
	assert.Equal(t, "mod-1", doc.ModuleID)
	assert.Equal(t, fixedNow, doc.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentUnknownModuleRollsBack(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE modules SET updated_at = \$2 WHERE id = \$1`).
		WithArgs("missing", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.CreateDocument(context.Background(), "missing", api.DocumentDraft{Title: "Install"})
	assert.ErrorIs(t, err, api.ErrModuleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocument(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE documents`).
		WithArgs("doc-1", strPtr("Install v2"), nil, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "module_id", "title", "content", "updated_at"}).
			AddRow("doc-1", "mod-1", "Install v2", "steps", fixedNow))
	mock.ExpectExec(`UPDATE modules SET updated_at = \$2 WHERE id = \$1`).
		WithArgs("mod-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc, err := s.UpdateDocument(context.Background(), "doc-1", api.DocumentUpdate{Title: strPtr(" Install v2 ")})
	require.NoError(t, err)
	assert.Equal(t, "Install v2", doc.Title)
	assert.Equal(t, "steps", doc.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocumentNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE documents`).
		WithArgs("missing", nil, nil, fixedNow).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.UpdateDocument(context.Background(), "missing", api.DocumentUpdate{})
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocument(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM documents WHERE id = \$1 RETURNING module_id`).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"module_id"}).AddRow("mod-1"))
	mock.ExpectExec(`UPDATE modules SET updated_at = \$2 WHERE id = \$1`).
		WithArgs("mod-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, s.DeleteDocument(context.Background(), "doc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentNotFound(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM documents WHERE id = \$1 RETURNING module_id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	assert.ErrorIs(t, s.DeleteDocument(context.Background(), "missing"), api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionLifecycle(t *testing.T) {
	s, mock := newMockStorage(t)
	sess := &sessions.Session{Token: "tok-1", CreatedAt: fixedNow, ExpiresAt: fixedNow.Add(time.Hour)}

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("tok-1", sess.CreatedAt, sess.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT token, created_at, expires_at\s+FROM sessions`).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"token", "created_at", "expires_at"}).
			AddRow("tok-1", sess.CreatedAt, sess.ExpiresAt))
	mock.ExpectExec(`DELETE FROM sessions WHERE token = \$1`).
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateSession(context.Background(), sess))

	got, err := s.GetSession(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok-1", got.Token)

	require.NoError(t, s.DeleteSession(context.Background(), "tok-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionMissingIsNil(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT token, created_at, expires_at\s+FROM sessions`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	got, err := s.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredSessionsReportsCount(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := s.DeleteExpiredSessions(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUsesEmbeddedMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewWithDB(db)

	called := false
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		called = true
		return nil
	}
	t.Cleanup(func() { gooseUpContext = orig })

	require.NoError(t, s.Migrate(context.Background()))
	assert.True(t, called)
}

func TestMigrateWrapsError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewWithDB(db)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		return errors.New("migration exploded")
	}
	t.Cleanup(func() { gooseUpContext = orig })

	err = s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration exploded")
}
