// Package gormstore implements the Store through the GORM ORM. It keeps
// the same schema and semantics as the raw SQL backend: a unique index
// arbitrates slugs, document writes and the parent module's updated_at
// bump share one transaction, and timestamps come from the store's
// clock rather than GORM's auto-tracking.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avelichko/promo-cms/pkg/api"
	"github.com/avelichko/promo-cms/pkg/sessions"
)

const maxSlugAttempts = 100

type moduleRecord struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"not null"`
	Preview     string
	Description string
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false;index"`

	Documents []documentRecord `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
}

func (moduleRecord) TableName() string { return "modules" }

type documentRecord struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ModuleID  string `gorm:"type:uuid;not null;index"`
	Title     string `gorm:"not null"`
	Content   string
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (documentRecord) TableName() string { return "documents" }

type sessionRecord struct {
	Token     string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	ExpiresAt time.Time `gorm:"index"`
}

func (sessionRecord) TableName() string { return "sessions" }

// Config holds connection settings for the ORM backend.
type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Storage implements api.Store on top of GORM.
type Storage struct {
	db  *gorm.DB
	now func() time.Time
}

// New opens a PostgreSQL connection through GORM. TranslateError maps
// driver unique violations to gorm.ErrDuplicatedKey, which the slug
// probe loop relies on.
func New(cfg Config) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return NewWithDB(db), nil
}

// NewWithDB wraps an existing GORM handle. Tests use it with SQLite.
func NewWithDB(db *gorm.DB) *Storage {
	return &Storage{db: db, now: time.Now}
}

// Migrate creates or updates the schema.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&moduleRecord{}, &documentRecord{}, &sessionRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func toModule(r moduleRecord) api.Module {
	return api.Module{
		ID:          r.ID,
		Slug:        r.Slug,
		Title:       r.Title,
		Preview:     r.Preview,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (s *Storage) documentSummaries(ctx context.Context, moduleID string) ([]api.DocumentSummary, error) {
	var records []documentRecord
	if err := s.db.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("updated_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	out := make([]api.DocumentSummary, 0, len(records))
	for _, r := range records {
		out = append(out, api.DocumentSummary{ID: r.ID, Title: r.Title, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (s *Storage) getModule(ctx context.Context, query string, arg any) (*api.ModuleDetail, error) {
	var rec moduleRecord
	err := s.db.WithContext(ctx).Where(query, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}

	docs, err := s.documentSummaries(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &api.ModuleDetail{Module: toModule(rec), Documents: docs}, nil
}

// ListModules implements api.Store.
func (s *Storage) ListModules(ctx context.Context) ([]api.ModuleSummary, error) {
	var records []moduleRecord
	if err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}

	out := make([]api.ModuleSummary, 0, len(records))
	for _, r := range records {
		out = append(out, api.ModuleSummary{
			ID: r.ID, Slug: r.Slug, Title: r.Title, Preview: r.Preview, UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// GetModuleBySlug implements api.Store.
func (s *Storage) GetModuleBySlug(ctx context.Context, slug string) (*api.ModuleDetail, error) {
	return s.getModule(ctx, "slug = ?", slug)
}

// GetModuleByID implements api.Store.
func (s *Storage) GetModuleByID(ctx context.Context, id string) (*api.ModuleDetail, error) {
	return s.getModule(ctx, "id = ?", id)
}

// CreateModule implements api.Store. Candidate slugs are tried until an
// insert lands without tripping the unique index.
func (s *Storage) CreateModule(ctx context.Context, draft api.ModuleDraft) (*api.ModuleDetail, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	base := draft.BaseSlug()
	now := s.now().UTC()
	rec := moduleRecord{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(draft.Title),
		Preview:     draft.NormalizedPreview(),
		Description: draft.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		rec.Slug = base
		if attempt > 0 {
			rec.Slug = fmt.Sprintf("%s-%d", base, attempt+1)
		}

		err := s.db.WithContext(ctx).Create(&rec).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create module: %w", err)
		}
		return &api.ModuleDetail{Module: toModule(rec), Documents: []api.DocumentSummary{}}, nil
	}
	return nil, api.ErrSlugConflict
}

// UpdateModule implements api.Store. Absent fields keep their stored
// values; the slug is never touched.
func (s *Storage) UpdateModule(ctx context.Context, id string, upd api.ModuleUpdate) (*api.ModuleDetail, error) {
	var rec moduleRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return api.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get module: %w", err)
		}

		if upd.Title != nil {
			rec.Title = strings.TrimSpace(*upd.Title)
		}
		if upd.Preview != nil {
			rec.Preview = *upd.Preview
		}
		if upd.Description != nil {
			rec.Description = *upd.Description
		}
		rec.UpdatedAt = s.now().UTC()

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("failed to update module: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	docs, err := s.documentSummaries(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &api.ModuleDetail{Module: toModule(rec), Documents: docs}, nil
}

// DeleteModule implements api.Store. Documents are removed in the same
// transaction rather than leaning on the database cascade, so the
// behavior holds on engines where the constraint is not enforced.
func (s *Storage) DeleteModule(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&moduleRecord{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete module: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return api.ErrNotFound
		}
		if err := tx.Where("module_id = ?", id).Delete(&documentRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete documents: %w", err)
		}
		return nil
	})
}

// GetDocument implements api.Store.
func (s *Storage) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	var rec documentRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &api.Document{
		ID: rec.ID, ModuleID: rec.ModuleID, Title: rec.Title,
		Content: rec.Content, UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (s *Storage) touchModule(tx *gorm.DB, moduleID string, now time.Time) error {
	res := tx.Model(&moduleRecord{}).Where("id = ?", moduleID).Update("updated_at", now)
	if res.Error != nil {
		return fmt.Errorf("failed to touch module: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return api.ErrModuleNotFound
	}
	return nil
}

// CreateDocument implements api.Store.
func (s *Storage) CreateDocument(ctx context.Context, moduleID string, draft api.DocumentDraft) (*api.Document, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := documentRecord{
		ID:        uuid.NewString(),
		ModuleID:  moduleID,
		Title:     strings.TrimSpace(draft.Title),
		Content:   draft.Content,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.touchModule(tx, moduleID, now); err != nil {
			return err
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &api.Document{
		ID: rec.ID, ModuleID: rec.ModuleID, Title: rec.Title,
		Content: rec.Content, UpdatedAt: rec.UpdatedAt,
	}, nil
}

// UpdateDocument implements api.Store.
func (s *Storage) UpdateDocument(ctx context.Context, id string, upd api.DocumentUpdate) (*api.Document, error) {
	var rec documentRecord
	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return api.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}

		if upd.Title != nil {
			rec.Title = strings.TrimSpace(*upd.Title)
		}
		if upd.Content != nil {
			rec.Content = *upd.Content
		}
		rec.UpdatedAt = now

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		return s.touchModule(tx, rec.ModuleID, now)
	})
	if err != nil {
		return nil, err
	}
	return &api.Document{
		ID: rec.ID, ModuleID: rec.ModuleID, Title: rec.Title,
		Content: rec.Content, UpdatedAt: rec.UpdatedAt,
	}, nil
}

// DeleteDocument implements api.Store.
func (s *Storage) DeleteDocument(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec documentRecord
		err := tx.Where("id = ?", id).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return api.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}

		if err := tx.Delete(&documentRecord{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return s.touchModule(tx, rec.ModuleID, s.now().UTC())
	})
}

// CreateSession implements sessions.Store.
func (s *Storage) CreateSession(ctx context.Context, sess *sessions.Session) error {
	rec := sessionRecord{Token: sess.Token, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession implements sessions.Store.
func (s *Storage) GetSession(ctx context.Context, token string) (*sessions.Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sessions.Session{Token: rec.Token, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

// DeleteSession implements sessions.Store.
func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Delete(&sessionRecord{}, "token = ?", token).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions implements sessions.Store.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&sessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping implements api.Store.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements api.Store.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
