package api

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avelichko/promo-cms/pkg/sessions"
	"github.com/avelichko/promo-cms/pkg/slug"
)

// DefaultPreview is the glyph shown for modules created without one.
const DefaultPreview = "🧩"

// Module is a documentation bundle shown in the public catalog.
type Module struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Preview     string    `json:"preview"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Document is a titled content page belonging to exactly one module.
type Document struct {
	ID        string    `json:"id"`
	ModuleID  string    `json:"moduleId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ModuleSummary is the catalog listing row.
type ModuleSummary struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentSummary is a document reference embedded in a module view.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ModuleDetail is a module expanded with its document summaries, ordered by
// UpdatedAt descending.
type ModuleDetail struct {
	Module
	Documents []DocumentSummary
}

// ModuleDraft carries the fields accepted when creating a module. Slug is
// optional; when empty the base candidate is derived from the title.
type ModuleDraft struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Preview     string `json:"preview"`
	Description string `json:"description"`
}

// Validate checks the draft against the creation constraints.
func (d ModuleDraft) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(d.Title)) < 2 {
		return ErrTitleRequired
	}
	return nil
}

// BaseSlug resolves the base slug candidate: an explicit slug wins, then the
// transliterated title, then a random fallback. Uniqueness against existing
// slugs is resolved by the storage backend.
func (d ModuleDraft) BaseSlug() string {
	if s := strings.TrimSpace(d.Slug); s != "" {
		return s
	}
	if s := slug.Make(d.Title); s != "" {
		return s
	}
	return slug.Random()
}

// NormalizedPreview returns the preview glyph, defaulted when absent.
func (d ModuleDraft) NormalizedPreview() string {
	if d.Preview == "" {
		return DefaultPreview
	}
	return d.Preview
}

// ModuleUpdate is a partial update: nil fields leave the stored value
// unchanged. There is no slug field; updates never rewrite the slug.
type ModuleUpdate struct {
	Title       *string `json:"title"`
	Preview     *string `json:"preview"`
	Description *string `json:"description"`
}

// DocumentDraft carries the fields accepted when creating a document.
type DocumentDraft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate checks the draft against the creation constraints.
func (d DocumentDraft) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(d.Title)) < 2 {
		return ErrTitleRequired
	}
	return nil
}

// DocumentUpdate is a partial update with the same semantics as ModuleUpdate.
type DocumentUpdate struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Store is the persistence contract shared by every backend. All three
// implementations (single JSON file, raw Postgres, GORM) must behave
// identically: same ordering, same errors, same atomicity.
//
// Atomicity: every operation touching both a module and its documents
// (document create/update/delete, module delete) commits as one unit, and a
// document mutation bumps the parent module's UpdatedAt inside that unit.
// Slug uniqueness is resolved at creation with the probe-then-suffix loop;
// backends with a real unique index must detect conflicting inserts and
// retry with the next suffix.
type Store interface {
	sessions.Store

	// ListModules returns all modules ordered by UpdatedAt descending.
	ListModules(ctx context.Context) ([]ModuleSummary, error)
	// GetModuleBySlug returns the module with expanded documents, or
	// ErrNotFound.
	GetModuleBySlug(ctx context.Context, slugValue string) (*ModuleDetail, error)
	// GetModuleByID returns the module with expanded documents, or
	// ErrNotFound.
	GetModuleByID(ctx context.Context, id string) (*ModuleDetail, error)
	// CreateModule validates the draft, resolves a unique slug, assigns
	// id and timestamps, and persists the module.
	CreateModule(ctx context.Context, draft ModuleDraft) (*ModuleDetail, error)
	// UpdateModule applies present fields, bumps UpdatedAt, and never
	// touches the slug. Returns ErrNotFound for an unknown id.
	UpdateModule(ctx context.Context, id string, upd ModuleUpdate) (*ModuleDetail, error)
	// DeleteModule removes the module and all of its documents
	// atomically. Returns ErrNotFound for an unknown id.
	DeleteModule(ctx context.Context, id string) error

	// GetDocument returns a document or ErrNotFound.
	GetDocument(ctx context.Context, id string) (*Document, error)
	// CreateDocument validates the draft and persists the document,
	// bumping the parent module's UpdatedAt in the same unit. Returns
	// ErrModuleNotFound for an unknown module id.
	CreateDocument(ctx context.Context, moduleID string, draft DocumentDraft) (*Document, error)
	// UpdateDocument applies present fields and bumps both the document
	// and the parent module's UpdatedAt atomically.
	UpdateDocument(ctx context.Context, id string, upd DocumentUpdate) (*Document, error)
	// DeleteDocument removes the document and bumps the parent module's
	// UpdatedAt atomically.
	DeleteDocument(ctx context.Context, id string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
