// Package storage implements the file-backed Store: the whole catalog
// (modules, documents, sessions) lives in one JSON document that is read,
// mutated in memory, and written back via temp-file-then-rename on every
// mutation. An in-process mutex serializes writers, so concurrent requests
// against the same store never observe partial writes.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelichko/promo-cms/pkg/api"
	"github.com/avelichko/promo-cms/pkg/sessions"
)

// fileData is the on-disk layout of the store.
type fileData struct {
	Modules   []api.Module       `json:"modules"`
	Documents []api.Document     `json:"documents"`
	Sessions  []sessions.Session `json:"sessions"`
}

// FileStore implements api.Store over a single JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithClock injects a clock, used by tests to control timestamps.
func WithClock(now func() time.Time) FileStoreOption {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore creates a file store at path, creating the parent directory
// when needed. A missing file means an empty store.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &FileStore{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	// Fail fast on an unreadable or corrupt data file.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() (*fileData, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &fileData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return &data, nil
}

// save writes the whole store to a temp file in the same directory, then
// renames it over the data file. The rename is atomic at the filesystem
// level, so a concurrent reader sees either the old or the new document.
func (s *FileStore) save(data *fileData) error {
	raw, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cms-data-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

// view runs fn against a read-only snapshot of the store.
func (s *FileStore) view(ctx context.Context, fn func(*fileData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	return fn(data)
}

// update runs fn against the store and persists the result as one unit.
// Returning an error from fn aborts the write entirely.
func (s *FileStore) update(ctx context.Context, fn func(*fileData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.save(data)
}

func documentSummaries(data *fileData, moduleID string) []api.DocumentSummary {
	out := []api.DocumentSummary{}
	for _, d := range data.Documents {
		if d.ModuleID == moduleID {
			out = append(out, api.DocumentSummary{ID: d.ID, Title: d.Title, UpdatedAt: d.UpdatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func moduleDetail(data *fileData, m api.Module) *api.ModuleDetail {
	return &api.ModuleDetail{Module: m, Documents: documentSummaries(data, m.ID)}
}

func findModule(data *fileData, match func(api.Module) bool) int {
	for i, m := range data.Modules {
		if match(m) {
			return i
		}
	}
	return -1
}

func findDocument(data *fileData, id string) int {
	for i, d := range data.Documents {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// ListModules implements api.Store.
func (s *FileStore) ListModules(ctx context.Context) ([]api.ModuleSummary, error) {
	var out []api.ModuleSummary
	err := s.view(ctx, func(data *fileData) error {
		out = make([]api.ModuleSummary, 0, len(data.Modules))
		for _, m := range data.Modules {
			out = append(out, api.ModuleSummary{
				ID: m.ID, Slug: m.Slug, Title: m.Title, Preview: m.Preview, UpdatedAt: m.UpdatedAt,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
		return nil
	})
	return out, err
}

// GetModuleBySlug implements api.Store.
func (s *FileStore) GetModuleBySlug(ctx context.Context, slugValue string) (*api.ModuleDetail, error) {
	var out *api.ModuleDetail
	err := s.view(ctx, func(data *fileData) error {
		i := findModule(data, func(m api.Module) bool { return m.Slug == slugValue })
		if i < 0 {
			return api.ErrNotFound
		}
		out = moduleDetail(data, data.Modules[i])
		return nil
	})
	return out, err
}

// GetModuleByID implements api.Store.
func (s *FileStore) GetModuleByID(ctx context.Context, id string) (*api.ModuleDetail, error) {
	var out *api.ModuleDetail
	err := s.view(ctx, func(data *fileData) error {
		i := findModule(data, func(m api.Module) bool { return m.ID == id })
		if i < 0 {
			return api.ErrNotFound
		}
		out = moduleDetail(data, data.Modules[i])
		return nil
	})
	return out, err
}

// CreateModule implements api.Store. The slug probe loop runs under the
// store lock, so two concurrent creates cannot claim the same slug.
func (s *FileStore) CreateModule(ctx context.Context, draft api.ModuleDraft) (*api.ModuleDetail, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	var out *api.ModuleDetail
	err := s.update(ctx, func(data *fileData) error {
		taken := make(map[string]bool, len(data.Modules))
		for _, m := range data.Modules {
			taken[m.Slug] = true
		}

		base := draft.BaseSlug()
		final := base
		for i := 2; taken[final]; i++ {
			final = fmt.Sprintf("%s-%d", base, i)
		}

		now := s.now().UTC()
		module := api.Module{
			ID:          uuid.NewString(),
			Slug:        final,
			Title:       trimmedTitle(draft.Title),
			Preview:     draft.NormalizedPreview(),
			Description: draft.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		data.Modules = append(data.Modules, module)
		out = &api.ModuleDetail{Module: module, Documents: []api.DocumentSummary{}}
		return nil
	})
	return out, err
}

// UpdateModule implements api.Store. Absent fields keep their stored
// values; the slug is never rewritten.
func (s *FileStore) UpdateModule(ctx context.Context, id string, upd api.ModuleUpdate) (*api.ModuleDetail, error) {
	var out *api.ModuleDetail
	err := s.update(ctx, func(data *fileData) error {
		i := findModule(data, func(m api.Module) bool { return m.ID == id })
		if i < 0 {
			return api.ErrNotFound
		}

		m := &data.Modules[i]
		if upd.Title != nil {
			m.Title = trimmedTitle(*upd.Title)
		}
		if upd.Preview != nil {
			m.Preview = *upd.Preview
		}
		if upd.Description != nil {
			m.Description = *upd.Description
		}
		m.UpdatedAt = s.now().UTC()
		out = moduleDetail(data, *m)
		return nil
	})
	return out, err
}

// DeleteModule implements api.Store: the module and every document
// referencing it disappear in the same write.
func (s *FileStore) DeleteModule(ctx context.Context, id string) error {
	return s.update(ctx, func(data *fileData) error {
		i := findModule(data, func(m api.Module) bool { return m.ID == id })
		if i < 0 {
			return api.ErrNotFound
		}
		data.Modules = append(data.Modules[:i], data.Modules[i+1:]...)

		kept := data.Documents[:0]
		for _, d := range data.Documents {
			if d.ModuleID != id {
				kept = append(kept, d)
			}
		}
		data.Documents = kept
		return nil
	})
}

// GetDocument implements api.Store.
func (s *FileStore) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	var out *api.Document
	err := s.view(ctx, func(data *fileData) error {
		i := findDocument(data, id)
		if i < 0 {
			return api.ErrNotFound
		}
		doc := data.Documents[i]
		out = &doc
		return nil
	})
	return out, err
}

// CreateDocument implements api.Store: the insert and the parent module's
// UpdatedAt bump land in the same write.
func (s *FileStore) CreateDocument(ctx context.Context, moduleID string, draft api.DocumentDraft) (*api.Document, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	var out *api.Document
	err := s.update(ctx, func(data *fileData) error {
		i := findModule(data, func(m api.Module) bool { return m.ID == moduleID })
		if i < 0 {
			return api.ErrModuleNotFound
		}

		now := s.now().UTC()
		doc := api.Document{
			ID:        uuid.NewString(),
			ModuleID:  moduleID,
			Title:     trimmedTitle(draft.Title),
			Content:   draft.Content,
			UpdatedAt: now,
		}
		data.Documents = append(data.Documents, doc)
		data.Modules[i].UpdatedAt = now
		out = &doc
		return nil
	})
	return out, err
}

// UpdateDocument implements api.Store.
func (s *FileStore) UpdateDocument(ctx context.Context, id string, upd api.DocumentUpdate) (*api.Document, error) {
	var out *api.Document
	err := s.update(ctx, func(data *fileData) error {
		i := findDocument(data, id)
		if i < 0 {
			return api.ErrNotFound
		}

		d := &data.Documents[i]
		if upd.Title != nil {
			d.Title = trimmedTitle(*upd.Title)
		}
		if upd.Content != nil {
			d.Content = *upd.Content
		}
		now := s.now().UTC()
		d.UpdatedAt = now

		if j := findModule(data, func(m api.Module) bool { return m.ID == d.ModuleID }); j >= 0 {
			data.Modules[j].UpdatedAt = now
		}
		doc := *d
		out = &doc
		return nil
	})
	return out, err
}

// DeleteDocument implements api.Store.
func (s *FileStore) DeleteDocument(ctx context.Context, id string) error {
	return s.update(ctx, func(data *fileData) error {
		i := findDocument(data, id)
		if i < 0 {
			return api.ErrNotFound
		}
		moduleID := data.Documents[i].ModuleID
		data.Documents = append(data.Documents[:i], data.Documents[i+1:]...)

		if j := findModule(data, func(m api.Module) bool { return m.ID == moduleID }); j >= 0 {
			data.Modules[j].UpdatedAt = s.now().UTC()
		}
		return nil
	})
}

// CreateSession implements sessions.Store.
func (s *FileStore) CreateSession(ctx context.Context, sess *sessions.Session) error {
	return s.update(ctx, func(data *fileData) error {
		data.Sessions = append(data.Sessions, *sess)
		return nil
	})
}

// GetSession implements sessions.Store.
func (s *FileStore) GetSession(ctx context.Context, token string) (*sessions.Session, error) {
	var out *sessions.Session
	err := s.view(ctx, func(data *fileData) error {
		for _, sess := range data.Sessions {
			if sess.Token == token {
				found := sess
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

// DeleteSession implements sessions.Store.
func (s *FileStore) DeleteSession(ctx context.Context, token string) error {
	return s.update(ctx, func(data *fileData) error {
		kept := data.Sessions[:0]
		for _, sess := range data.Sessions {
			if sess.Token != token {
				kept = append(kept, sess)
			}
		}
		data.Sessions = kept
		return nil
	})
}

// DeleteExpiredSessions implements sessions.Store.
func (s *FileStore) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.update(ctx, func(data *fileData) error {
		kept := data.Sessions[:0]
		for _, sess := range data.Sessions {
			if sess.ExpiresAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, sess)
		}
		data.Sessions = kept
		return nil
	})
	return removed, err
}

// Ping implements api.Store: the store is healthy when the data file is
// readable and parseable.
func (s *FileStore) Ping(ctx context.Context) error {
	return s.view(ctx, func(*fileData) error { return nil })
}

// Close implements api.Store.
func (s *FileStore) Close() error { return nil }

func trimmedTitle(title string) string {
	return strings.TrimSpace(title)
}
