package api

import "errors"

// Domain errors carry the stable machine-readable codes surfaced to
// clients. Handlers translate them to HTTP statuses; storage backends
// return them verbatim so all three behave identically.
var (
	// ErrNotFound means the referenced module or document does not exist.
	ErrNotFound = errors.New("not_found")
	// ErrModuleNotFound means a document referenced an unknown module at
	// creation time.
	ErrModuleNotFound = errors.New("module_not_found")
	// ErrTitleRequired means a title was missing or shorter than two
	// trimmed characters.
	ErrTitleRequired = errors.New("title_required")
	// ErrSlugConflict is an internal signal that a concurrent insert won
	// the race for a slug; backends retry with the next suffix and never
	// let it escape to clients.
	ErrSlugConflict = errors.New("slug_conflict")
)
