// Package uploads validates and persists base64 image payloads posted by
// the admin editor. The sink is independent of the content data model:
// images are written under fresh random names and served statically.
package uploads

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

// MaxDecodedSize is the hard ceiling on decoded image bytes (3 MiB).
const MaxDecodedSize = 3 * 1024 * 1024

var (
	// ErrInvalidImage marks a malformed data URL, a disallowed image
	// type, or a base64 decode failure.
	ErrInvalidImage = errors.New("invalid_image")
	// ErrFileTooLarge marks a payload whose decoded size exceeds the
	// ceiling.
	ErrFileTooLarge = errors.New("file_too_large")
)

var dataURLPattern = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,(.+)$`)

// mimeExt is the allow-list; the extension always comes from the validated
// mime type, never from anything client-supplied.
var mimeExt = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Result describes a stored image.
type Result struct {
	// Name is the generated filename, e.g. "8f14e45f-....png".
	Name string
	// Path is the serving path, e.g. "/uploads/8f14e45f-....png".
	Path string
	// Size is the decoded byte count.
	Size int64
}

// Sink writes validated images into a directory.
type Sink struct {
	dir string
}

// NewSink creates the sink, ensuring the upload directory exists.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Dir returns the directory the sink writes into.
func (s *Sink) Dir() string { return s.dir }

// Store validates dataURL, decodes it, and persists the bytes under a fresh
// random filename with the extension of the validated image type.
func (s *Sink) Store(dataURL string) (*Result, error) {
	m := dataURLPattern.FindStringSubmatch(dataURL)
	if m == nil {
		return nil, ErrInvalidImage
	}

	ext, ok := mimeExt[m[1]]
	if !ok {
		return nil, ErrInvalidImage
	}

	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, ErrInvalidImage
	}
	if len(data) > MaxDecodedSize {
		return nil, ErrFileTooLarge
	}

	name := uuid.NewString() + "." + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	return &Result{
		Name: name,
		Path: "/uploads/" + name,
		Size: int64(len(data)),
	}, nil
}
