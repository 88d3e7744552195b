// Package storage defines the Provider interface for object storage backends.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("storage object not found")

// Provider abstracts object storage operations.
type Provider interface {
	// Put writes size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// AccessURL returns a link a chat user can download from. filename is
	// offered to the browser as the attachment name.
	AccessURL(ctx context.Context, key, filename string) (string, error)
}

// NewKey returns files/<uuid>/<sanitized name>.
func NewKey(name string) string {
	return path.Join("files", uuid.NewString(), SanitizeName(name))
}

// SanitizeName strips path separators and control characters so a
// user-supplied name is safe as the last key segment.
func SanitizeName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case r == '/' || r == '\\' || r == '?' || r == '#' || r == '%' || r == '"':
			return '_'
		}
		return r
	}, name)
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return "file"
	}
	if len(cleaned) > 200 {
		ext := path.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = strings.ToValidUTF8(cleaned[:200-len(ext)], "") + ext
	}
	return cleaned
}
