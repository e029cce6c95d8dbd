// Package attachments validates uploaded images and stores them in a local
// directory or an S3-compatible bucket.
package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/starford/hashnote/internal/apperr"
)

// MaxSize bounds a single attachment.
const MaxSize = 10 << 20 // 10 MB

// ErrUnsupported is returned for content that is not an accepted image type.
var ErrUnsupported = errors.New("attachments: unsupported file type")

var (
	allowedExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true,
	}

	mimeToExt = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	}

	extToMime = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".webp": "image/webp",
		".svg":  "image/svg+xml",
	}
)

// Backend persists attachment bytes under a key and reports the public URL.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Asset describes a stored attachment.
type Asset struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int    `json:"size"`
	Markdown string `json:"markdown"`
}

// Store validates and names attachments before handing them to a Backend.
type Store struct {
	backend Backend
}

// NewStore wraps backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Save stores data under a unique name derived from filename. When filename
// has no usable extension, one is inferred from the content.
func (s *Store) Save(ctx context.Context, filename string, data []byte) (Asset, error) {
	if len(data) == 0 {
		return Asset{}, fmt.Errorf("attachments: empty file: %w", apperr.ErrInvalid)
	}
	if len(data) > MaxSize {
		return Asset{}, fmt.Errorf("attachments: file too large: %d bytes (max %d): %w", len(data), MaxSize, apperr.ErrInvalid)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		ext = detectExt(data)
	}
	if !allowedExtensions[ext] {
		return Asset{}, fmt.Errorf("%w: %q", ErrUnsupported, filename)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return Asset{}, err
	}

	name := UniqueName(filename, ext)
	url, err := s.backend.Put(ctx, name, data, extToMime[ext])
	if err != nil {
		return Asset{}, fmt.Errorf("attachments: put %s: %w", name, err)
	}
	return Asset{
		Name:     name,
		URL:      url,
		Size:     len(data),
		Markdown: fmt.Sprintf("![%s](%s)", name, url),
	}, nil
}

// UniqueName builds a URL-safe object name: the slugged base name of
// filename, a short random suffix and ext.
func UniqueName(filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	s := slug.Make(base)
	if s == "" || s == "." {
		s = "image"
	}
	if len(s) > 48 {
		s = strings.Trim(s[:48], "-")
	}
	return s + "-" + uuid.NewString()[:8] + ext
}

func detectExt(data []byte) string {
	detected := http.DetectContentType(data)
	return mimeToExt[strings.Split(detected, ";")[0]]
}

// validateMagicBytes verifies file content matches the declared extension.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("%w: content is not SVG", ErrUnsupported)
		}
		return nil
	}

	got := detectExt(data)
	switch ext {
	case ".jpg", ".jpeg":
		if got != ".jpg" {
			return fmt.Errorf("%w: content does not match %s", ErrUnsupported, ext)
		}
	default:
		if got != ext {
			return fmt.Errorf("%w: content does not match %s", ErrUnsupported, ext)
		}
	}
	return nil
}
