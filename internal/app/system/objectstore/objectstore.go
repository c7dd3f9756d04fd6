// Package objectstore holds the conventions for uploaded PDFs (papers and
// guardian consent forms) kept in a waffle storage.Store.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
)

// PutPDF uploads body under key as application/pdf.
func PutPDF(ctx context.Context, store storage.Store, key string, body io.Reader) error {
	if err := store.Put(ctx, key, body, &storage.PutOptions{ContentType: "application/pdf"}); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// Remove deletes key. A missing object is not an error.
func Remove(ctx context.Context, store storage.Store, key string) error {
	if key == "" {
		return nil
	}
	if err := store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Key prefixes.
const (
	PrefixPapers  = "papers"
	PrefixConsent = "consent"
)

// NewKey builds a unique key: prefix/YYYY/MM/xxxxxxxx-filename.
func NewKey(prefix, filename string, now time.Time) string {
	now = now.UTC()
	return path.Join(prefix,
		fmt.Sprintf("%04d/%02d", now.Year(), int(now.Month())),
		uuid.New().String()[:8]+"-"+SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore, capping the length at 100 bytes while
// preserving a short extension.
func SanitizeFilename(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isAllowedFilenameChar(c) {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 || string(out) == "." || string(out) == ".." {
		return "file"
	}
	if len(out) > 100 {
		ext := filepath.Ext(string(out))
		if len(ext) > 0 && len(ext) < 10 {
			out = append(out[:100-len(ext)], ext...)
		} else {
			out = out[:100]
		}
	}
	return string(out)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
