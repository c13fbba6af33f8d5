// Package storage keeps the variant files on the local filesystem under three
// sibling category directories (archival, display, thumbnail) and reports
// on-disk usage against a configured threshold.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Variant storage categories, also the directory names under the root.
const (
	CategoryArchival  = "archival"
	CategoryDisplay   = "display"
	CategoryThumbnail = "thumbnail"
)

// Categories lists every variant directory in a stable order.
var Categories = []string{CategoryArchival, CategoryDisplay, CategoryThumbnail}

// Local is the variant file store rooted at a single directory.
//
// Writes are atomic: temp file in the target directory, then rename. Paths
// handed in by callers are validated to stay under the root.
type Local struct {
	root string
}

// NewLocal creates the root and the three category directories if needed.
func NewLocal(root string) (*Local, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	for _, cat := range Categories {
		if err := os.MkdirAll(filepath.Join(absRoot, cat), 0o750); err != nil {
			return nil, fmt.Errorf("create variant dir %q: %w", cat, err)
		}
	}
	return &Local{root: absRoot}, nil
}

// Root returns the absolute storage root. The HTTP layer serves it statically.
func (l *Local) Root() string { return l.root }

// abs resolves a relative variant path and rejects anything escaping the root.
func (l *Local) abs(rel string) (string, error) {
	joined := filepath.Join(l.root, filepath.Clean(filepath.FromSlash(rel)))
	r, err := filepath.Rel(l.root, joined)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", rel)
	}
	return joined, nil
}

// WriteVariant stores data as <category>/<name> atomically and returns the
// relative path recorded on the photo record.
func (l *Local) WriteVariant(category, name string, data []byte) (string, error) {
	rel := category + "/" + name
	dest, err := l.abs(rel)
	if err != nil {
		return "", err
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write variant %q: %w", rel, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("commit variant %q: %w", rel, err)
	}
	return rel, nil
}

// Open opens a stored variant for reading. Caller closes the ReadCloser.
func (l *Local) Open(rel string) (io.ReadCloser, int64, error) {
	abs, err := l.abs(rel)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Remove deletes a stored variant. Removing an absent file succeeds silently;
// photo file cleanup is best-effort and never blocks metadata deletion.
func (l *Local) Remove(rel string) error {
	abs, err := l.abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
