// Package docstore persists whole JSON documents as single files with atomic
// commit semantics. Each named document gets its own lock, so mutations against
// one document are serialized while unrelated documents stay independent. Reads
// never take the lock and may observe a snapshot slightly older or newer than an
// in-flight mutation.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when a document file does not exist and the document
// was opened without a default.
var ErrNotFound = errors.New("docstore: document not found")

// DecodeError reports a document whose on-disk bytes are not valid JSON.
// The file is never auto-repaired; the error surfaces to the caller as-is.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("docstore: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// WriteError reports a failed commit (disk full, permissions, rename failure).
// The document on disk is left at its last successfully committed state.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("docstore: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Document is a handle to one named JSON document on disk.
//
// Commit protocol: the updated document is serialized to a temp file in the
// same directory, the pre-mutation bytes are copied to a .bak sibling, and the
// temp file is renamed over the target. The .bak file is kept for manual
// recovery and is never restored automatically.
type Document[T any] struct {
	path string
	init func() T

	mu sync.Mutex
}

// Open prepares a handle for the document stored at dir/<name>.json, creating
// dir if needed. If init is non-nil it supplies the starting value when the
// file does not exist yet; with a nil init, operations on an absent file
// return ErrNotFound.
func Open[T any](dir, name string, init func() T) (*Document[T], error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create document dir %q: %w", dir, err)
	}
	return &Document[T]{
		path: filepath.Join(dir, name+".json"),
		init: init,
	}, nil
}

// Path returns the on-disk location of the document file.
func (d *Document[T]) Path() string { return d.path }

// Load reads and decodes the current document without taking the write lock.
func (d *Document[T]) Load() (T, error) {
	var doc T
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		if d.init == nil {
			return doc, ErrNotFound
		}
		return d.init(), nil
	}
	if err != nil {
		return doc, fmt.Errorf("docstore: read %s: %w", d.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, &DecodeError{Path: d.path, Err: err}
	}
	return doc, nil
}

// Mutate runs fn against the current document under the document lock and
// commits the result atomically. If fn returns an error nothing is written and
// the stored document is untouched. fn runs purely in memory and must not do
// expensive work: the lock is held for the full load-transform-commit cycle.
func (d *Document[T]) Mutate(fn func(*T) error) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var doc T
	prev, err := os.ReadFile(d.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if d.init == nil {
			return doc, ErrNotFound
		}
		doc = d.init()
		prev = nil
	case err != nil:
		return doc, fmt.Errorf("docstore: read %s: %w", d.path, err)
	default:
		if err := json.Unmarshal(prev, &doc); err != nil {
			return doc, &DecodeError{Path: d.path, Err: err}
		}
	}

	if err := fn(&doc); err != nil {
		var zero T
		return zero, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		var zero T
		return zero, fmt.Errorf("docstore: encode %s: %w", d.path, err)
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		os.Remove(tmp)
		var zero T
		return zero, &WriteError{Path: d.path, Err: err}
	}

	// Back up the last committed bytes before replacing them.
	if prev != nil {
		if err := os.WriteFile(d.path+".bak", prev, 0o640); err != nil {
			os.Remove(tmp)
			var zero T
			return zero, &WriteError{Path: d.path, Err: err}
		}
	}

	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		var zero T
		return zero, &WriteError{Path: d.path, Err: err}
	}
	return doc, nil
}
