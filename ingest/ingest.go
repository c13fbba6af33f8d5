// Package ingest orchestrates batch uploads: each file runs through the
// variant generator on a bounded worker pool, successful results land on disk
// and register with the catalog, and failures become data in the batch result
// rather than errors that abort sibling files.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/solvberg/photoengine/catalog"
	"github.com/solvberg/photoengine/imaging"
	"github.com/solvberg/photoengine/storage"
)

// defaultWorkers bounds concurrent image decodes; each in-flight file holds
// the full decoded bitmap in memory.
const defaultWorkers = 4

var (
	filesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photoengine_ingest_files_total",
		Help: "Files successfully ingested and registered.",
	})
	filesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photoengine_ingest_failures_total",
		Help: "Files that failed decoding, storage, or registration.",
	})
	bytesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photoengine_ingest_stored_bytes_total",
		Help: "Variant bytes committed to storage.",
	})
)

// Stage tags a progress event.
type Stage string

const (
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Event is one per-file progress notification.
type Event struct {
	Filename string
	Stage    Stage
	Err      error
}

// Progress receives events as files move through the pipeline. It may be
// called from multiple workers concurrently and must be safe for that.
type Progress func(Event)

// File is one uploaded payload.
type File struct {
	Name string
	Data []byte
}

// FileError pairs a failed filename with its reason.
type FileError struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// Result enumerates both outcomes of a batch. Partial failure is first-class:
// callers re-submit only the failed subset.
type Result struct {
	Registered []catalog.Photo `json:"registered"`
	Errors     []FileError     `json:"errors"`
}

// Coordinator wires the generator, the variant store, and the catalog together.
type Coordinator struct {
	Albums    *catalog.Service
	Generator *imaging.Generator
	Files     *storage.Local

	// Workers caps concurrent file processing. Zero means defaultWorkers.
	Workers int

	// NewID names variant files; overridable for tests.
	NewID func() string
}

// Ingest processes the batch against albumID. It fails outright only when the
// target album is missing; an empty file list returns an empty successful
// result. Registered photos append in completion order, not submission order;
// ReorderPhotos exists to correct that when the caller needs strict ordering.
func (c *Coordinator) Ingest(ctx context.Context, albumID string, files []File, progress Progress) (*Result, error) {
	if _, err := c.Albums.GetAlbum(albumID); err != nil {
		return nil, err
	}

	res := &Result{Registered: []catalog.Photo{}, Errors: []FileError{}}
	if len(files) == 0 {
		return res, nil
	}

	workers := c.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	emit := func(ev Event) {
		if progress != nil {
			progress(ev)
		}
	}

	sem := make(chan struct{}, workers)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, f := range files {
		wg.Add(1)
		go func(f File) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			emit(Event{Filename: f.Name, Stage: StageUploading})
			photo, err := c.ingestOne(ctx, albumID, f, emit)

			mu.Lock()
			if err != nil {
				res.Errors = append(res.Errors, FileError{Filename: f.Name, Reason: err.Error()})
			} else {
				res.Registered = append(res.Registered, photo)
			}
			mu.Unlock()

			if err != nil {
				emit(Event{Filename: f.Name, Stage: StageError, Err: err})
			} else {
				emit(Event{Filename: f.Name, Stage: StageComplete})
			}
		}(f)
	}
	wg.Wait()
	return res, nil
}

// ingestOne runs a single file through generate, persist, register. All image
// work and file I/O happens here, outside any document lock.
func (c *Coordinator) ingestOne(ctx context.Context, albumID string, f File, emit Progress) (catalog.Photo, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Photo{}, err
	}
	emit(Event{Filename: f.Name, Stage: StageProcessing})

	vs, err := c.Generator.Generate(f.Data, f.Name)
	if err != nil {
		filesFailed.Inc()
		return catalog.Photo{}, err
	}

	// A client gone mid-upload aborts this file before anything persists.
	if err := ctx.Err(); err != nil {
		filesFailed.Inc()
		return catalog.Photo{}, err
	}

	newID := c.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	id := newID()

	type variantFile struct {
		category string
		name     string
		data     []byte
	}
	variants := []variantFile{
		{storage.CategoryArchival, id + imaging.Ext(vs.SourceFormat), vs.Archival.Bytes},
		{storage.CategoryDisplay, id + ".jpg", vs.Display.Bytes},
		{storage.CategoryThumbnail, id + ".jpg", vs.Thumbnail.Bytes},
	}
	written := make([]string, 0, len(variants))
	cleanup := func() {
		for _, rel := range written {
			_ = c.Files.Remove(rel)
		}
	}
	for _, v := range variants {
		rel, err := c.Files.WriteVariant(v.category, v.name, v.data)
		if err != nil {
			cleanup()
			filesFailed.Inc()
			return catalog.Photo{}, fmt.Errorf("persist %s variant: %w", v.category, err)
		}
		written = append(written, rel)
	}

	photo := catalog.Photo{
		ID:                id,
		FilenameOriginal:  f.Name,
		URLOriginal:       "photos/" + written[0],
		URLDisplay:        "photos/" + written[1],
		URLThumbnail:      "photos/" + written[2],
		Width:             vs.Archival.Width,
		Height:            vs.Archival.Height,
		FileSizeOriginal:  int64(len(vs.Archival.Bytes)),
		FileSizeDisplay:   int64(len(vs.Display.Bytes)),
		FileSizeThumbnail: int64(len(vs.Thumbnail.Bytes)),
		Exif:              exifRecord(vs.Exif),
	}

	registered, err := c.Albums.AddPhoto(albumID, photo)
	if err != nil {
		// Registration failed: take the orphaned variant files with us.
		cleanup()
		filesFailed.Inc()
		return catalog.Photo{}, err
	}

	filesIngested.Inc()
	bytesStored.Add(float64(photo.FileSizeOriginal + photo.FileSizeDisplay + photo.FileSizeThumbnail))
	return registered, nil
}

// exifRecord maps parsed metadata onto the wire shape stored with the photo.
func exifRecord(ex *imaging.Exif) *catalog.Exif {
	if ex == nil {
		return nil
	}
	return &catalog.Exif{
		Make:         ex.Make,
		Model:        ex.Model,
		Lens:         ex.Lens,
		ExposureTime: ex.ExposureTime,
		FNumber:      ex.FNumber,
		ISO:          ex.ISO,
		FocalLength:  ex.FocalLength,
		CapturedAt:   ex.CapturedAt,
	}
}
