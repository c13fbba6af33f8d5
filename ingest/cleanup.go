package ingest

import (
	"strings"

	"github.com/solvberg/photoengine/catalog"
)

// RemovePhotoFiles deletes the three variant files behind a photo record.
// Best-effort: a file already gone is not an error, and file deletion never
// blocks the metadata removal that preceded it.
func (c *Coordinator) RemovePhotoFiles(p catalog.Photo) {
	for _, url := range []string{p.URLOriginal, p.URLDisplay, p.URLThumbnail} {
		if rel, ok := strings.CutPrefix(url, "photos/"); ok {
			_ = c.Files.Remove(rel)
		}
	}
}

// RemoveAlbumFiles deletes the variant files of every photo in the album.
// Called with the record returned by DeleteAlbum, after the metadata is gone.
func (c *Coordinator) RemoveAlbumFiles(a catalog.Album) {
	for _, p := range a.Photos {
		c.RemovePhotoFiles(p)
	}
}
