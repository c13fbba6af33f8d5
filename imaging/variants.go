// Package imaging turns uploaded raw image bytes into the three derived
// variants the catalog serves: archival (the source bytes untouched), display
// (long edge capped, re-encoded as JPEG), and thumbnail (small, lower quality).
// It is a pure transform: no filesystem or document access. The caller places
// the returned bytes on durable storage and registers the resulting record.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	defaultMaxBytes = 50 << 20 // 50MB

	displayMaxEdge = 2048
	displayQuality = 85

	thumbnailMaxEdge = 400
	thumbnailQuality = 75
)

// ErrUnsupportedFormat is returned for payloads that are not a decodable
// JPEG, PNG, or GIF. File-scoped: one bad payload never aborts a batch.
var ErrUnsupportedFormat = errors.New("imaging: unsupported or corrupt image")

// ErrTooLarge is returned when the payload exceeds the configured byte ceiling.
var ErrTooLarge = errors.New("imaging: image exceeds size limit")

// Variant is one encoded rendition with its recorded dimensions.
type Variant struct {
	Bytes  []byte
	Width  int
	Height int
}

// VariantSet is the full output of one Generate call.
type VariantSet struct {
	// SourceFormat is the sniffed format name ("jpeg", "png", "gif").
	SourceFormat string
	Archival     Variant
	Display      Variant
	Thumbnail    Variant
	// Exif is nil when the source carries no parseable metadata.
	Exif *Exif
}

// Generator produces variant sets from raw uploads.
type Generator struct {
	// MaxBytes caps accepted payload size. Zero means the default ceiling.
	MaxBytes int64
}

// Generate decodes raw, validates it, and produces the three variants plus
// best-effort EXIF metadata. Metadata absence or corruption is non-fatal.
func (g *Generator) Generate(raw []byte, originalName string) (*VariantSet, error) {
	max := g.MaxBytes
	if max <= 0 {
		max = defaultMaxBytes
	}
	if int64(len(raw)) > max {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, originalName, len(raw), max)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedFormat, originalName, err)
	}

	exif := ParseExif(raw)
	if exif != nil && exif.Orientation > 1 {
		img = applyOrientation(img, exif.Orientation)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	display, err := encodeScaled(img, displayMaxEdge, displayQuality)
	if err != nil {
		return nil, err
	}
	thumbnail, err := encodeScaled(img, thumbnailMaxEdge, thumbnailQuality)
	if err != nil {
		return nil, err
	}

	return &VariantSet{
		SourceFormat: format,
		Archival:     Variant{Bytes: raw, Width: w, Height: h},
		Display:      display,
		Thumbnail:    thumbnail,
		Exif:         exif,
	}, nil
}

// Ext returns the file extension for the archival variant of format.
func Ext(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// encodeScaled caps the long edge at maxEdge (never upscaling) and encodes as
// JPEG at the given quality.
func encodeScaled(img image.Image, maxEdge, quality int) (Variant, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	long := w
	if h > long {
		long = h
	}
	if long > maxEdge {
		var nw, nh int
		if w >= h {
			nw = maxEdge
			nh = h * maxEdge / w
		} else {
			nh = maxEdge
			nw = w * maxEdge / h
		}
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = nw, nh
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Variant{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Variant{Bytes: buf.Bytes(), Width: w, Height: h}, nil
}
