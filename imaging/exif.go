package imaging

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"
)

// Exif is the capture metadata extracted from a JPEG APP1 segment.
// Every field is optional; an empty struct is never returned (nil instead).
type Exif struct {
	Make         string
	Model        string
	Lens         string
	ExposureTime string
	FNumber      float64
	ISO          int
	FocalLength  float64
	CapturedAt   string
	Orientation  int
}

// IFD0 and EXIF sub-IFD tags.
const (
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagOrientation      = 0x0112
	tagDateTime         = 0x0132
	tagExifIFD          = 0x8769
	tagExposureTime     = 0x829A
	tagFNumber          = 0x829D
	tagISO              = 0x8827
	tagDateTimeOriginal = 0x9003
	tagFocalLength      = 0x920A
	tagLensModel        = 0xA434
)

// TIFF field types used here.
const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// ParseExif extracts metadata from a JPEG payload. It returns nil for non-JPEG
// input, payloads without an APP1 Exif segment, and anything that fails to
// parse: metadata extraction is strictly best-effort.
func ParseExif(b []byte) *Exif {
	tiff := findExifTIFF(b)
	if tiff == nil {
		return nil
	}
	return parseTIFF(tiff)
}

// findExifTIFF walks the JPEG segment stream looking for an APP1 segment with
// the Exif header and returns the embedded TIFF blob.
func findExifTIFF(b []byte) []byte {
	if len(b) < 4 || b[0] != 0xFF || b[1] != 0xD8 {
		return nil
	}
	i := 2
	for i+4 < len(b) {
		if b[i] != 0xFF {
			return nil
		}
		marker := b[i+1]
		i += 2
		if marker == 0xD9 || marker == 0xDA {
			break
		}
		if i+2 > len(b) {
			break
		}
		segLen := int(b[i])<<8 | int(b[i+1])
		i += 2
		if segLen < 2 || i+segLen-2 > len(b) {
			break
		}
		if marker == 0xE1 {
			seg := b[i : i+segLen-2]
			if len(seg) >= 6 && string(seg[:6]) == "Exif\x00\x00" {
				return seg[6:]
			}
		}
		i += segLen - 2
	}
	return nil
}

// tiffBlob wraps the raw TIFF bytes with the byte order declared in its header.
type tiffBlob struct {
	data []byte
	bo   binary.ByteOrder
}

func (t tiffBlob) u16(off int) (uint16, bool) {
	if off < 0 || off+2 > len(t.data) {
		return 0, false
	}
	return t.bo.Uint16(t.data[off : off+2]), true
}

func (t tiffBlob) u32(off int) (uint32, bool) {
	if off < 0 || off+4 > len(t.data) {
		return 0, false
	}
	return t.bo.Uint32(t.data[off : off+4]), true
}

// ascii reads the string value of the entry at off. Values of four bytes or
// fewer are stored inline; longer ones live at the value offset.
func (t tiffBlob) ascii(off int) string {
	count, ok := t.u32(off + 4)
	if !ok || count == 0 {
		return ""
	}
	start := off + 8
	if count > 4 {
		v, ok := t.u32(off + 8)
		if !ok {
			return ""
		}
		start = int(v)
	}
	end := start + int(count)
	if start < 0 || end > len(t.data) {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(string(t.data[start:end])), "\x00")
}

// rational reads the numerator/denominator pair the entry at off points to.
func (t tiffBlob) rational(off int) (num, den uint32, ok bool) {
	v, ok := t.u32(off + 8)
	if !ok {
		return 0, 0, false
	}
	num, ok = t.u32(int(v))
	if !ok {
		return 0, 0, false
	}
	den, ok = t.u32(int(v) + 4)
	return num, den, ok
}

// short reads an inline 16-bit value.
func (t tiffBlob) short(off int) (uint16, bool) {
	return t.u16(off + 8)
}

func parseTIFF(data []byte) *Exif {
	if len(data) < 8 {
		return nil
	}
	t := tiffBlob{data: data}
	switch {
	case data[0] == 'I' && data[1] == 'I':
		t.bo = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		t.bo = binary.BigEndian
	default:
		return nil
	}
	if magic, ok := t.u16(2); !ok || magic != 42 {
		return nil
	}
	ifd0, ok := t.u32(4)
	if !ok {
		return nil
	}

	var ex Exif
	var dateTime string
	exifIFD := 0

	t.walkIFD(int(ifd0), func(tag, typ uint16, entryOff int) {
		switch tag {
		case tagMake:
			ex.Make = t.ascii(entryOff)
		case tagModel:
			ex.Model = t.ascii(entryOff)
		case tagOrientation:
			if v, ok := t.short(entryOff); ok {
				ex.Orientation = int(v)
			}
		case tagDateTime:
			dateTime = t.ascii(entryOff)
		case tagExifIFD:
			if v, ok := t.u32(entryOff + 8); ok {
				exifIFD = int(v)
			}
		}
	})

	var dateTimeOriginal string
	if exifIFD > 0 {
		t.walkIFD(exifIFD, func(tag, typ uint16, entryOff int) {
			switch tag {
			case tagExposureTime:
				if num, den, ok := t.rational(entryOff); ok && den != 0 {
					ex.ExposureTime = formatExposure(num, den)
				}
			case tagFNumber:
				if num, den, ok := t.rational(entryOff); ok && den != 0 {
					ex.FNumber = float64(num) / float64(den)
				}
			case tagISO:
				if typ == typeShort {
					if v, ok := t.short(entryOff); ok {
						ex.ISO = int(v)
					}
				} else if typ == typeLong {
					if v, ok := t.u32(entryOff + 8); ok {
						ex.ISO = int(v)
					}
				}
			case tagDateTimeOriginal:
				dateTimeOriginal = t.ascii(entryOff)
			case tagFocalLength:
				if num, den, ok := t.rational(entryOff); ok && den != 0 {
					ex.FocalLength = float64(num) / float64(den)
				}
			case tagLensModel:
				ex.Lens = t.ascii(entryOff)
			}
		})
	}

	if dateTimeOriginal != "" {
		ex.CapturedAt = formatExifTime(dateTimeOriginal)
	} else if dateTime != "" {
		ex.CapturedAt = formatExifTime(dateTime)
	}

	if ex == (Exif{}) {
		return nil
	}
	return &ex
}

// walkIFD visits each 12-byte directory entry of the IFD at off.
func (t tiffBlob) walkIFD(off int, visit func(tag, typ uint16, entryOff int)) {
	count, ok := t.u16(off)
	if !ok {
		return
	}
	entry := off + 2
	for i := 0; i < int(count); i++ {
		if entry+12 > len(t.data) {
			return
		}
		tag, _ := t.u16(entry)
		typ, _ := t.u16(entry + 2)
		visit(tag, typ, entry)
		entry += 12
	}
}

// formatExposure renders a shutter speed as a reduced fraction ("1/250", "2").
func formatExposure(num, den uint32) string {
	if num == 0 || den == 0 {
		return ""
	}
	g := gcd(num, den)
	num /= g
	den /= g
	if den == 1 {
		return strconv.FormatUint(uint64(num), 10)
	}
	return strconv.FormatUint(uint64(num), 10) + "/" + strconv.FormatUint(uint64(den), 10)
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// formatExifTime converts the EXIF "2006:01:02 15:04:05" layout to RFC3339,
// falling back to the raw string when it does not parse.
func formatExifTime(s string) string {
	ts, err := time.Parse("2006:01:02 15:04:05", s)
	if err != nil {
		return s
	}
	return ts.UTC().Format(time.RFC3339)
}
