package catalog

// Album visibility values. These are part of the wire contract.
const (
	VisibilityPublic            = "public"
	VisibilityUnlisted          = "unlisted"
	VisibilityPasswordProtected = "password_protected"
)

// Collection is the album-collection document: a single JSON file holding
// every album. Field names are the stable wire contract consumed by the
// rendering UI and must stay backward-compatible (additive-only).
type Collection struct {
	Version     int     `json:"version"`
	LastUpdated string  `json:"last_updated"`
	Albums      []Album `json:"albums"`
}

// Album is one catalog entry with its ordered photos embedded. The album is
// the unit of atomic mutation; photos are owned exclusively by their album.
type Album struct {
	ID             string  `json:"id"`
	Slug           string  `json:"slug"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle,omitempty"`
	Description    string  `json:"description,omitempty"`
	Visibility     string  `json:"visibility"`
	PasswordHash   string  `json:"password_hash,omitempty"`
	CoverPhotoID   string  `json:"cover_photo_id,omitempty"`
	AllowDownloads bool    `json:"allow_downloads"`
	Order          int     `json:"order"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	Photos         []Photo `json:"photos"`
}

// Photo is one registered image with its three variant locations. A Photo is
// created only as the terminal step of a successful ingestion.
type Photo struct {
	ID                string `json:"id"`
	FilenameOriginal  string `json:"filename_original"`
	URLOriginal       string `json:"url_original"`
	URLDisplay        string `json:"url_display"`
	URLThumbnail      string `json:"url_thumbnail"`
	Caption           string `json:"caption,omitempty"`
	AltText           string `json:"alt_text,omitempty"`
	Order             int    `json:"order"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	FileSizeOriginal  int64  `json:"file_size_original"`
	FileSizeDisplay   int64  `json:"file_size_display"`
	FileSizeThumbnail int64  `json:"file_size_thumbnail"`
	Exif              *Exif  `json:"exif,omitempty"`
	UploadedAt        string `json:"uploaded_at"`
}

// Exif carries best-effort capture metadata. Every field is optional.
type Exif struct {
	Make         string  `json:"make,omitempty"`
	Model        string  `json:"model,omitempty"`
	Lens         string  `json:"lens,omitempty"`
	ExposureTime string  `json:"exposure_time,omitempty"`
	FNumber      float64 `json:"f_number,omitempty"`
	ISO          int     `json:"iso,omitempty"`
	FocalLength  float64 `json:"focal_length,omitempty"`
	CapturedAt   string  `json:"captured_at,omitempty"`
}

// FindPhoto returns the photo with the given id, or false if absent.
func (a *Album) FindPhoto(photoID string) (Photo, bool) {
	for _, p := range a.Photos {
		if p.ID == photoID {
			return p, true
		}
	}
	return Photo{}, false
}
