// Package catalog implements the album aggregate: CRUD, ordering, cover-photo
// and password invariants, and photo list mutation over the album-collection
// document. Every write is one docstore Mutate call, so two concurrent
// operations against different albums in the same collection never lose each
// other's update. No expensive work runs inside a mutate closure; only
// already-computed results are registered here.
package catalog

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/solvberg/photoengine/docstore"
)

// Service owns all mutation of the album-collection document.
type Service struct {
	doc        *docstore.Document[Collection]
	bcryptCost int
	now        func() time.Time
	newID      func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the id source. Intended for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithBcryptCost sets the work factor used for album password hashes.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// NewCollection is the default value for an absent collection document.
func NewCollection() Collection {
	return Collection{Version: 1}
}

// NewService wraps the given collection document.
func NewService(doc *docstore.Document[Collection], opts ...Option) *Service {
	s := &Service{
		doc:        doc,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// AlbumParams carries the caller-settable album fields.
type AlbumParams struct {
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Description    string `json:"description"`
	Visibility     string `json:"visibility"`
	AllowDownloads bool   `json:"allow_downloads"`
}

func validVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPasswordProtected:
		return true
	}
	return false
}

// CreateAlbum appends a new album with a generated id, a slug derived from the
// title, and order after all existing albums. Creating an album directly as
// password_protected is rejected: the hash invariant requires SetPassword,
// which flips visibility itself.
func (s *Service) CreateAlbum(p AlbumParams) (Album, error) {
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if !validVisibility(p.Visibility) {
		return Album{}, validationf("invalid visibility %q", p.Visibility)
	}
	if p.Visibility == VisibilityPasswordProtected {
		return Album{}, validationf("set a password with SetPassword instead of creating a protected album directly")
	}
	if p.Title == "" {
		return Album{}, validationf("title is required")
	}

	var created Album
	_, err := s.doc.Mutate(func(c *Collection) error {
		slug, err := uniqueSlug(c.Albums, p.Title)
		if err != nil {
			return err
		}
		order := 0
		for _, a := range c.Albums {
			if a.Order >= order {
				order = a.Order + 1
			}
		}
		now := s.timestamp()
		created = Album{
			ID:             s.newID(),
			Slug:           slug,
			Title:          p.Title,
			Subtitle:       p.Subtitle,
			Description:    p.Description,
			Visibility:     p.Visibility,
			AllowDownloads: p.AllowDownloads,
			Order:          order,
			CreatedAt:      now,
			UpdatedAt:      now,
			Photos:         []Photo{},
		}
		c.Albums = append(c.Albums, created)
		c.LastUpdated = now
		return nil
	})
	if err != nil {
		return Album{}, err
	}
	return created, nil
}

// GetAlbum returns the album with the given id.
func (s *Service) GetAlbum(id string) (Album, error) {
	c, err := s.doc.Load()
	if err != nil {
		return Album{}, err
	}
	for _, a := range c.Albums {
		if a.ID == id {
			return a, nil
		}
	}
	return Album{}, ErrNotFound
}

// GetAlbumBySlug returns the album with the given slug.
func (s *Service) GetAlbumBySlug(slug string) (Album, error) {
	c, err := s.doc.Load()
	if err != nil {
		return Album{}, err
	}
	for _, a := range c.Albums {
		if a.Slug == slug {
			return a, nil
		}
	}
	return Album{}, ErrNotFound
}

// ListAlbums returns every album sorted by order.
func (s *Service) ListAlbums() ([]Album, error) {
	c, err := s.doc.Load()
	if err != nil {
		return nil, err
	}
	albums := make([]Album, len(c.Albums))
	copy(albums, c.Albums)
	sort.SliceStable(albums, func(i, j int) bool { return albums[i].Order < albums[j].Order })
	return albums, nil
}

// UpdateAlbum replaces the album's caller-settable fields while preserving id,
// slug, created_at, password hash, and the photo list. Switching visibility to
// password_protected requires a hash already set via SetPassword; switching
// away clears it.
func (s *Service) UpdateAlbum(id string, p AlbumParams) (Album, error) {
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if !validVisibility(p.Visibility) {
		return Album{}, validationf("invalid visibility %q", p.Visibility)
	}
	if p.Title == "" {
		return Album{}, validationf("title is required")
	}

	var updated Album
	_, err := s.doc.Mutate(func(c *Collection) error {
		a, err := findAlbum(c, id)
		if err != nil {
			return err
		}
		if p.Visibility == VisibilityPasswordProtected && a.PasswordHash == "" {
			return validationf("album has no password; call SetPassword first")
		}
		a.Title = p.Title
		a.Subtitle = p.Subtitle
		a.Description = p.Description
		a.Visibility = p.Visibility
		a.AllowDownloads = p.AllowDownloads
		if p.Visibility != VisibilityPasswordProtected {
			a.PasswordHash = ""
		}
		a.UpdatedAt = s.timestamp()
		c.LastUpdated = a.UpdatedAt
		updated = *a
		return nil
	})
	if err != nil {
		return Album{}, err
	}
	return updated, nil
}

// DeleteAlbum removes the album record and returns it so the caller can delete
// the backing photo files. File deletion is the caller's job and happens
// outside the document lock.
func (s *Service) DeleteAlbum(id string) (Album, error) {
	var removed Album
	_, err := s.doc.Mutate(func(c *Collection) error {
		for i, a := range c.Albums {
			if a.ID == id {
				removed = a
				c.Albums = append(c.Albums[:i], c.Albums[i+1:]...)
				c.LastUpdated = s.timestamp()
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return Album{}, err
	}
	return removed, nil
}

// SetPassword hashes plaintext with bcrypt at the configured cost, stores the
// hash, and marks the album password_protected. The plaintext is never stored
// or logged.
func (s *Service) SetPassword(id, plaintext string) error {
	if plaintext == "" {
		return validationf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.bcryptCost)
	if err != nil {
		return err
	}
	_, err = s.doc.Mutate(func(c *Collection) error {
		a, err := findAlbum(c, id)
		if err != nil {
			return err
		}
		a.PasswordHash = string(hash)
		a.Visibility = VisibilityPasswordProtected
		a.UpdatedAt = s.timestamp()
		c.LastUpdated = a.UpdatedAt
		return nil
	})
	return err
}

// RemovePassword clears the hash and resets visibility to public. Removing a
// password that was never set is a no-op success.
func (s *Service) RemovePassword(id string) error {
	_, err := s.doc.Mutate(func(c *Collection) error {
		a, err := findAlbum(c, id)
		if err != nil {
			return err
		}
		if a.PasswordHash == "" && a.Visibility != VisibilityPasswordProtected {
			return nil
		}
		a.PasswordHash = ""
		a.Visibility = VisibilityPublic
		a.UpdatedAt = s.timestamp()
		c.LastUpdated = a.UpdatedAt
		return nil
	})
	return err
}

// VerifyPassword reports whether plaintext matches the album's stored hash.
// Albums without a password always verify false.
func (s *Service) VerifyPassword(id, plaintext string) (bool, error) {
	a, err := s.GetAlbum(id)
	if err != nil {
		return false, err
	}
	if a.PasswordHash == "" {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext))
	return err == nil, nil
}

// SetCoverPhoto points the album cover at one of its own photos. An empty
// photoID clears the cover.
func (s *Service) SetCoverPhoto(id, photoID string) error {
	_, err := s.doc.Mutate(func(c *Collection) error {
		a, err := findAlbum(c, id)
		if err != nil {
			return err
		}
		if photoID != "" {
			if _, ok := a.FindPhoto(photoID); !ok {
				return validationf("photo %q is not in album %q", photoID, id)
			}
		}
		a.CoverPhotoID = photoID
		a.UpdatedAt = s.timestamp()
		c.LastUpdated = a.UpdatedAt
		return nil
	})
	return err
}

// AddPhoto appends a photo after the album's existing photos, assigning an id
// and upload timestamp when the caller left them empty.
func (s *Service) AddPhoto(albumID string, photo Photo) (Photo, error) {
	if photo.ID == "" {
		photo.ID = s.newID()
	}
	if photo.UploadedAt == "" {
		photo.UploadedAt = s.timestamp()
	}
	var added Photo
	_, err := s.doc.Mutate(func(c *Collection) error {
		a, err := findAlbum(c, albumID)
		if err != nil {
			return err
		}
		order := 0
		for _, p := range a.Photos {
			if p.Order >= order {
				order = p.Order + 1
			}
		}
		photo.Order = order
		a.Photos = append(a.Photos, photo)
		a.UpdatedAt = s.timestamp()
		c.LastUpdated = a.UpdatedAt
		added = photo
		return nil
	})
	if err != nil {
		return Photo{}, err
	}
	return added, nil
}

// DeletePhoto removes the photo from the album's list and returns it so the
// caller can delete the variant files. A cover pointing at the removed photo
// is cleared. Deleting an absent photo is ErrNotFound.
func (s *Service) DeletePhoto(albumID, photoID string) (Photo, error) {
	var removed Photo
	_, err := s.doc.Mutate(func(c *Collection) error {
		a, err := findAlbum(c, albumID)
		if err != nil {
			return err
		}
		for i, p := range a.Photos {
			if p.ID == photoID {
				removed = p
				a.Photos = append(a.Photos[:i], a.Photos[i+1:]...)
				if a.CoverPhotoID == photoID {
					a.CoverPhotoID = ""
				}
				a.UpdatedAt = s.timestamp()
				c.LastUpdated = a.UpdatedAt
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return Photo{}, err
	}
	return removed, nil
}

// ReorderPhotos rewrites each photo's order to its position in orderedIDs.
// The id set must match the album's photos exactly: a subset, superset, or
// foreign id signals a stale client view (or a lost concurrent edit) and fails
// with a ValidationError, leaving the album unmodified.
func (s *Service) ReorderPhotos(albumID string, orderedIDs []string) (Album, error) {
	var updated Album
	_, err := s.doc.Mutate(func(c *Collection) error {
		a, err := findAlbum(c, albumID)
		if err != nil {
			return err
		}
		if len(orderedIDs) != len(a.Photos) {
			return validationf("reorder lists %d ids but album has %d photos", len(orderedIDs), len(a.Photos))
		}
		byID := make(map[string]Photo, len(a.Photos))
		for _, p := range a.Photos {
			byID[p.ID] = p
		}
		reordered := make([]Photo, 0, len(orderedIDs))
		for i, id := range orderedIDs {
			p, ok := byID[id]
			if !ok {
				return validationf("reorder references unknown photo %q", id)
			}
			delete(byID, id) // catches duplicate ids in the request
			p.Order = i
			reordered = append(reordered, p)
		}
		a.Photos = reordered
		a.UpdatedAt = s.timestamp()
		c.LastUpdated = a.UpdatedAt
		updated = *a
		return nil
	})
	if err != nil {
		return Album{}, err
	}
	return updated, nil
}

func findAlbum(c *Collection, id string) (*Album, error) {
	for i := range c.Albums {
		if c.Albums[i].ID == id {
			return &c.Albums[i], nil
		}
	}
	return nil, ErrNotFound
}
