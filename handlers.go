package photoengine

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/solvberg/photoengine/catalog"
	"github.com/solvberg/photoengine/docstore"
	"github.com/solvberg/photoengine/imaging"
	"github.com/solvberg/photoengine/ingest"
)

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/photos", a.Files.Root())
	e.GET("/metrics", echoprometheus.NewHandler())

	e.POST("/admin/login", a.handleAdminLogin)
	e.POST("/admin/logout", handleAdminLogout)

	api := e.Group("/api")

	// Public surface.
	api.GET("/albums", a.handleListAlbums)
	api.GET("/albums/:slug", a.handleGetAlbum)
	api.POST("/albums/:slug/verify-password", a.handleVerifyPassword)

	// Admin surface. Each handler checks the session itself.
	api.POST("/albums", a.handleCreateAlbum)
	api.PUT("/albums/:id", a.handleUpdateAlbum)
	api.DELETE("/albums/:id", a.handleDeleteAlbum)
	api.POST("/albums/:id/password", a.handleSetPassword)
	api.DELETE("/albums/:id/password", a.handleRemovePassword)
	api.PUT("/albums/:id/cover", a.handleSetCover)
	api.DELETE("/albums/:id/photos/:photoID", a.handleDeletePhoto)
	api.PUT("/albums/:id/photos/order", a.handleReorderPhotos)
	api.GET("/storage", a.handleStorageStats)
	api.GET("/site", a.handleGetSite)
	api.PUT("/site", a.handleUpdateSite)

	// The batch body can hold several files up to the per-file ceiling each.
	api.POST("/albums/:id/photos", a.handleUploadPhotos,
		middleware.BodyLimit(strconv.FormatInt(a.Config.MaxUploadBytes*8, 10)))
}

var errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "authentication required")

// sanitizeAlbum strips the password hash before an album leaves the API.
func sanitizeAlbum(album catalog.Album) catalog.Album {
	album.PasswordHash = ""
	return album
}

func (a *App) handleListAlbums(c echo.Context) error {
	albums, err := a.Albums.ListAlbums()
	if err != nil {
		return err
	}
	admin := IsAdmin(c)
	out := make([]catalog.Album, 0, len(albums))
	for _, album := range albums {
		if !admin && album.Visibility != catalog.VisibilityPublic {
			// Unlisted and protected albums stay out of the public index;
			// they remain reachable by slug.
			continue
		}
		out = append(out, sanitizeAlbum(album))
	}
	return c.JSON(http.StatusOK, echo.Map{"albums": out})
}

func (a *App) handleGetAlbum(c echo.Context) error {
	album, err := a.Albums.GetAlbumBySlug(c.Param("slug"))
	if err != nil {
		return err
	}
	if album.Visibility == catalog.VisibilityPasswordProtected && !IsAdmin(c) && !hasAlbumAccess(c, album.ID) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"password_required": true})
	}
	return c.JSON(http.StatusOK, sanitizeAlbum(album))
}

func (a *App) handleVerifyPassword(c echo.Context) error {
	album, err := a.Albums.GetAlbumBySlug(c.Param("slug"))
	if err != nil {
		return err
	}
	var body struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ok, err := a.Albums.VerifyPassword(album.ID, body.Password)
	if err != nil {
		return err
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "wrong password"})
	}
	if err := grantAlbumAccess(c, album.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sanitizeAlbum(album))
}

func (a *App) handleCreateAlbum(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	var params catalog.AlbumParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	album, err := a.Albums.CreateAlbum(params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sanitizeAlbum(album))
}

func (a *App) handleUpdateAlbum(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	var params catalog.AlbumParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	album, err := a.Albums.UpdateAlbum(c.Param("id"), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sanitizeAlbum(album))
}

func (a *App) handleDeleteAlbum(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	removed, err := a.Albums.DeleteAlbum(c.Param("id"))
	if err != nil {
		return err
	}
	// Metadata is gone; file cleanup is best-effort and must not block.
	a.Ingest.RemoveAlbumFiles(removed)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleSetPassword(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	var body struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := a.Albums.SetPassword(c.Param("id"), body.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (a *App) handleRemovePassword(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	if err := a.Albums.RemovePassword(c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (a *App) handleSetCover(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	var body struct {
		PhotoID string `json:"photo_id" form:"photo_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := a.Albums.SetCoverPhoto(c.Param("id"), body.PhotoID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (a *App) handleUploadPhotos(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form required"})
	}

	var files []ingest.File
	for _, fh := range form.File["photos"] {
		src, err := fh.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return err
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	progress := func(ev ingest.Event) {
		if ev.Err != nil {
			c.Logger().Warnf("ingest %s: %s: %v", ev.Filename, ev.Stage, ev.Err)
			return
		}
		c.Logger().Infof("ingest %s: %s", ev.Filename, ev.Stage)
	}

	res, err := a.Ingest.Ingest(c.Request().Context(), c.Param("id"), files, progress)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (a *App) handleDeletePhoto(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	removed, err := a.Albums.DeletePhoto(c.Param("id"), c.Param("photoID"))
	if err != nil {
		return err
	}
	a.Ingest.RemovePhotoFiles(removed)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleReorderPhotos(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	var body struct {
		PhotoIDs []string `json:"photo_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	album, err := a.Albums.ReorderPhotos(c.Param("id"), body.PhotoIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sanitizeAlbum(album))
}

func (a *App) handleStorageStats(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	settings, err := a.Site.Load()
	if err != nil {
		return err
	}
	stats, err := a.Files.Usage(settings.MaxUsagePercent)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *App) handleGetSite(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	settings, err := a.Site.Load()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

func (a *App) handleUpdateSite(c echo.Context) error {
	if !IsAdmin(c) {
		return errUnauthorized
	}
	var body SiteSettings
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	updated, err := a.Site.Mutate(func(s *SiteSettings) error {
		*s = body
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// httpErrorHandler translates the error taxonomy into JSON responses: absent
// records become 404, caller-correctable validation problems 400, oversized
// payloads 413, everything else stays a 500 with the detail in the log only.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		vErr      *catalog.ValidationError
		decodeErr *docstore.DecodeError
		writeErr  *docstore.WriteError
	)
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		_ = c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.As(err, &vErr):
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": vErr.Reason})
	case errors.Is(err, imaging.ErrTooLarge):
		_ = c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": err.Error()})
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.As(err, &decodeErr), errors.As(err, &writeErr):
		c.Logger().Errorf("document store error: %v", err)
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "catalog storage failure"})
	default:
		he, ok := err.(*echo.HTTPError)
		if ok && he.Code < 500 {
			a.Echo.DefaultHTTPErrorHandler(err, c)
			return
		}
		code := http.StatusInternalServerError
		if ok {
			code = he.Code
		}
		c.Logger().Errorf("server error: %v", err)
		_ = c.JSON(code, echo.Map{"error": "internal server error"})
	}
}
