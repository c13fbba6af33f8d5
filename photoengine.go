// Package photoengine is a self-hosted photo catalog built with Go and Echo.
// Albums and their photos are persisted as whole JSON documents on the
// filesystem — no database — with atomic commit and backup handled by the
// document store. Uploads run through a variant pipeline that produces
// archival, display, and thumbnail renditions per photo.
package photoengine

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/solvberg/photoengine/catalog"
	"github.com/solvberg/photoengine/docstore"
	"github.com/solvberg/photoengine/imaging"
	"github.com/solvberg/photoengine/ingest"
	"github.com/solvberg/photoengine/storage"
)

// SiteSettings is the site-wide configuration document. It goes through the
// same document store as the album collection, so edits from the settings UI
// get the same atomic commit and backup treatment.
type SiteSettings struct {
	SiteName        string  `json:"site_name"`
	SiteURL         string  `json:"site_url"`
	Description     string  `json:"description"`
	MaxUploadBytes  int64   `json:"max_upload_bytes"`
	MaxUsagePercent float64 `json:"max_usage_percent"`
}

// App is the central photoengine application. It wires together the document
// store, the catalog service, the ingestion coordinator, and the HTTP surface.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Albums *catalog.Service
	Ingest *ingest.Coordinator
	Files  *storage.Local
	Site   *docstore.Document[SiteSettings]

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
}

// New creates a new photoengine App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start initializes the documents, storage, and services, then starts the
// HTTP server. It blocks until the server stops.
func (a *App) Start() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("photoengine: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("photoengine: SessionSecret is required")
	}

	if err := a.initServices(); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) initServices() error {
	albumDoc, err := docstore.Open(a.Config.DataDir, "albums", catalog.NewCollection)
	if err != nil {
		return fmt.Errorf("photoengine: open album collection: %w", err)
	}

	cfg := a.Config
	a.Site, err = docstore.Open(a.Config.DataDir, "site", func() SiteSettings {
		return SiteSettings{
			SiteName:        cfg.Name,
			SiteURL:         cfg.URL,
			MaxUploadBytes:  cfg.MaxUploadBytes,
			MaxUsagePercent: cfg.MaxUsagePercent,
		}
	})
	if err != nil {
		return fmt.Errorf("photoengine: open site settings: %w", err)
	}

	a.Files, err = storage.NewLocal(a.Config.StorageDir)
	if err != nil {
		return fmt.Errorf("photoengine: init storage: %w", err)
	}

	var catalogOpts []catalog.Option
	if a.Config.BcryptCost > 0 {
		catalogOpts = append(catalogOpts, catalog.WithBcryptCost(a.Config.BcryptCost))
	}
	a.Albums = catalog.NewService(albumDoc, catalogOpts...)

	a.Ingest = &ingest.Coordinator{
		Albums:    a.Albums,
		Generator: &imaging.Generator{MaxBytes: a.Config.MaxUploadBytes},
		Files:     a.Files,
		Workers:   a.Config.UploadWorkers,
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	return nil
}
