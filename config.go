package photoengine

// SiteConfig holds all configuration for a photoengine site.
type SiteConfig struct {
	Name string // Site name (default "Gallery")
	URL  string // Canonical URL (default "http://localhost:3000")

	Addr       string // Listen address (default ":3000")
	DataDir    string // Directory for the JSON documents (default "data")
	StorageDir string // Root for the variant directories (default "data/photos")

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	UploadWorkers   int     // Concurrent files per upload batch (default 4)
	MaxUploadBytes  int64   // Per-file upload ceiling (default 50MB)
	BcryptCost      int     // Work factor for album password hashes (0 = bcrypt default)
	MaxUsagePercent float64 // Disk usage warning threshold (default 90)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Gallery"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.StorageDir == "" {
		c.StorageDir = "data/photos"
	}
	if c.UploadWorkers == 0 {
		c.UploadWorkers = 4
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 50 << 20
	}
	if c.MaxUsagePercent == 0 {
		c.MaxUsagePercent = 90
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
