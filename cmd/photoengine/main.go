// Command photoengine runs the photo catalog server. All configuration comes
// from environment variables; ADMIN_PASSWORD and SESSION_SECRET are required.
package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/solvberg/photoengine"
)

func main() {
	cfg := photoengine.SiteConfig{
		Name:            envOr("SITE_NAME", ""),
		URL:             strings.TrimSuffix(envOr("SITE_URL", ""), "/"),
		Addr:            envOr("LISTEN_ADDR", ""),
		DataDir:         envOr("DATA_DIR", ""),
		StorageDir:      envOr("STORAGE_DIR", ""),
		AdminPassword:   mustEnv("ADMIN_PASSWORD"),
		SessionSecret:   mustEnv("SESSION_SECRET"),
		CookieSecure:    strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
		UploadWorkers:   envInt("UPLOAD_WORKERS", 0),
		MaxUploadBytes:  int64(envInt("MAX_UPLOAD_BYTES", 0)),
		MaxUsagePercent: float64(envInt("MAX_USAGE_PERCENT", 0)),
	}

	app := photoengine.New(cfg)
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s environment variable is required", key)
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, v)
	}
	return n
}
