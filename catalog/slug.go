package catalog

import (
	"fmt"
	"strings"
)

// maxSlugAttempts bounds collision disambiguation before giving up.
const maxSlugAttempts = 100

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// uniqueSlug derives a slug from title and disambiguates collisions against
// the existing albums by suffixing -2, -3, and so on.
func uniqueSlug(albums []Album, title string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = "album"
	}
	taken := make(map[string]struct{}, len(albums))
	for _, a := range albums {
		taken[a.Slug] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base, nil
	}
	for i := 2; i <= maxSlugAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}
	return "", validationf("slug %q already exists", base)
}
