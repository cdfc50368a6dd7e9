package validation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9-]+$`)
	cameraIDPattern = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)
	dashRuns        = regexp.MustCompile(`-+`)
	nonSlugChars    = regexp.MustCompile(`[^a-z0-9-]`)
	spaceRuns       = regexp.MustCompile(`[\s_]+`)
)

// reservedSlugs are top-level path segments taken by fixed routes. A
// share slugged "admin" would have its pages shadowed by the admin API.
var reservedSlugs = map[string]bool{
	"admin": true,
	"docs":  true,
	"api":   true,
}

// ValidateSlug ensures a URL-safe share identifier (lowercase, digits,
// dashes, max 32 chars).
func ValidateSlug(slug string) error {
	if slug == "" {
		return errors.New("slug is required")
	}
	if len(slug) > 32 {
		return errors.New("slug must be 32 characters or fewer")
	}
	if !slugPattern.MatchString(slug) {
		return errors.New("slug may only contain lowercase letters, digits and dashes")
	}
	if reservedSlugs[slug] {
		return errors.New("slug is reserved: " + slug)
	}
	return nil
}

// Slugify derives a slug from a display name. Returns "" when nothing
// usable remains.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = spaceRuns.ReplaceAllString(s, "-")
	s = nonSlugChars.ReplaceAllString(s, "")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 32 {
		s = strings.Trim(s[:32], "-")
	}
	return s
}

// ValidateCameraID ensures a platform entity identifier like "camera.front".
func ValidateCameraID(cameraID string) error {
	if strings.TrimSpace(cameraID) == "" {
		return errors.New("camera id is required")
	}
	if !cameraIDPattern.MatchString(cameraID) {
		return errors.New("camera id must be a domain.object_id entity identifier")
	}
	return nil
}
